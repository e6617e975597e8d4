package symbols

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/codelens/logger"
)

// Directories never scanned for symbols.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

type entry struct {
	modTime time.Time
	symbols []Symbol
}

// Cache is an mtime-keyed symbol index over one workspace. Scan walks the
// tree and re-parses only files whose modification time changed; Search
// answers over whatever the last scan produced.
type Cache struct {
	parser Parser
	root   string

	mu      sync.RWMutex
	entries map[string]entry // keyed by workspace-relative path
}

// NewCache creates an empty cache over the workspace root.
func NewCache(parser Parser, root string) *Cache {
	return &Cache{
		parser:  parser,
		root:    root,
		entries: make(map[string]entry),
	}
}

// Scan brings the index up to date with the filesystem. Unchanged files are
// reused from the previous scan, changed and new files are re-parsed in
// parallel, and entries for files no longer present are dropped. Files that
// fail to parse are logged and skipped; a scan never fails on one bad file.
func (c *Cache) Scan(ctx context.Context) error {
	found := make(map[string]time.Time)
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != c.root && (skippedDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.parser.Supports(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // raced with a delete
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return nil
		}
		found[rel] = info.ModTime()
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.RLock()
	var stale []string
	for rel, modTime := range found {
		prev, ok := c.entries[rel]
		if !ok || !prev.modTime.Equal(modTime) {
			stale = append(stale, rel)
		}
	}
	c.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var parsedMu sync.Mutex
	parsed := make(map[string]entry, len(stale))

	for _, rel := range stale {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(c.root, rel)
			source, err := os.ReadFile(abs)
			if err != nil {
				logger.Debugw("Skipping unreadable file in symbol scan", "path", rel, "error", err)
				return nil
			}
			syms, err := c.parser.Parse(ctx, rel, source)
			if err != nil {
				logger.Warnw("Symbol parse failed", "path", rel, "error", err)
				return nil
			}
			parsedMu.Lock()
			parsed[rel] = entry{modTime: found[rel], symbols: syms}
			parsedMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	for rel := range c.entries {
		if _, ok := found[rel]; !ok {
			delete(c.entries, rel)
		}
	}
	for rel, e := range parsed {
		c.entries[rel] = e
	}
	total := len(c.entries)
	c.mu.Unlock()

	logger.Debugw("Symbol scan complete", "files", total, "reparsed", len(parsed))
	return nil
}

// Invalidate drops one file's entry so the next scan re-parses it.
func (c *Cache) Invalidate(path string) {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(c.root, path); err == nil {
			rel = r
		}
	}
	c.mu.Lock()
	delete(c.entries, rel)
	c.mu.Unlock()
}

// Clear empties the index.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports how many files the index currently covers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Search returns every indexed symbol whose name contains the query,
// case-insensitive, ordered by path then line for stable output.
func (c *Cache) Search(query string) []Symbol {
	needle := strings.ToLower(query)

	c.mu.RLock()
	var out []Symbol
	for _, e := range c.entries {
		for _, sym := range e.symbols {
			if strings.Contains(strings.ToLower(sym.Name), needle) {
				out = append(out, sym)
			}
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out
}
