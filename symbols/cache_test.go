package symbols

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubParser indexes every line of the form "def NAME" and counts how often
// each path is parsed.
type stubParser struct {
	mu     sync.Mutex
	parses map[string]int
}

func newStubParser() *stubParser {
	return &stubParser{parses: make(map[string]int)}
}

func (p *stubParser) Supports(path string) bool {
	return filepath.Ext(path) == ".src"
}

func (p *stubParser) Parse(_ context.Context, path string, source []byte) ([]Symbol, error) {
	p.mu.Lock()
	p.parses[path]++
	p.mu.Unlock()

	var out []Symbol
	for i, line := range strings.Split(string(source), "\n") {
		if name, ok := strings.CutPrefix(line, "def "); ok {
			out = append(out, Symbol{Name: name, Kind: "function", Path: path, Line: i + 1})
		}
	}
	return out, nil
}

func (p *stubParser) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parses[path]
}

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestScanIndexesSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.src", "def alpha\ndef beta")
	writeSource(t, root, "pkg/b.src", "def gamma")
	writeSource(t, root, "readme.txt", "def notIndexed")

	parser := newStubParser()
	cache := NewCache(parser, root)
	require.NoError(t, cache.Scan(context.Background()))

	assert.Equal(t, 2, cache.Len())
	results := cache.Search("")
	require.Len(t, results, 3)
	assert.Equal(t, "alpha", results[0].Name)
	assert.Equal(t, 2, results[1].Line)
	assert.Equal(t, filepath.Join("pkg", "b.src"), results[2].Path)
}

func TestScanReusesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.src", "def alpha")

	parser := newStubParser()
	cache := NewCache(parser, root)
	require.NoError(t, cache.Scan(context.Background()))
	require.NoError(t, cache.Scan(context.Background()))

	assert.Equal(t, 1, parser.count("a.src"), "unchanged file must not re-parse")
}

func TestScanReparsesOnModTimeChange(t *testing.T) {
	root := t.TempDir()
	abs := writeSource(t, root, "a.src", "def alpha")

	parser := newStubParser()
	cache := NewCache(parser, root)
	require.NoError(t, cache.Scan(context.Background()))

	require.NoError(t, os.WriteFile(abs, []byte("def renamed"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(abs, later, later))
	require.NoError(t, cache.Scan(context.Background()))

	assert.Equal(t, 2, parser.count("a.src"))
	assert.Empty(t, cache.Search("alpha"))
	assert.Len(t, cache.Search("renamed"), 1)
}

func TestScanDropsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	abs := writeSource(t, root, "gone.src", "def ghost")

	cache := NewCache(newStubParser(), root)
	require.NoError(t, cache.Scan(context.Background()))
	require.Len(t, cache.Search("ghost"), 1)

	require.NoError(t, os.Remove(abs))
	require.NoError(t, cache.Scan(context.Background()))

	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, cache.Search("ghost"))
}

func TestInvalidateForcesReparse(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.src", "def alpha")

	parser := newStubParser()
	cache := NewCache(parser, root)
	require.NoError(t, cache.Scan(context.Background()))

	cache.Invalidate("a.src")
	require.NoError(t, cache.Scan(context.Background()))
	assert.Equal(t, 2, parser.count("a.src"))

	// Absolute paths resolve to the same entry.
	cache.Invalidate(filepath.Join(root, "a.src"))
	require.NoError(t, cache.Scan(context.Background()))
	assert.Equal(t, 3, parser.count("a.src"))
}

func TestClearEmptiesIndex(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.src", "def alpha")

	cache := NewCache(newStubParser(), root)
	require.NoError(t, cache.Scan(context.Background()))
	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, cache.Search("alpha"))
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.src", "def HandleRequest\ndef handleResponse\ndef shutdown")

	cache := NewCache(newStubParser(), root)
	require.NoError(t, cache.Scan(context.Background()))

	results := cache.Search("handle")
	require.Len(t, results, 2)
	assert.Equal(t, "HandleRequest", results[0].Name)
	assert.Equal(t, "handleResponse", results[1].Name)

	assert.Empty(t, cache.Search("nomatch"))
}

func TestScanSkipsHiddenAndDependencyDirs(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "keep.src", "def keep")
	writeSource(t, root, ".git/skip.src", "def hidden")
	writeSource(t, root, "node_modules/skip.src", "def vendored")

	cache := NewCache(newStubParser(), root)
	require.NoError(t, cache.Scan(context.Background()))

	assert.Equal(t, 1, cache.Len())
	require.Len(t, cache.Search(""), 1)
	assert.Equal(t, "keep", cache.Search("")[0].Name)
}
