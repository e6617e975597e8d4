package langserver

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/logger"
)

// watchSink receives classified file events off the watcher goroutine. The
// sink must not block: event delivery is send-and-forget.
type watchSink interface {
	handleFileEvent(path string, eventType int)
}

// Directories never worth watching; also keeps fd usage inside platform
// limits on large workspaces.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
	".venv":        true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
}

// Watcher observes the workspace root recursively and keeps the analyzer's
// view of the workspace synchronized with disk. Matching events are
// classified (created/changed/deleted, existence-checked at event time) and
// forwarded to the sink.
type Watcher struct {
	fs   *fsnotify.Watcher
	root string
	cfg  ServerConfig
	sink watchSink
	done chan struct{}
}

// newWatcher starts a watcher for a client's workspace.
func newWatcher(c *Client) (*Watcher, error) {
	return newWatcherFor(c.workspaceRoot, c.cfg, c)
}

// newWatcherFor starts a watcher over root, filtered to cfg's extension and
// filename set, delivering events to sink.
func newWatcherFor(root string, cfg ServerConfig, sink watchSink) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		fs:   fsw,
		root: root,
		cfg:  cfg,
		sink: sink,
		done: make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	logger.Debugw("Workspace watcher started", "root", root, "language", cfg.Language)
	return w, nil
}

// addRecursive registers root and every non-ignored subdirectory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees degrade to unwatched, they do not abort.
			logger.Debugw("Skipping unreadable path", "path", path, "error", err)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (ignoredDirs[d.Name()] || d.Name()[0] == '.') {
			return fs.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

// loop consumes fsnotify events until Stop.
func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warnw("Watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// handle classifies one raw event and forwards it when it matches the
// analyzer's watched set. New directories are added to the watch on the fly.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !ignoredDirs[filepath.Base(event.Name)] {
				if err := w.fs.Add(event.Name); err != nil {
					logger.Debugw("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if !w.cfg.Matches(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Classification trusts disk state at event time, not the event kind:
	// editors rename over files, and rapid sequences collapse.
	eventType := FileChanged
	if _, err := os.Stat(event.Name); err != nil {
		eventType = FileDeleted
	} else if event.Op&fsnotify.Create != 0 {
		eventType = FileCreated
	}

	logger.Debugw("Watched file event",
		"path", event.Name, "op", event.Op.String(), "type", eventType)
	w.sink.handleFileEvent(event.Name, eventType)
}

// Stop tears the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	_ = w.fs.Close()
}
