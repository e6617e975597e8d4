package langserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/logger"
)

// rpc is the request/notification surface the client needs from its
// transport. Narrowed to an interface so tests can script responses without a
// subprocess.
type rpc interface {
	Call(ctx context.Context, method string, params, result interface{}) error
	Notify(method string, params interface{}) error
	Close() error
}

// openDocument tracks one document the analyzer has been told about. The
// version is monotonic: bumped on every externally observed change, never
// reset while the document stays open.
type openDocument struct {
	version int
	content string
}

// Client supervises one analyzer subprocess: spawn, handshake, open-document
// tracking, watcher wiring, idempotent teardown. All structural queries go
// through it.
type Client struct {
	cfg           ServerConfig
	workspaceRoot string

	cmd       *exec.Cmd
	transport rpc
	watcher   *Watcher

	mu     sync.Mutex
	docs   map[string]*openDocument
	closed bool

	shutdownTimeout time.Duration

	hookMu      sync.Mutex
	changeHooks []func(path string, eventType int)
}

// ClientOptions configures client acquisition.
type ClientOptions struct {
	// BinaryPath overrides binary lookup entirely when non-empty.
	BinaryPath string

	// ExtraArgs are appended to the analyzer's configured args.
	ExtraArgs []string

	// RequestTimeout bounds each request; zero means 30s.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds the graceful shutdown request; zero means 3s.
	ShutdownTimeout time.Duration

	// DisableWatcher skips workspace watching (tests, read-only mounts).
	DisableWatcher bool
}

// NewClient locates, spawns, and initializes an analyzer for the workspace,
// returning a ready client. On handshake failure the subprocess is killed
// before the error is returned; nothing leaks. A watcher start failure
// degrades to stale-until-edit and is not fatal.
func NewClient(cfg ServerConfig, workspaceRoot string, opts ClientOptions) (*Client, error) {
	binary := opts.BinaryPath
	if binary == "" {
		var err error
		binary, err = LookupBinary(cfg, workspaceRoot)
		if err != nil {
			return nil, errors.Wrapf(err, "acquiring %s analyzer", cfg.Language)
		}
	}

	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 3 * time.Second
	}

	cmd := exec.Command(binary, append(append([]string{}, cfg.Args...), opts.ExtraArgs...)...)
	cmd.Dir = workspaceRoot

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s stdin pipe", cfg.Command)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s stdout pipe", cfg.Command)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s stderr pipe", cfg.Command)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", binary)
	}

	c := &Client{
		cfg:             cfg,
		workspaceRoot:   workspaceRoot,
		cmd:             cmd,
		docs:            make(map[string]*openDocument),
		shutdownTimeout: shutdownTimeout,
	}
	c.transport = NewTransport(stdin, stdout, TransportOptions{
		DefaultTimeout: requestTimeout,
	})

	go drainStderr(cfg.Command, stderr)

	if err := c.initialize(); err != nil {
		_ = c.transport.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, errors.Wrapf(err, "%s handshake failed for workspace %s", cfg.Command, workspaceRoot)
	}

	if !opts.DisableWatcher {
		watcher, err := newWatcher(c)
		if err != nil {
			// Degrade to stale-until-edit rather than failing acquisition.
			logger.Warnw("Workspace watcher unavailable, analyzer view may go stale",
				"language", cfg.Language, "error", err)
		} else {
			c.watcher = watcher
		}
	}

	logger.Infow("Analyzer ready",
		"language", cfg.Language, "binary", binary, "workspace", workspaceRoot)
	return c, nil
}

// initialize performs the initialize/initialized handshake. The capability
// payload always advertises hierarchical document symbols and call hierarchy;
// without them downstream queries silently return emptier results.
func (c *Client) initialize() error {
	pid := os.Getpid()
	params := InitializeParams{
		ProcessID: &pid,
		RootURI:   PathToURI(c.workspaceRoot),
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				DocumentSymbol: DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
				CallHierarchy: CallHierarchyClientCapabilities{},
			},
			Workspace: WorkspaceClientCapabilities{},
		},
	}

	ctx := context.Background()
	var result json.RawMessage
	if err := c.transport.Call(ctx, MethodInitialize, params, &result); err != nil {
		return err
	}
	return c.transport.Notify(MethodInitialized, struct{}{})
}

// EnsureOpen makes sure the analyzer has the document open, reading it from
// disk on first access. Idempotent: a second call for the same path issues no
// further didOpen. Returns the document URI.
func (c *Client) EnsureOpen(ctx context.Context, path string) (string, error) {
	uri := PathToURI(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[uri]; ok {
		return uri, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.Wrapf(err, "failed to read %s", path)
	}

	err = c.transport.Notify(MethodDidOpen, map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        uri,
			"languageId": c.cfg.LanguageID(path),
			"version":    1,
			"text":       string(content),
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "didOpen failed for %s", path)
	}

	c.docs[uri] = &openDocument{version: 1, content: string(content)}
	return uri, nil
}

// OpenDocumentVersion reports the tracked version of a document, or 0 when
// the document is not open.
func (c *Client) OpenDocumentVersion(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.docs[uri]; ok {
		return doc.version
	}
	return 0
}

// OnFileChange registers a hook invoked for every watched-file event, after
// the analyzer has been notified. Used by the symbol cache for eager
// invalidation.
func (c *Client) OnFileChange(hook func(path string, eventType int)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.changeHooks = append(c.changeHooks, hook)
}

// handleFileEvent is the watcher's entry point for one classified change.
// Notification failures are best-effort: logged, never surfaced, and they do
// not block the watcher.
func (c *Client) handleFileEvent(path string, eventType int) {
	uri := PathToURI(path)

	if err := c.transport.Notify(MethodDidChangeWatchedFiles, map[string]interface{}{
		"changes": []FileEvent{{URI: uri, Type: eventType}},
	}); err != nil {
		logger.Warnw("didChangeWatchedFiles notification failed",
			"path", path, "error", err)
	}

	c.mu.Lock()
	doc, open := c.docs[uri]
	if open {
		switch eventType {
		case FileDeleted:
			// Drop it so a later access re-opens cleanly.
			delete(c.docs, uri)
		default:
			content, err := os.ReadFile(path)
			if err != nil {
				logger.Warnw("Failed to re-read changed document", "path", path, "error", err)
				break
			}
			doc.version++
			doc.content = string(content)
			if err := c.transport.Notify(MethodDidChange, map[string]interface{}{
				"textDocument": map[string]interface{}{
					"uri":     uri,
					"version": doc.version,
				},
				"contentChanges": []map[string]interface{}{
					{"text": string(content)},
				},
			}); err != nil {
				logger.Warnw("didChange notification failed", "path", path, "error", err)
			}
		}
	}
	c.mu.Unlock()

	c.hookMu.Lock()
	hooks := make([]func(string, int), len(c.changeHooks))
	copy(hooks, c.changeHooks)
	c.hookMu.Unlock()
	for _, hook := range hooks {
		hook(path, eventType)
	}
}

// DocumentSymbols returns the outline for a document. A non-array response
// (null, or a server quirk) yields an empty outline, not an error.
func (c *Client) DocumentSymbols(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	var raw json.RawMessage
	err := c.transport.Call(ctx, MethodDocumentSymbol, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
	}, &raw)
	if err != nil {
		return nil, errors.Wrapf(err, "documentSymbol for %s", uri)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var symbols []DocumentSymbol
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, nil
	}
	return symbols, nil
}

// PrepareCallHierarchy resolves a position into call-hierarchy item handles.
func (c *Client) PrepareCallHierarchy(ctx context.Context, uri string, pos Position) ([]CallHierarchyItem, error) {
	var items []CallHierarchyItem
	err := c.transport.Call(ctx, MethodPrepareCallHierarchy, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"position":     pos,
	}, &items)
	if err != nil {
		return nil, errors.Wrapf(err, "prepareCallHierarchy at %s:%d:%d", uri, pos.Line, pos.Character)
	}
	return items, nil
}

// IncomingCalls fetches the immediate callers of an item.
func (c *Client) IncomingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyIncomingCall, error) {
	var calls []CallHierarchyIncomingCall
	err := c.transport.Call(ctx, MethodCallHierarchyIncoming, map[string]interface{}{
		"item": item,
	}, &calls)
	if err != nil {
		return nil, errors.Wrapf(err, "incomingCalls for %s", item.Name)
	}
	return calls, nil
}

// OutgoingCalls fetches the immediate callees of an item.
func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	var calls []CallHierarchyOutgoingCall
	err := c.transport.Call(ctx, MethodCallHierarchyOutgoing, map[string]interface{}{
		"item": item,
	}, &calls)
	if err != nil {
		return nil, errors.Wrapf(err, "outgoingCalls for %s", item.Name)
	}
	return calls, nil
}

// References finds all references to the symbol at a position. Results pass
// through from the analyzer verbatim.
func (c *Client) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	var locations []Location
	err := c.transport.Call(ctx, MethodReferences, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"position":     pos,
		"context": map[string]interface{}{
			"includeDeclaration": includeDeclaration,
		},
	}, &locations)
	if err != nil {
		return nil, errors.Wrapf(err, "references at %s:%d:%d", uri, pos.Line, pos.Character)
	}
	return locations, nil
}

// Rename renames the symbol at a position across the workspace. A declined
// rename (null response) yields nil, not an error.
func (c *Client) Rename(ctx context.Context, uri string, pos Position, newName string) (*WorkspaceEdit, error) {
	var raw json.RawMessage
	err := c.transport.Call(ctx, MethodRename, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"position":     pos,
		"newName":      newName,
	}, &raw)
	if err != nil {
		return nil, errors.Wrapf(err, "rename at %s:%d:%d to %q", uri, pos.Line, pos.Character, newName)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var edit WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return nil, errors.Wrapf(errors.ErrProtocol, "malformed workspace edit: %v", err)
	}
	return &edit, nil
}

// WorkspaceRoot returns the root all of this client's queries are scoped to.
func (c *Client) WorkspaceRoot() string {
	return c.workspaceRoot
}

// Config returns the analyzer record this client was built from.
func (c *Client) Config() ServerConfig {
	return c.cfg
}

// Close releases the subprocess and every open-document record together.
// Idempotent: a second invocation from any trigger is a no-op. Release is
// total even on abnormal exit; the process is killed and its streams closed
// no matter how far the graceful sequence got.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	docs := make([]string, 0, len(c.docs))
	for uri := range c.docs {
		docs = append(docs, uri)
	}
	c.docs = make(map[string]*openDocument)
	c.mu.Unlock()

	if c.watcher != nil {
		c.watcher.Stop()
	}

	// Best-effort close-notify for every open document.
	for _, uri := range docs {
		_ = c.transport.Notify(MethodDidClose, map[string]interface{}{
			"textDocument": map[string]interface{}{"uri": uri},
		})
	}

	shutdownTimeout := c.shutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.transport.Call(ctx, MethodShutdown, nil, nil); err != nil {
		logger.Debugw("Graceful shutdown request failed", "language", c.cfg.Language, "error", err)
	}
	_ = c.transport.Notify(MethodExit, nil)

	// Drain: fail anything still pending, close the streams.
	_ = c.transport.Close()

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}

	logger.Infow("Analyzer released", "language", c.cfg.Language)
	return nil
}

// drainStderr consumes analyzer stderr so the subprocess never blocks on a
// full pipe. Lines surface at debug level only.
func drainStderr(name string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			logger.Debugw("Analyzer stderr", "binary", name, "line", line)
		}
	}
}
