package langserver

import (
	"path/filepath"
	"sync"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/logger"
)

// Manager hands out one lazily acquired Client per language. The subprocess
// and its open-document records share one scope: created on first query for a
// matching file, released together by CloseAll.
type Manager struct {
	workspaceRoot string
	opts          ClientOptions
	overrides     map[string]Override

	mu      sync.Mutex
	clients map[string]*Client
	hooks   []func(path string, eventType int)
}

// Override adjusts one language's analyzer record at acquisition time.
type Override struct {
	BinaryPath string
	ExtraArgs  []string
}

// NewManager creates a manager rooted at workspaceRoot.
func NewManager(workspaceRoot string, opts ClientOptions, overrides map[string]Override) *Manager {
	return &Manager{
		workspaceRoot: workspaceRoot,
		opts:          opts,
		overrides:     overrides,
		clients:       make(map[string]*Client),
	}
}

// WorkspaceRoot returns the root all managed clients are scoped to.
func (m *Manager) WorkspaceRoot() string {
	return m.workspaceRoot
}

// ClientFor returns the client owning a path, spawning its analyzer on first
// use. The path only selects the language; it is not opened here.
func (m *Manager) ClientFor(path string) (*Client, error) {
	cfg, ok := ConfigForPath(path)
	if !ok {
		return nil, errors.Wrapf(errors.ErrFileNotFound,
			"no analyzer for %s (supported: %v)", filepath.Ext(path), Languages())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[cfg.Language]; ok {
		return client, nil
	}

	opts := m.opts
	if ov, ok := m.overrides[cfg.Language]; ok {
		if ov.BinaryPath != "" {
			opts.BinaryPath = ov.BinaryPath
		}
		opts.ExtraArgs = append(opts.ExtraArgs, ov.ExtraArgs...)
	}

	client, err := NewClient(cfg, m.workspaceRoot, opts)
	if err != nil {
		return nil, err
	}
	for _, hook := range m.hooks {
		client.OnFileChange(hook)
	}
	m.clients[cfg.Language] = client
	return client, nil
}

// OnFileChange registers a hook on every current and future client.
func (m *Manager) OnFileChange(hook func(path string, eventType int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
	for _, client := range m.clients {
		client.OnFileChange(hook)
	}
}

// CloseAll releases every acquired client. Idempotent per client.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		if err := c.Close(); err != nil {
			logger.Warnw("Analyzer release failed", "error", err)
		}
	}
}
