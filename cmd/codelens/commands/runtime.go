package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/codelens/callgraph"
	"github.com/teranos/codelens/config"
	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/langserver"
	"github.com/teranos/codelens/symbols"
)

// runtime bundles the wired services one command invocation needs. Analyzers
// spawn lazily on first query; Close releases whatever was acquired.
type runtime struct {
	cfg     *config.Config
	manager *langserver.Manager
	service *callgraph.Service
	cache   *symbols.Cache
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	workspace, _ := cmd.Flags().GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}

	opts := langserver.ClientOptions{
		RequestTimeout:  time.Duration(cfg.Analyzer.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout: time.Duration(cfg.Analyzer.ShutdownTimeoutMS) * time.Millisecond,
		DisableWatcher:  !cfg.Watcher.Enabled,
	}
	overrides := make(map[string]langserver.Override, len(cfg.Languages))
	for lang, lc := range cfg.Languages {
		overrides[lang] = langserver.Override{BinaryPath: lc.Binary, ExtraArgs: lc.Args}
	}

	manager := langserver.NewManager(cfg.Workspace.Root, opts, overrides)
	provider := callgraph.ProviderFunc(func(path string) (callgraph.Client, error) {
		return manager.ClientFor(path)
	})
	service := callgraph.NewService(provider, cfg.Workspace.Root, callgraph.Options{
		MaxDepth:      cfg.Traversal.MaxDepth,
		FanOutWarning: cfg.Traversal.FanOutWarning,
	})

	cache := symbols.NewCache(symbols.NewTreeSitterParser(), cfg.Workspace.Root)
	// Edits observed by any analyzer's watcher drop the stale index entry.
	manager.OnFileChange(func(path string, _ int) {
		cache.Invalidate(path)
	})

	return &runtime{
		cfg:     cfg,
		manager: manager,
		service: service,
		cache:   cache,
	}, nil
}

func (r *runtime) Close() {
	r.manager.CloseAll()
}
