package langserver

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/teranos/codelens/errors"
)

// ServerConfig is the data-only record describing how to drive one language
// analyzer: what to spawn, which files it owns, and how paths map to language
// ids. One generic Client consumes any of these; there is no per-language
// client type.
type ServerConfig struct {
	// Language is the canonical name used in configuration ("go",
	// "typescript", "python", "rust").
	Language string

	// Command is the analyzer binary name.
	Command string

	// Args are the flags putting the analyzer into stdio JSON-RPC mode.
	Args []string

	// LanguageIDs maps file extensions (with leading dot) to the language id
	// sent in didOpen.
	LanguageIDs map[string]string

	// Extensions are the watched file extensions (with leading dot).
	Extensions []string

	// Filenames are exact watched file names without extension matches
	// (e.g. go.mod).
	Filenames []string

	// LocalSearchPaths are workspace-relative directories checked for the
	// binary before the global PATH.
	LocalSearchPaths []string

	// InstallHint tells the user how to get the binary when lookup fails.
	InstallHint string
}

// LanguageID returns the didOpen language id for a path, falling back to the
// config's language name.
func (c ServerConfig) LanguageID(path string) string {
	if id, ok := c.LanguageIDs[strings.ToLower(filepath.Ext(path))]; ok {
		return id
	}
	return c.Language
}

// Matches reports whether a path belongs to this analyzer's watched set.
func (c ServerConfig) Matches(path string) bool {
	base := filepath.Base(path)
	for _, name := range c.Filenames {
		if base == name {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Builtin analyzer records.
var builtinConfigs = []ServerConfig{
	{
		Language:    "go",
		Command:     "gopls",
		Args:        []string{"serve"},
		LanguageIDs: map[string]string{".go": "go"},
		Extensions:  []string{".go"},
		Filenames:   []string{"go.mod", "go.sum"},
		InstallHint: "install gopls with: go install golang.org/x/tools/gopls@latest",
	},
	{
		Language: "typescript",
		Command:  "typescript-language-server",
		Args:     []string{"--stdio"},
		LanguageIDs: map[string]string{
			".ts":  "typescript",
			".tsx": "typescriptreact",
			".js":  "javascript",
			".jsx": "javascriptreact",
			".mts": "typescript",
			".cts": "typescript",
			".mjs": "javascript",
			".cjs": "javascript",
		},
		Extensions:       []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"},
		Filenames:        []string{"tsconfig.json", "package.json"},
		LocalSearchPaths: []string{filepath.Join("node_modules", ".bin")},
		InstallHint:      "install with: npm install -g typescript-language-server typescript",
	},
	{
		Language:    "python",
		Command:     "pyright-langserver",
		Args:        []string{"--stdio"},
		LanguageIDs: map[string]string{".py": "python", ".pyi": "python"},
		Extensions:  []string{".py", ".pyi"},
		LocalSearchPaths: []string{
			filepath.Join("node_modules", ".bin"),
			filepath.Join(".venv", "bin"),
		},
		InstallHint: "install with: npm install -g pyright",
	},
	{
		Language:    "rust",
		Command:     "rust-analyzer",
		Args:        nil,
		LanguageIDs: map[string]string{".rs": "rust"},
		Extensions:  []string{".rs"},
		Filenames:   []string{"Cargo.toml"},
		InstallHint: "install with: rustup component add rust-analyzer",
	},
}

// ConfigForLanguage returns the builtin record for a language name.
func ConfigForLanguage(lang string) (ServerConfig, bool) {
	for _, c := range builtinConfigs {
		if c.Language == lang {
			return c, true
		}
	}
	return ServerConfig{}, false
}

// ConfigForPath returns the builtin record owning a path, by extension or
// exact filename.
func ConfigForPath(path string) (ServerConfig, bool) {
	for _, c := range builtinConfigs {
		if c.Matches(path) {
			return c, true
		}
	}
	return ServerConfig{}, false
}

// Languages lists the builtin language names.
func Languages() []string {
	names := make([]string, 0, len(builtinConfigs))
	for _, c := range builtinConfigs {
		names = append(names, c.Language)
	}
	return names
}

// LookupBinary locates the analyzer binary: workspace-local search paths
// first, then the global PATH. Returns ErrBinaryNotFound with an actionable
// hint when absent everywhere.
func LookupBinary(cfg ServerConfig, workspaceRoot string) (string, error) {
	searched := make([]string, 0, len(cfg.LocalSearchPaths)+1)

	for _, rel := range cfg.LocalSearchPaths {
		candidate := filepath.Join(workspaceRoot, rel, cfg.Command)
		searched = append(searched, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(cfg.Command); err == nil {
		return path, nil
	}
	searched = append(searched, "$PATH")

	err := errors.Wrapf(errors.ErrBinaryNotFound,
		"%s (searched: %s)", cfg.Command, strings.Join(searched, ", "))
	if cfg.InstallHint != "" {
		err = errors.WithHint(err, cfg.InstallHint)
	}
	return "", err
}
