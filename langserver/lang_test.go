package langserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/codelens/errors"
)

func TestConfigForPath(t *testing.T) {
	tests := []struct {
		path string
		lang string
		ok   bool
	}{
		{"src/main.go", "go", true},
		{"go.mod", "go", true},
		{"web/app.tsx", "typescript", true},
		{"lib/index.mjs", "typescript", true},
		{"scripts/run.py", "python", true},
		{"core/lib.rs", "rust", true},
		{"Cargo.toml", "rust", true},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cfg, ok := ConfigForPath(tt.path)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.lang, cfg.Language)
			}
		})
	}
}

func TestLanguageID(t *testing.T) {
	ts, ok := ConfigForLanguage("typescript")
	require.True(t, ok)

	assert.Equal(t, "typescript", ts.LanguageID("src/app.ts"))
	assert.Equal(t, "typescriptreact", ts.LanguageID("src/App.tsx"))
	assert.Equal(t, "javascript", ts.LanguageID("legacy/util.js"))
	// Unknown extension falls back to the language name.
	assert.Equal(t, "typescript", ts.LanguageID("package.json"))
}

func TestLookupBinaryPrefersWorkspaceLocal(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "node_modules", ".bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	local := filepath.Join(binDir, "typescript-language-server")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\n"), 0755))

	ts, ok := ConfigForLanguage("typescript")
	require.True(t, ok)

	path, err := LookupBinary(ts, root)
	require.NoError(t, err)
	assert.Equal(t, local, path)
}

func TestLookupBinaryMissingEverywhere(t *testing.T) {
	cfg := ServerConfig{
		Language:    "fake",
		Command:     "definitely-not-installed-anywhere-xyz",
		InstallHint: "install with: frobnicate --now",
	}

	_, err := LookupBinary(cfg, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBinaryNotFound))
	assert.Contains(t, err.Error(), "definitely-not-installed-anywhere-xyz")

	hints := errors.GetAllHints(err)
	require.NotEmpty(t, hints, "missing binary must carry an actionable hint")
	assert.Contains(t, hints[0], "frobnicate")
}
