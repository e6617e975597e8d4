package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 30000, cfg.Analyzer.RequestTimeoutMS)
	assert.Equal(t, 5, cfg.Traversal.MaxDepth)
	assert.Equal(t, 10, cfg.Traversal.FanOutWarning)
	assert.True(t, cfg.Watcher.Enabled)
	assert.True(t, filepath.IsAbs(cfg.Workspace.Root))
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "codelens.toml")

	content := `[traversal]
max_depth = 3
fan_out_warning = 20

[watcher]
enabled = false

[languages.typescript]
binary = "/opt/tools/typescript-language-server"
args = ["--stdio", "--log-level", "1"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Traversal.MaxDepth)
	assert.Equal(t, 20, cfg.Traversal.FanOutWarning)
	assert.False(t, cfg.Watcher.Enabled)

	ts, ok := cfg.Languages["typescript"]
	require.True(t, ok)
	assert.Equal(t, "/opt/tools/typescript-language-server", ts.Binary)
	assert.Equal(t, []string{"--stdio", "--log-level", "1"}, ts.Args)

	// Untouched sections keep defaults.
	assert.Equal(t, 30000, cfg.Analyzer.RequestTimeoutMS)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
