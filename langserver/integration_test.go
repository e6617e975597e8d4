package langserver_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/codelens/callgraph"
	"github.com/teranos/codelens/langserver"
)

// These tests drive a real gopls subprocess and are skipped when gopls is not
// installed or when running with -short.

func requireGopls(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping analyzer integration test in short mode")
	}
	if _, err := exec.LookPath("gopls"); err != nil {
		t.Skip("gopls not installed")
	}
}

func writeWorkspaceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func newGoWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeWorkspaceFile(t, root, "go.mod", "module example.com/sample\n\ngo 1.24\n")
	writeWorkspaceFile(t, root, "main.go", `package main

func greet(name string) string {
	return "hello " + name
}

func main() {
	_ = greet("world")
}
`)
	return root
}

func TestGoplsOutlineAndImpact(t *testing.T) {
	requireGopls(t)

	root := newGoWorkspace(t)
	cfg, ok := langserver.ConfigForPath(filepath.Join(root, "main.go"))
	require.True(t, ok)

	client, err := langserver.NewClient(cfg, root, langserver.ClientOptions{
		RequestTimeout: 60 * time.Second,
		DisableWatcher: true,
	})
	require.NoError(t, err)
	defer client.Close()

	provider := callgraph.ProviderFunc(func(string) (callgraph.Client, error) {
		return client, nil
	})
	svc := callgraph.NewService(provider, root, callgraph.Options{})

	ctx := context.Background()
	outline, err := svc.Zoom(ctx, "main.go", 1)
	require.NoError(t, err)

	names := make([]string, 0, len(outline))
	for _, sym := range outline {
		names = append(names, sym.Name)
	}
	assert.Contains(t, names, "greet")
	assert.Contains(t, names, "main")

	analysis, err := svc.Impact(ctx, "main.go", "greet", 2)
	require.NoError(t, err)
	require.NotNil(t, analysis.Root)
	assert.Equal(t, "greet", analysis.Root.Name)
	require.GreaterOrEqual(t, len(analysis.Root.Children), 1)
	assert.Equal(t, "main", analysis.Root.Children[0].Name)
}

func TestGoplsMissingBinarySurfacesHint(t *testing.T) {
	cfg := langserver.ServerConfig{
		Language:    "go",
		Command:     "definitely-not-a-real-analyzer-binary",
		InstallHint: "install it from example.com",
	}
	_, err := langserver.NewClient(cfg, t.TempDir(), langserver.ClientOptions{DisableWatcher: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-analyzer-binary")
}
