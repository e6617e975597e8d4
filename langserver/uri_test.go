package langserver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/codelens/errors"
)

func TestPathURIRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path string
		uri  string
	}{
		{"simple", "/home/user/project/main.go", "file:///home/user/project/main.go"},
		{"spaces", "/home/user/my project/main.go", "file:///home/user/my project/main.go"},
		{"nested", "/srv/code/internal/server/http.go", "file:///srv/code/internal/server/http.go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.uri, PathToURI(tt.path))
			assert.Equal(t, tt.path, URIToPath(tt.uri))
		})
	}
}

func TestURIToPathPassesThroughNonFileURIs(t *testing.T) {
	assert.Equal(t, "untitled:Untitled-1", URIToPath("untitled:Untitled-1"))
}

func TestResolveInWorkspace(t *testing.T) {
	root := "/workspace/app"

	tests := []struct {
		name    string
		rel     string
		want    string
		rejects bool
	}{
		{"simple", "main.go", "/workspace/app/main.go", false},
		{"nested", "src/lib/util.go", "/workspace/app/src/lib/util.go", false},
		{"dot segments collapsing inside", "src/../main.go", "/workspace/app/main.go", false},
		{"absolute path", "/etc/passwd", "", true},
		{"parent escape", "../secrets.env", "", true},
		{"deep parent escape", "src/../../../etc/passwd", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInWorkspace(root, tt.rel)
			if tt.rejects {
				require.Error(t, err)
				assert.True(t, errors.IsFileNotFound(err), "guard failures map to ErrFileNotFound")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestWorkspaceRelative(t *testing.T) {
	root := "/workspace/app"

	assert.Equal(t, "src/main.go", WorkspaceRelative(root, "file:///workspace/app/src/main.go"))
	assert.Equal(t, "main.go", WorkspaceRelative(root, "/workspace/app/main.go"))
	// Outside the root: fall back to the full path.
	assert.Equal(t, "/opt/other/x.go", WorkspaceRelative(root, "/opt/other/x.go"))
}
