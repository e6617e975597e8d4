package callgraph

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/langserver"
)

const testRoot = "/workspace/app"

// fakeClient serves a scripted call graph. Symbols and edges are keyed by
// name; every method counts its invocations.
type fakeClient struct {
	mu sync.Mutex

	outlines map[string][]langserver.DocumentSymbol // by uri
	prepared map[string][]langserver.CallHierarchyItem
	incoming map[string][]langserver.CallHierarchyItem // callers by item name
	outgoing map[string][]langserver.CallHierarchyItem // callees by item name

	incomingErr map[string]error

	ensureOpenCalls int
	incomingCalls   map[string]int

	references []langserver.Location
	renameEdit *langserver.WorkspaceEdit
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		outlines:      make(map[string][]langserver.DocumentSymbol),
		prepared:      make(map[string][]langserver.CallHierarchyItem),
		incoming:      make(map[string][]langserver.CallHierarchyItem),
		outgoing:      make(map[string][]langserver.CallHierarchyItem),
		incomingErr:   make(map[string]error),
		incomingCalls: make(map[string]int),
	}
}

func (f *fakeClient) EnsureOpen(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureOpenCalls++
	return langserver.PathToURI(path), nil
}

func (f *fakeClient) DocumentSymbols(_ context.Context, uri string) ([]langserver.DocumentSymbol, error) {
	return f.outlines[uri], nil
}

func (f *fakeClient) PrepareCallHierarchy(_ context.Context, uri string, _ langserver.Position) ([]langserver.CallHierarchyItem, error) {
	return f.prepared[uri], nil
}

func (f *fakeClient) IncomingCalls(_ context.Context, item langserver.CallHierarchyItem) ([]langserver.CallHierarchyIncomingCall, error) {
	f.mu.Lock()
	f.incomingCalls[item.Name]++
	f.mu.Unlock()
	if err := f.incomingErr[item.Name]; err != nil {
		return nil, err
	}
	calls := make([]langserver.CallHierarchyIncomingCall, 0, len(f.incoming[item.Name]))
	for _, from := range f.incoming[item.Name] {
		calls = append(calls, langserver.CallHierarchyIncomingCall{From: from})
	}
	return calls, nil
}

func (f *fakeClient) OutgoingCalls(_ context.Context, item langserver.CallHierarchyItem) ([]langserver.CallHierarchyOutgoingCall, error) {
	calls := make([]langserver.CallHierarchyOutgoingCall, 0, len(f.outgoing[item.Name]))
	for _, to := range f.outgoing[item.Name] {
		calls = append(calls, langserver.CallHierarchyOutgoingCall{To: to})
	}
	return calls, nil
}

func (f *fakeClient) References(_ context.Context, _ string, _ langserver.Position, _ bool) ([]langserver.Location, error) {
	return f.references, nil
}

func (f *fakeClient) Rename(_ context.Context, _ string, _ langserver.Position, _ string) (*langserver.WorkspaceEdit, error) {
	return f.renameEdit, nil
}

// item builds a call-hierarchy handle at a distinct position derived from
// name length and line so visited-set keys stay unique per symbol.
func item(name, uri string, line int) langserver.CallHierarchyItem {
	return langserver.CallHierarchyItem{
		Name: name,
		Kind: 12, // function
		URI:  uri,
		SelectionRange: langserver.Range{
			Start: langserver.Position{Line: line, Character: 0},
			End:   langserver.Position{Line: line, Character: len(name)},
		},
	}
}

func symbolEntry(name string, line int) langserver.DocumentSymbol {
	return langserver.DocumentSymbol{
		Name: name,
		Kind: 12,
		SelectionRange: langserver.Range{
			Start: langserver.Position{Line: line, Character: 0},
		},
	}
}

func newTestService(fake *fakeClient) *Service {
	provider := ProviderFunc(func(string) (Client, error) { return fake, nil })
	return NewService(provider, testRoot, Options{MaxDepth: 5, FanOutWarning: 10})
}

func TestImpactFindsTransitiveCallers(t *testing.T) {
	fake := newFakeClient()
	uriA := langserver.PathToURI(testRoot + "/a.ts")
	uriB := langserver.PathToURI(testRoot + "/b.ts")

	outer := item("outer", uriA, 3)
	caller := item("useOuter", uriB, 10)

	fake.outlines[uriA] = []langserver.DocumentSymbol{symbolEntry("outer", 3)}
	fake.prepared[uriA] = []langserver.CallHierarchyItem{outer}
	fake.incoming["outer"] = []langserver.CallHierarchyItem{caller}

	svc := newTestService(fake)
	analysis, err := svc.Impact(context.Background(), "a.ts", "outer", 2)
	require.NoError(t, err)

	assert.Equal(t, "outer", analysis.Root.Name)
	assert.Equal(t, 1, analysis.Root.FanOut)
	require.Len(t, analysis.Root.Children, 1)
	assert.Equal(t, "useOuter", analysis.Root.Children[0].Name)
	assert.Equal(t, uriB, analysis.Root.Children[0].Location.URI)
	assert.Equal(t, 2, analysis.TotalNodes)
	assert.Equal(t, 2, analysis.Depth)
	assert.False(t, analysis.HighFanOut)
}

func TestImpactSymbolNotFound(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/a.ts")
	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("somethingElse", 1)}

	svc := newTestService(fake)
	_, err := svc.Impact(context.Background(), "a.ts", "missing", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSymbolNotFound))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestImpactFindsNestedSymbols(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/a.ts")

	class := symbolEntry("Service", 1)
	class.Children = []langserver.DocumentSymbol{symbolEntry("handleRequest", 5)}
	fake.outlines[uri] = []langserver.DocumentSymbol{class}
	fake.prepared[uri] = []langserver.CallHierarchyItem{item("handleRequest", uri, 5)}

	svc := newTestService(fake)
	analysis, err := svc.Impact(context.Background(), "a.ts", "handleRequest", 1)
	require.NoError(t, err)
	assert.Equal(t, "handleRequest", analysis.Root.Name)
}

func TestImpactCallHierarchyUnavailable(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/a.ts")
	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("greet", 1)}
	// No prepared items for this uri.

	svc := newTestService(fake)
	_, err := svc.Impact(context.Background(), "a.ts", "greet", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCallHierarchyUnavailable))
}

func TestMutualRecursionTerminates(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/rec.ts")

	a := item("alpha", uri, 1)
	b := item("beta", uri, 10)

	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("alpha", 1)}
	fake.prepared[uri] = []langserver.CallHierarchyItem{a}
	fake.incoming["alpha"] = []langserver.CallHierarchyItem{b}
	fake.incoming["beta"] = []langserver.CallHierarchyItem{a}

	svc := newTestService(fake)
	analysis, err := svc.Impact(context.Background(), "rec.ts", "alpha", 5)
	require.NoError(t, err)

	// alpha -> beta -> alpha(back-edge leaf); finite despite the cycle.
	assert.Equal(t, 3, analysis.TotalNodes)
	assert.Equal(t, 1, fake.incomingCalls["alpha"], "each position expands at most once")
	assert.Equal(t, 1, fake.incomingCalls["beta"])

	backEdge := analysis.Root.Children[0].Children[0]
	assert.Equal(t, "alpha", backEdge.Name)
	assert.True(t, backEdge.revisit)
	assert.Equal(t, 0, backEdge.FanOut)
}

func TestDepthClamping(t *testing.T) {
	tests := []struct {
		requested int
		effective int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{99, 5},
	}

	for _, tt := range tests {
		fake := newFakeClient()
		uri := langserver.PathToURI(testRoot + "/chain.ts")

		// A ten-deep caller chain: f0 <- f1 <- ... <- f10.
		fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("f0", 0)}
		fake.prepared[uri] = []langserver.CallHierarchyItem{item("f0", uri, 0)}
		for i := 0; i < 10; i++ {
			caller := item("f"+strconv.Itoa(i+1), uri, (i+1)*10)
			fake.incoming["f"+strconv.Itoa(i)] = []langserver.CallHierarchyItem{caller}
		}

		svc := newTestService(fake)
		analysis, err := svc.Impact(context.Background(), "chain.ts", "f0", tt.requested)
		require.NoError(t, err, "requested depth %d", tt.requested)

		assert.Equal(t, tt.effective, analysis.Depth, "requested depth %d", tt.requested)
		// A linear chain yields depth+1 nodes.
		assert.Equal(t, tt.effective+1, analysis.TotalNodes, "requested depth %d", tt.requested)
	}
}

func TestDepthCutoffDistinguishableFromGenuineLeaf(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/mix.ts")

	root := item("root", uri, 0)
	withMore := item("hasCallers", uri, 10)
	deadEnd := item("deadEnd", uri, 20)
	beyond := item("beyond", uri, 30)

	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("root", 0)}
	fake.prepared[uri] = []langserver.CallHierarchyItem{root}
	fake.incoming["root"] = []langserver.CallHierarchyItem{withMore, deadEnd}
	fake.incoming["hasCallers"] = []langserver.CallHierarchyItem{beyond}
	fake.incoming["beyond"] = []langserver.CallHierarchyItem{item("deep", uri, 40)}
	// deadEnd genuinely has no callers.

	svc := newTestService(fake)
	analysis, err := svc.Impact(context.Background(), "mix.ts", "root", 2)
	require.NoError(t, err)

	require.Len(t, analysis.Root.Children, 2)
	leaf := analysis.Root.Children[1]
	require.Len(t, analysis.Root.Children[0].Children, 1)
	cutoff := analysis.Root.Children[0].Children[0]

	// Both render as zero fan-out, but only the cutoff is marked truncated.
	assert.Equal(t, 0, cutoff.FanOut)
	assert.Equal(t, 0, leaf.FanOut)
	assert.True(t, cutoff.truncated)
	assert.False(t, leaf.truncated)
	assert.Equal(t, 0, fake.incomingCalls["beyond"], "no fetch past the ceiling")
}

func TestHighFanOutFlag(t *testing.T) {
	for _, tt := range []struct {
		callers int
		flagged bool
	}{
		{10, false},
		{11, true},
	} {
		fake := newFakeClient()
		uri := langserver.PathToURI(testRoot + "/fan.ts")

		fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("hub", 0)}
		fake.prepared[uri] = []langserver.CallHierarchyItem{item("hub", uri, 0)}
		callers := make([]langserver.CallHierarchyItem, tt.callers)
		for i := range callers {
			callers[i] = item("caller", uri, i+1)
		}
		fake.incoming["hub"] = callers

		svc := newTestService(fake)
		analysis, err := svc.Impact(context.Background(), "fan.ts", "hub", 2)
		require.NoError(t, err)

		assert.Equal(t, tt.flagged, analysis.HighFanOut, "%d callers", tt.callers)
		assert.Equal(t, tt.callers, analysis.Root.FanOut)
	}
}

func TestDepsWalksCallees(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/deps.ts")

	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("orchestrate", 0)}
	fake.prepared[uri] = []langserver.CallHierarchyItem{item("orchestrate", uri, 0)}
	fake.outgoing["orchestrate"] = []langserver.CallHierarchyItem{
		item("fetchData", uri, 10),
		item("writeResult", uri, 20),
	}

	svc := newTestService(fake)
	analysis, err := svc.Deps(context.Background(), "deps.ts", "orchestrate", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, analysis.Root.FanOut)
	require.Len(t, analysis.Root.Children, 2)
	assert.Equal(t, "fetchData", analysis.Root.Children[0].Name)
	assert.Equal(t, "writeResult", analysis.Root.Children[1].Name)
}

func TestMidTraversalFailureAborts(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/err.ts")

	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("top", 0)}
	fake.prepared[uri] = []langserver.CallHierarchyItem{item("top", uri, 0)}
	fake.incoming["top"] = []langserver.CallHierarchyItem{item("mid", uri, 10)}
	fake.incomingErr["mid"] = errors.Wrap(errors.ErrTimeout, "callHierarchy/incomingCalls")

	svc := newTestService(fake)
	analysis, err := svc.Impact(context.Background(), "err.ts", "top", 3)

	require.Error(t, err, "partial trees are never reported as complete")
	assert.Nil(t, analysis)
	assert.True(t, errors.Is(err, errors.ErrTimeout), "underlying failure propagates unchanged")
}

func TestPathGuardRejectsEscapes(t *testing.T) {
	provider := ProviderFunc(func(string) (Client, error) {
		t.Fatal("provider must not be consulted for rejected paths")
		return nil, nil
	})
	svc := NewService(provider, testRoot, Options{})

	for _, path := range []string{"../outside.ts", "/etc/passwd", "a/../../b.ts"} {
		_, err := svc.Impact(context.Background(), path, "x", 1)
		require.Error(t, err, "path %s", path)
		assert.True(t, errors.IsFileNotFound(err), "path %s", path)
	}
}

func TestZoomPrunesToLevel(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/outline.ts")

	method := symbolEntry("run", 5)
	method.Children = []langserver.DocumentSymbol{symbolEntry("helper", 6)}
	class := symbolEntry("Runner", 1)
	class.Children = []langserver.DocumentSymbol{method}
	fake.outlines[uri] = []langserver.DocumentSymbol{class}

	svc := newTestService(fake)

	top, err := svc.Zoom(context.Background(), "outline.ts", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Empty(t, top[0].Children)

	two, err := svc.Zoom(context.Background(), "outline.ts", 2)
	require.NoError(t, err)
	require.Len(t, two[0].Children, 1)
	assert.Empty(t, two[0].Children[0].Children)

	full, err := svc.Zoom(context.Background(), "outline.ts", 0)
	require.NoError(t, err)
	assert.Len(t, full[0].Children[0].Children, 1)
}

func TestZoomEmptyOutlineIsNotAnError(t *testing.T) {
	fake := newFakeClient()

	svc := newTestService(fake)
	symbols, err := svc.Zoom(context.Background(), "empty.ts", 0)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestReferencesPassThrough(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/refs.ts")

	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("target", 2)}
	fake.references = []langserver.Location{
		{URI: uri, Range: langserver.Range{Start: langserver.Position{Line: 7}}},
	}

	svc := newTestService(fake)
	locations, err := svc.References(context.Background(), "refs.ts", "target", true)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, 7, locations[0].Range.Start.Line)
}

func TestRenameDeclinedYieldsNilEdit(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/ren.ts")
	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("oldName", 2)}
	// renameEdit stays nil: the analyzer declined.

	svc := newTestService(fake)
	edit, err := svc.Rename(context.Background(), "ren.ts", "oldName", "newName")
	require.NoError(t, err)
	assert.Nil(t, edit)
}

func TestEveryQueryEnsuresDocumentOpen(t *testing.T) {
	fake := newFakeClient()
	uri := langserver.PathToURI(testRoot + "/open.ts")
	fake.outlines[uri] = []langserver.DocumentSymbol{symbolEntry("fn", 0)}

	svc := newTestService(fake)
	_, err := svc.Zoom(context.Background(), "open.ts", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.ensureOpenCalls)
}
