package callgraph

import (
	"context"

	"github.com/teranos/codelens/langserver"
)

// Client is the analyzer surface the call-graph service consumes. Narrowed to
// an interface so traversal logic is testable against a scripted graph.
type Client interface {
	EnsureOpen(ctx context.Context, path string) (string, error)
	DocumentSymbols(ctx context.Context, uri string) ([]langserver.DocumentSymbol, error)
	PrepareCallHierarchy(ctx context.Context, uri string, pos langserver.Position) ([]langserver.CallHierarchyItem, error)
	IncomingCalls(ctx context.Context, item langserver.CallHierarchyItem) ([]langserver.CallHierarchyIncomingCall, error)
	OutgoingCalls(ctx context.Context, item langserver.CallHierarchyItem) ([]langserver.CallHierarchyOutgoingCall, error)
	References(ctx context.Context, uri string, pos langserver.Position, includeDeclaration bool) ([]langserver.Location, error)
	Rename(ctx context.Context, uri string, pos langserver.Position, newName string) (*langserver.WorkspaceEdit, error)
}

// ClientProvider hands out the client owning a path, acquiring analyzers
// lazily on first use.
type ClientProvider interface {
	ClientFor(path string) (Client, error)
}

// ProviderFunc adapts a function to ClientProvider.
type ProviderFunc func(path string) (Client, error)

// ClientFor implements ClientProvider.
func (f ProviderFunc) ClientFor(path string) (Client, error) {
	return f(path)
}

// Direction selects which neighbors a traversal expands.
type Direction int

const (
	// Callers walks incoming calls: who would break if this changed.
	Callers Direction = iota
	// Callees walks outgoing calls: what this symbol depends on.
	Callees
)

func (d Direction) String() string {
	if d == Callees {
		return "callees"
	}
	return "callers"
}

// Node is one vertex of an analysis result tree.
//
// FanOut counts the neighbors actually fetched for this node. A node cut off
// by the depth ceiling also reports zero, distinguishable internally from a
// genuine leaf via the truncated marker.
type Node struct {
	Name     string             `json:"name"`
	Kind     string             `json:"kind"`
	Location langserver.Location `json:"location"`
	FanOut   int                `json:"fanOut"`
	Children []*Node            `json:"children"`

	// truncated: neighbors were never fetched because the depth ceiling was
	// hit here. revisit: this position was already expanded elsewhere in the
	// traversal (a cycle back-edge).
	truncated bool
	revisit   bool
}

// Analysis is the aggregated result of one impact or dependency traversal.
// It is built bottom-up during the call and holds no live analyzer state.
type Analysis struct {
	Symbol     string `json:"symbol"`
	Path       string `json:"path"`
	Depth      int    `json:"depth"`
	MaxDepth   int    `json:"maxDepth"`
	TotalNodes int    `json:"totalNodes"`
	HighFanOut bool   `json:"highFanOut"`
	Root       *Node  `json:"root"`
}

// positionKey identifies one (uri, line, character) position. The visited set
// is keyed on it so each position expands at most once per traversal,
// guaranteeing termination on cyclic call graphs.
type positionKey struct {
	uri       string
	line      int
	character int
}

func keyOf(item langserver.CallHierarchyItem) positionKey {
	return positionKey{
		uri:       item.URI,
		line:      item.SelectionRange.Start.Line,
		character: item.SelectionRange.Start.Character,
	}
}
