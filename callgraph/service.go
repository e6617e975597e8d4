// Package callgraph exposes workspace structural queries over a language
// analyzer: symbol outlines, references, rename, and depth-bounded traversal
// of the call-hierarchy graph for impact and dependency analysis.
package callgraph

import (
	"context"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/langserver"
	"github.com/teranos/codelens/logger"
)

// Defaults for traversal bounds when Options leaves them zero.
const (
	DefaultMaxDepth      = 5
	DefaultFanOutWarning = 10
)

// Options configures a Service.
type Options struct {
	// MaxDepth is the fixed traversal ceiling; caller-requested depths are
	// clamped into [1, MaxDepth].
	MaxDepth int

	// FanOutWarning is the per-node neighbor count above which the result is
	// flagged highFanOut.
	FanOutWarning int
}

// Service answers structural queries scoped to one workspace root. Every
// caller-supplied path is validated against the root before any other work.
type Service struct {
	clients       ClientProvider
	workspaceRoot string
	maxDepth      int
	fanOutWarning int
}

// NewService creates a call-graph service over a client provider.
func NewService(clients ClientProvider, workspaceRoot string, opts Options) *Service {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	fanOutWarning := opts.FanOutWarning
	if fanOutWarning <= 0 {
		fanOutWarning = DefaultFanOutWarning
	}
	return &Service{
		clients:       clients,
		workspaceRoot: workspaceRoot,
		maxDepth:      maxDepth,
		fanOutWarning: fanOutWarning,
	}
}

// open validates a workspace-relative path and ensures its document is open,
// returning the owning client and document URI.
func (s *Service) open(ctx context.Context, path string) (Client, string, error) {
	abs, err := langserver.ResolveInWorkspace(s.workspaceRoot, path)
	if err != nil {
		return nil, "", err
	}
	client, err := s.clients.ClientFor(abs)
	if err != nil {
		return nil, "", err
	}
	uri, err := client.EnsureOpen(ctx, abs)
	if err != nil {
		return nil, "", err
	}
	return client, uri, nil
}

// Zoom returns the document outline, pruned to the requested nesting level.
// Level 1 keeps top-level symbols only; zero or negative means the full tree.
func (s *Service) Zoom(ctx context.Context, path string, level int) ([]langserver.DocumentSymbol, error) {
	client, uri, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}
	symbols, err := client.DocumentSymbols(ctx, uri)
	if err != nil {
		return nil, err
	}
	if level > 0 {
		symbols = pruneOutline(symbols, level)
	}
	return symbols, nil
}

// pruneOutline truncates children below the given nesting level.
func pruneOutline(symbols []langserver.DocumentSymbol, level int) []langserver.DocumentSymbol {
	out := make([]langserver.DocumentSymbol, len(symbols))
	for i, sym := range symbols {
		out[i] = sym
		if level <= 1 {
			out[i].Children = nil
		} else {
			out[i].Children = pruneOutline(sym.Children, level-1)
		}
	}
	return out
}

// References finds all references to the named symbol. Analyzer results pass
// through verbatim.
func (s *Service) References(ctx context.Context, path, symbol string, includeDeclaration bool) ([]langserver.Location, error) {
	client, uri, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}
	pos, err := s.resolveSymbol(ctx, client, uri, path, symbol)
	if err != nil {
		return nil, err
	}
	return client.References(ctx, uri, pos, includeDeclaration)
}

// Rename renames the named symbol across the workspace. A rename the
// analyzer declines yields a nil edit, not an error.
func (s *Service) Rename(ctx context.Context, path, symbol, newName string) (*langserver.WorkspaceEdit, error) {
	client, uri, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}
	pos, err := s.resolveSymbol(ctx, client, uri, path, symbol)
	if err != nil {
		return nil, err
	}
	return client.Rename(ctx, uri, pos, newName)
}

// Impact reports who transitively calls the named symbol: the blast radius
// of changing it.
func (s *Service) Impact(ctx context.Context, path, symbol string, depth int) (*Analysis, error) {
	return s.analyze(ctx, path, symbol, depth, Callers)
}

// Deps reports what the named symbol transitively calls.
func (s *Service) Deps(ctx context.Context, path, symbol string, depth int) (*Analysis, error) {
	return s.analyze(ctx, path, symbol, depth, Callees)
}

// resolveSymbol maps a symbol name to its selection position via the
// document outline. Nested entries are searched; the first exact name match
// wins, including across same-named overloads.
func (s *Service) resolveSymbol(ctx context.Context, client Client, uri, path, symbol string) (langserver.Position, error) {
	symbols, err := client.DocumentSymbols(ctx, uri)
	if err != nil {
		return langserver.Position{}, err
	}
	match := findSymbol(symbols, symbol)
	if match == nil {
		return langserver.Position{}, errors.NewSymbolNotFound(symbol, path)
	}
	return match.SelectionRange.Start, nil
}

// findSymbol searches named outline entries, including nested children, for
// an exact name match.
func findSymbol(symbols []langserver.DocumentSymbol, name string) *langserver.DocumentSymbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
		if match := findSymbol(symbols[i].Children, name); match != nil {
			return match
		}
	}
	return nil
}

// clampDepth bounds a requested depth into [1, maxDepth] before traversal
// starts, regardless of caller input.
func clampDepth(requested, maxDepth int) int {
	if requested < 1 {
		return 1
	}
	if requested > maxDepth {
		return maxDepth
	}
	return requested
}

func (s *Service) analyze(ctx context.Context, path, symbol string, depth int, direction Direction) (*Analysis, error) {
	client, uri, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}

	pos, err := s.resolveSymbol(ctx, client, uri, path, symbol)
	if err != nil {
		return nil, err
	}

	items, err := client.PrepareCallHierarchy(ctx, uri, pos)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.Wrapf(errors.ErrCallHierarchyUnavailable, "%q in %s", symbol, path)
	}

	effective := clampDepth(depth, s.maxDepth)
	tr := &traversal{
		client:        client,
		direction:     direction,
		fanOutWarning: s.fanOutWarning,
		visited:       make(map[positionKey]bool),
	}

	root, err := tr.expand(ctx, items[0], effective)
	if err != nil {
		// Abort-and-propagate: a lower-layer failure is never silently
		// reported as a complete tree.
		return nil, errors.Wrapf(err, "%s traversal of %q aborted", direction, symbol)
	}

	analysis := &Analysis{
		Symbol:     symbol,
		Path:       path,
		Depth:      effective,
		MaxDepth:   s.maxDepth,
		TotalNodes: countNodes(root),
		HighFanOut: tr.highFanOut,
		Root:       root,
	}
	logger.Debugw("Traversal complete",
		"symbol", symbol, "direction", direction.String(),
		"depth", effective, "nodes", analysis.TotalNodes, "highFanOut", analysis.HighFanOut)
	return analysis, nil
}

// traversal holds per-call expansion state. One traversal's neighbor fetches
// are sequential; independent traversals multiplex over the same connection.
type traversal struct {
	client        Client
	direction     Direction
	fanOutWarning int
	visited       map[positionKey]bool
	highFanOut    bool
}

// expand builds the node for one call-hierarchy item. The visited check runs
// before any expansion: an already-seen position returns as a back-edge leaf,
// and a position at the depth ceiling returns without fetching neighbors.
func (tr *traversal) expand(ctx context.Context, item langserver.CallHierarchyItem, remaining int) (*Node, error) {
	node := &Node{
		Name: item.Name,
		Kind: langserver.SymbolKindName(item.Kind),
		Location: langserver.Location{
			URI:   item.URI,
			Range: item.SelectionRange,
		},
	}

	key := keyOf(item)
	if tr.visited[key] {
		node.revisit = true
		return node, nil
	}
	tr.visited[key] = true

	if remaining <= 0 {
		node.truncated = true
		return node, nil
	}

	neighbors, err := tr.neighbors(ctx, item)
	if err != nil {
		return nil, err
	}

	node.FanOut = len(neighbors)
	if node.FanOut > tr.fanOutWarning {
		tr.highFanOut = true
	}

	for _, neighbor := range neighbors {
		child, err := tr.expand(ctx, neighbor, remaining-1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// neighbors fetches one node's immediate callers or callees.
func (tr *traversal) neighbors(ctx context.Context, item langserver.CallHierarchyItem) ([]langserver.CallHierarchyItem, error) {
	if tr.direction == Callees {
		calls, err := tr.client.OutgoingCalls(ctx, item)
		if err != nil {
			return nil, err
		}
		items := make([]langserver.CallHierarchyItem, len(calls))
		for i, call := range calls {
			items[i] = call.To
		}
		return items, nil
	}

	calls, err := tr.client.IncomingCalls(ctx, item)
	if err != nil {
		return nil, err
	}
	items := make([]langserver.CallHierarchyItem, len(calls))
	for i, call := range calls {
		items[i] = call.From
	}
	return items, nil
}

// countNodes sums 1 + recursive children counts from the root.
func countNodes(node *Node) int {
	if node == nil {
		return 0
	}
	total := 1
	for _, child := range node.Children {
		total += countNodes(child)
	}
	return total
}
