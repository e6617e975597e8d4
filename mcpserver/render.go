package mcpserver

import (
	"fmt"
	"strings"

	"github.com/teranos/codelens/callgraph"
	"github.com/teranos/codelens/langserver"
	"github.com/teranos/codelens/symbols"
)

// renderAnalysis prints a traversal tree with one indented line per node.
// Lines and columns are shown 1-based.
func renderAnalysis(a *callgraph.Analysis, root string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q: %d node(s), depth %d/%d", a.Symbol, a.TotalNodes, a.Depth, a.MaxDepth)
	if a.HighFanOut {
		b.WriteString(" [high fan-out]")
	}
	b.WriteByte('\n')
	renderNode(&b, a.Root, root, 0)
	return b.String()
}

func renderNode(b *strings.Builder, node *callgraph.Node, root string, indent int) {
	if node == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(b, "%s (%s) %s", node.Name, node.Kind, formatLocation(node.Location, root))
	if node.FanOut > 0 {
		fmt.Fprintf(b, " [%d]", node.FanOut)
	}
	b.WriteByte('\n')
	for _, child := range node.Children {
		renderNode(b, child, root, indent+1)
	}
}

func renderOutline(outline []langserver.DocumentSymbol) string {
	var b strings.Builder
	renderOutlineLevel(&b, outline, 0)
	return b.String()
}

func renderOutlineLevel(b *strings.Builder, syms []langserver.DocumentSymbol, indent int) {
	for _, sym := range syms {
		b.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(b, "%s (%s) line %d\n", sym.Name, langserver.SymbolKindName(sym.Kind), sym.SelectionRange.Start.Line+1)
		renderOutlineLevel(b, sym.Children, indent+1)
	}
}

func renderLocations(locations []langserver.Location, root string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d reference(s):\n", len(locations))
	for i, loc := range locations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatLocation(loc, root))
	}
	return b.String()
}

func renderWorkspaceEdit(edit *langserver.WorkspaceEdit, root string) string {
	var b strings.Builder
	total := 0
	var files []string
	for uri, edits := range edit.Changes {
		total += len(edits)
		files = append(files, relativeURI(uri, root))
	}
	for _, docEdit := range edit.DocumentChanges {
		total += len(docEdit.Edits)
		files = append(files, relativeURI(docEdit.TextDocument.URI, root))
	}
	fmt.Fprintf(&b, "Rename touches %d edit(s) across %d file(s):\n", total, len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

func renderSymbols(results []symbols.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d symbol(s):\n", len(results))
	for i, sym := range results {
		fmt.Fprintf(&b, "%d. %s (%s) %s:%d\n", i+1, sym.Name, sym.Kind, sym.Path, sym.Line)
	}
	return b.String()
}

func formatLocation(loc langserver.Location, root string) string {
	return fmt.Sprintf("%s:%d:%d",
		relativeURI(loc.URI, root),
		loc.Range.Start.Line+1,
		loc.Range.Start.Character+1,
	)
}

func relativeURI(uri, root string) string {
	return langserver.WorkspaceRelative(root, langserver.URIToPath(uri))
}
