package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/codelens/callgraph"
	"github.com/teranos/codelens/langserver"
)

// Human-readable printers for the one-shot commands. Lines and columns are
// shown 1-based; paths are workspace-relative.

func printOutline(cmd *cobra.Command, syms []langserver.DocumentSymbol, indent int) {
	for _, sym := range syms {
		cmd.Printf("%s%s (%s) line %d\n",
			strings.Repeat("  ", indent),
			sym.Name,
			langserver.SymbolKindName(sym.Kind),
			sym.SelectionRange.Start.Line+1,
		)
		printOutline(cmd, sym.Children, indent+1)
	}
}

func printAnalysis(cmd *cobra.Command, a *callgraph.Analysis, root string) {
	cmd.Printf("%q: %d node(s), depth %d/%d", a.Symbol, a.TotalNodes, a.Depth, a.MaxDepth)
	if a.HighFanOut {
		cmd.Print(" [high fan-out]")
	}
	cmd.Println()
	printNode(cmd, a.Root, root, 0)
}

func printNode(cmd *cobra.Command, node *callgraph.Node, root string, indent int) {
	if node == nil {
		return
	}
	cmd.Printf("%s%s (%s) %s", strings.Repeat("  ", indent), node.Name, node.Kind, formatLocation(node.Location, root))
	if node.FanOut > 0 {
		cmd.Printf(" [%d]", node.FanOut)
	}
	cmd.Println()
	for _, child := range node.Children {
		printNode(cmd, child, root, indent+1)
	}
}

func printLocations(cmd *cobra.Command, locations []langserver.Location, root string) {
	cmd.Printf("Found %d reference(s):\n", len(locations))
	for _, loc := range locations {
		cmd.Printf("  %s\n", formatLocation(loc, root))
	}
}

func printWorkspaceEdit(cmd *cobra.Command, edit *langserver.WorkspaceEdit, root string) {
	total := 0
	var files []string
	for uri, edits := range edit.Changes {
		total += len(edits)
		files = append(files, langserver.WorkspaceRelative(root, uri))
	}
	for _, docEdit := range edit.DocumentChanges {
		total += len(docEdit.Edits)
		files = append(files, langserver.WorkspaceRelative(root, docEdit.TextDocument.URI))
	}
	cmd.Printf("Rename touches %d edit(s) across %d file(s):\n", total, len(files))
	for _, f := range files {
		cmd.Printf("  %s\n", f)
	}
}

func formatLocation(loc langserver.Location, root string) string {
	return fmt.Sprintf("%s:%d:%d",
		langserver.WorkspaceRelative(root, loc.URI),
		loc.Range.Start.Line+1,
		loc.Range.Start.Character+1,
	)
}
