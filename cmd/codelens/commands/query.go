package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/codelens/callgraph"
)

// ZoomCmd prints a file's symbol outline.
var ZoomCmd = &cobra.Command{
	Use:   "zoom <file>",
	Short: "Show a file's symbol outline",
	Long: `Show a file's symbol outline at an adjustable nesting level.

Level 1 shows top-level symbols only, higher levels include nested members,
and level 0 shows the full tree.

Examples:
  codelens zoom internal/auth/token.go
  codelens zoom internal/auth/token.go --level 2`,
	Args: cobra.ExactArgs(1),
	RunE: runZoom,
}

// ImpactCmd walks incoming calls.
var ImpactCmd = &cobra.Command{
	Use:   "impact <file> <symbol>",
	Short: "Show everything that calls a symbol",
	Long: `Walk the call hierarchy upward from a symbol: everything listed would be
affected by changing it.

Example:
  codelens impact internal/auth/token.go Validate --depth 4`,
	Args: cobra.ExactArgs(2),
	RunE: runImpact,
}

// DepsCmd walks outgoing calls.
var DepsCmd = &cobra.Command{
	Use:   "deps <file> <symbol>",
	Short: "Show everything a symbol calls",
	Long: `Walk the call hierarchy downward from a symbol: everything it depends on
to do its work.

Example:
  codelens deps cmd/server/main.go run`,
	Args: cobra.ExactArgs(2),
	RunE: runDeps,
}

// ReferencesCmd lists references to a symbol.
var ReferencesCmd = &cobra.Command{
	Use:   "references <file> <symbol>",
	Short: "Find all references to a symbol",
	Args:  cobra.ExactArgs(2),
	RunE:  runReferences,
}

// RenameCmd renames a symbol across the workspace.
var RenameCmd = &cobra.Command{
	Use:   "rename <file> <symbol> <new-name>",
	Short: "Rename a symbol across the workspace",
	Args:  cobra.ExactArgs(3),
	RunE:  runRename,
}

// SearchCmd searches the workspace symbol index.
var SearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search top-level declarations by name",
	Long: `Search top-level declarations across the workspace by case-insensitive name
substring. Served from the tree-sitter index, no analyzer is spawned.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var jsonOutput bool

func init() {
	ZoomCmd.Flags().Int("level", 1, "Nesting depth to show; 0 for the full tree")
	ImpactCmd.Flags().Int("depth", 3, "Traversal depth")
	DepsCmd.Flags().Int("depth", 3, "Traversal depth")
	ReferencesCmd.Flags().Bool("include-declaration", true, "Include the declaration itself")

	for _, cmd := range []*cobra.Command{ZoomCmd, ImpactCmd, DepsCmd, ReferencesCmd, RenameCmd, SearchCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	}
}

func runZoom(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	level, _ := cmd.Flags().GetInt("level")
	outline, err := rt.service.Zoom(context.Background(), args[0], level)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, outline)
	}
	if len(outline) == 0 {
		cmd.Println("No symbols found")
		return nil
	}
	printOutline(cmd, outline, 0)
	return nil
}

func runImpact(cmd *cobra.Command, args []string) error {
	return runTraversal(cmd, args, callgraph.Callers)
}

func runDeps(cmd *cobra.Command, args []string) error {
	return runTraversal(cmd, args, callgraph.Callees)
}

func runTraversal(cmd *cobra.Command, args []string, direction callgraph.Direction) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	depth, _ := cmd.Flags().GetInt("depth")
	ctx := context.Background()

	var analysis *callgraph.Analysis
	if direction == callgraph.Callees {
		analysis, err = rt.service.Deps(ctx, args[0], args[1], depth)
	} else {
		analysis, err = rt.service.Impact(ctx, args[0], args[1], depth)
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, analysis)
	}
	printAnalysis(cmd, analysis, rt.cfg.Workspace.Root)
	return nil
}

func runReferences(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	includeDecl, _ := cmd.Flags().GetBool("include-declaration")
	locations, err := rt.service.References(context.Background(), args[0], args[1], includeDecl)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, locations)
	}
	if len(locations) == 0 {
		cmd.Println("No references found")
		return nil
	}
	printLocations(cmd, locations, rt.cfg.Workspace.Root)
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	edit, err := rt.service.Rename(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if edit == nil {
		cmd.Println("Analyzer declined the rename")
		return nil
	}
	if jsonOutput {
		return printJSON(cmd, edit)
	}
	printWorkspaceEdit(cmd, edit, rt.cfg.Workspace.Root)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cache.Scan(context.Background()); err != nil {
		return err
	}
	results := rt.cache.Search(args[0])
	if jsonOutput {
		return printJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Println("No matching symbols")
		return nil
	}
	for _, sym := range results {
		cmd.Printf("%s (%s) %s:%d\n", sym.Name, sym.Kind, sym.Path, sym.Line)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
