package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/codelens/errors"
	"github.com/teranos/codelens/mcpserver"
	"github.com/teranos/codelens/version"
)

// ServeCmd runs the MCP server over stdio.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve navigation tools over MCP stdio",
	Long: `Serve code navigation tools to a coding agent over the Model Context Protocol.

The server speaks MCP on stdin/stdout; logs go to stderr. Language analyzers
spawn lazily on the first query touching a file they own and are released
when the server exits.

Example (Claude Desktop / agent config):
  { "command": "codelens", "args": ["serve", "-w", "/path/to/project"] }`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcpserver.New(rt.service, rt.cache, rt.cfg.Workspace.Root, version.Version)
	if err := srv.Serve(); err != nil {
		return errors.Wrap(err, "mcp server")
	}
	return nil
}
