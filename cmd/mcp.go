package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server exposing the issue tools",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The tools forward to the API server at server.url, so run
'issuetracker serve' (or 'serve start') first. Configure a client with:

  {
    "mcpServers": {
      "issuetracker": { "command": "issuetracker", "args": ["mcp"] }
    }
  }

Available tools: issue_list, issue_create, issue_update, issue_delete`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()
		return mcp.NewServer(apiClient(), buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
