// ABOUTME: MCP server subcommand
// ABOUTME: Exposes sync_run and sync_status tools over stdio
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmbridge/handlers"
)

// MCPCommand starts the MCP server on stdio
func MCPCommand(b *Bridge, version string) error {
	b.Logger.Info("starting crmbridge MCP server")

	syncHandlers := handlers.NewSyncHandlers(b.DB, b.Dispatcher, b.Engine)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "crmbridge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_run",
		Description: "Run a sync between the CRM and the partner platform (push or pull), optionally as a dry run",
	}, syncHandlers.SyncRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Show sync state per direction and the most recent sync runs",
	}, syncHandlers.SyncStatus)

	ctx := context.Background()
	return server.Run(ctx, &mcp.StdioTransport{})
}
