package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ringvault/ringvault/internal/mcp"
	rvserver "github.com/ringvault/ringvault/internal/server"
)

var (
	mcpServerURL string

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio, backed by a remote RingVault server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mcp.New(mcp.NewHTTPClient(mcpServerURL), rvserver.Version, log)
			log.Info().Str("server", mcpServerURL).Msg("serving MCP over stdio")
			return server.ServeStdio(s)
		},
	}
)

func init() {
	mcpCmd.Flags().StringVar(&mcpServerURL, "server", "http://localhost:5002", "RingVault server URL")
}
