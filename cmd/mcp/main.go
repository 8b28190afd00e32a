// PartnerHub MCP Server - Exposes partner account tools over MCP for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/partnerhq/partnerhub/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:    envOrDefault("PARTNERHUB_API_URL", "http://localhost:8080"),
		APIKey:    os.Getenv("PARTNERHUB_API_KEY"),
		PartnerID: os.Getenv("PARTNERHUB_PARTNER_ID"),
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "PARTNERHUB_API_KEY is required")
		os.Exit(1)
	}
	if cfg.PartnerID == "" {
		fmt.Fprintln(os.Stderr, "PARTNERHUB_PARTNER_ID is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
