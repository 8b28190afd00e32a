package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all PartnerHub tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("partnerhub", "1.0.0")
	client := NewPartnerHubClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetPartner, h.HandleGetPartner)
	s.AddTool(ToolListTiers, h.HandleListTiers)
	s.AddTool(ToolCheckLimit, h.HandleCheckLimit)
	s.AddTool(ToolListCustomers, h.HandleListCustomers)
	s.AddTool(ToolGetPerformance, h.HandleGetPerformance)
	s.AddTool(ToolCheckEligibility, h.HandleCheckEligibility)
	s.AddTool(ToolCommissionReport, h.HandleCommissionReport)

	return s
}
