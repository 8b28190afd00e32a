package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the PartnerHub MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetPartner = mcp.NewTool("get_partner",
	mcp.WithDescription(
		"Look up your partner account on PartnerHub. "+
			"Returns your tier, status, reporting timezone, and the commission rate "+
			"currently applied to new revenue."),
)

var ToolListTiers = mcp.NewTool("list_tiers",
	mcp.WithDescription(
		"List the PartnerHub tier catalog. "+
			"Shows each tier's commission rate, resource limits, benefits, and the "+
			"thresholds required to reach it."),
)

var ToolCheckLimit = mcp.NewTool("check_limit",
	mcp.WithDescription(
		"Check whether your tier allows consuming more of a resource before you try. "+
			"Use this before onboarding a customer or adding tenants, users, storage, "+
			"or custom domains. A denial explains which limit was hit."),
	mcp.WithString("resource",
		mcp.Required(),
		mcp.Description("Resource kind to check"),
		mcp.Enum("customers", "tenants_per_customer", "users_per_tenant",
			"storage_gb", "api_calls_per_month", "custom_domains")),
	mcp.WithNumber("delta",
		mcp.Description("How many more units you want to consume (default 1)")),
	mcp.WithNumber("current",
		mcp.Description("Current usage, for resources PartnerHub does not meter itself. Ignored for 'customers'.")),
)

var ToolListCustomers = mcp.NewTool("list_customers",
	mcp.WithDescription(
		"List your onboarded customers with status, MRR, and satisfaction scores."),
)

var ToolGetPerformance = mcp.NewTool("get_performance",
	mcp.WithDescription(
		"Get your performance snapshot: customer counts by status, MRR, churn rate, "+
			"conversion rate, average satisfaction, and commission totals by status."),
)

var ToolCheckEligibility = mcp.NewTool("check_eligibility",
	mcp.WithDescription(
		"Check whether your current metrics qualify you for the next tier. "+
			"Shows each threshold, your actual value, and whether it is met. "+
			"Promotion itself is done by PartnerHub staff."),
)

var ToolCommissionReport = mcp.NewTool("commission_report",
	mcp.WithDescription(
		"Get your commission report: individual records with revenue, frozen rate, "+
			"commission amount, and lifecycle status, plus totals. "+
			"Optionally windowed by date and filtered by status."),
	mcp.WithString("from",
		mcp.Description("Window start, RFC 3339 (e.g. '2026-01-01T00:00:00Z'). Inclusive.")),
	mcp.WithString("to",
		mcp.Description("Window end, RFC 3339. Inclusive.")),
	mcp.WithString("status",
		mcp.Description("Only records in this status"),
		mcp.Enum("pending", "approved", "paid", "disputed")),
)
