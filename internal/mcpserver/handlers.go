package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *PartnerHubClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *PartnerHubClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetPartner looks up the partner account.
func (h *Handlers) HandleGetPartner(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetPartner(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get partner: %v", err)), nil
	}

	text, err := formatPartner(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse partner: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListTiers returns the tier catalog.
func (h *Handlers) HandleListTiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetTiers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list tiers: %v", err)), nil
	}

	text, err := formatTiers(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tiers: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleCheckLimit runs an advisory limit check.
func (h *Handlers) HandleCheckLimit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource := req.GetString("resource", "")
	if resource == "" {
		return mcp.NewToolResultError("resource is required"), nil
	}
	delta := req.GetInt("delta", 1)
	current := req.GetInt("current", 0)

	raw, err := h.client.CheckLimit(ctx, resource, delta, current)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Limit check failed: %v", err)), nil
	}

	text, err := formatDecision(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListCustomers lists the partner's customers.
func (h *Handlers) HandleListCustomers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListCustomers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list customers: %v", err)), nil
	}

	text, err := formatCustomers(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse customers: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetPerformance returns the performance snapshot.
func (h *Handlers) HandleGetPerformance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetPerformance(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get performance: %v", err)), nil
	}

	text, err := formatPerformance(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse performance: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleCheckEligibility returns the tier upgrade evaluation.
func (h *Handlers) HandleCheckEligibility(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetEligibility(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check eligibility: %v", err)), nil
	}

	text, err := formatEligibility(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse eligibility: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleCommissionReport returns the commission report.
func (h *Handlers) HandleCommissionReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := req.GetString("from", "")
	to := req.GetString("to", "")
	status := req.GetString("status", "")

	raw, err := h.client.GetReport(ctx, from, to, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get report: %v", err)), nil
	}

	text, err := formatReport(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse report: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatPartner(raw json.RawMessage) (string, error) {
	var resp struct {
		Partner          map[string]any `json:"partner"`
		EffectiveRateBPS float64        `json:"effectiveRateBps"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Partner == nil {
		return "", fmt.Errorf("unexpected partner response format")
	}
	p := resp.Partner

	var sb strings.Builder
	sb.WriteString("Partner Account:\n")
	fmt.Fprintf(&sb, "  Name: %s\n", getString(p, "name"))
	fmt.Fprintf(&sb, "  Tier: %s\n", getString(p, "tier"))
	fmt.Fprintf(&sb, "  Status: %s\n", getString(p, "status"))
	fmt.Fprintf(&sb, "  Commission rate: %s\n", formatBPS(resp.EffectiveRateBPS))
	if _, ok := getFloat(p, "rateOverrideBps"); ok {
		sb.WriteString("  (rate is a negotiated override, not the tier default)\n")
	}
	if tz := getString(p, "reportingTimezone"); tz != "" {
		fmt.Fprintf(&sb, "  Reporting timezone: %s\n", tz)
	}
	return sb.String(), nil
}

func formatTiers(raw json.RawMessage) (string, error) {
	var resp struct {
		Tiers []map[string]any `json:"tiers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Tiers == nil {
		return "", fmt.Errorf("unexpected tiers response format")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "PartnerHub tiers (%d):\n\n", len(resp.Tiers))
	for i, t := range resp.Tiers {
		rate, _ := getFloat(t, "commissionRateBps")
		fmt.Fprintf(&sb, "%d. %s: commission %s\n", i+1, getString(t, "name"), formatBPS(rate))
		if limits, ok := t["limits"].(map[string]any); ok {
			if max, ok := getFloat(limits, "maxCustomers"); ok {
				if max < 0 {
					sb.WriteString("   Customers: unlimited\n")
				} else {
					fmt.Fprintf(&sb, "   Customers: up to %.0f\n", max)
				}
			}
			if wl, ok := limits["whiteLabel"].(bool); ok && wl {
				sb.WriteString("   Includes white-label branding\n")
			}
		}
		if i < len(resp.Tiers)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatDecision(raw json.RawMessage) (string, error) {
	var resp struct {
		Decision map[string]any `json:"decision"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Decision == nil {
		return "", fmt.Errorf("unexpected decision response format")
	}
	d := resp.Decision

	limit, _ := getFloat(d, "limit")
	current, _ := getFloat(d, "current")
	if allowed, _ := d["allowed"].(bool); allowed {
		limitStr := fmt.Sprintf("%.0f", limit)
		if limit < 0 {
			limitStr = "unlimited"
		}
		return fmt.Sprintf("Allowed. %s usage: %.0f, limit: %s.",
			getString(d, "resource"), current, limitStr), nil
	}
	return fmt.Sprintf("Denied: %s\nUse check_eligibility to see if you qualify for an upgrade.",
		getString(d, "reason")), nil
}

func formatCustomers(raw json.RawMessage) (string, error) {
	var resp struct {
		Customers []map[string]any `json:"customers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected customers response format")
	}
	if len(resp.Customers) == 0 {
		return "No customers onboarded yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d customer(s):\n\n", len(resp.Customers))
	for i, c := range resp.Customers {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, getString(c, "name"), getString(c, "status"))
		if mrr, ok := getFloat(c, "mrrCents"); ok && mrr > 0 {
			fmt.Fprintf(&sb, "   MRR: %s\n", formatCents(mrr))
		}
		if score, ok := getFloat(c, "satisfactionScore"); ok {
			fmt.Fprintf(&sb, "   Satisfaction: %.1f/5\n", score)
		}
	}
	return sb.String(), nil
}

func formatPerformance(raw json.RawMessage) (string, error) {
	var resp struct {
		Snapshot map[string]any `json:"snapshot"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Snapshot == nil {
		return "", fmt.Errorf("unexpected performance response format")
	}
	s := resp.Snapshot

	var sb strings.Builder
	sb.WriteString("Performance Snapshot:\n")
	total, _ := getFloat(s, "totalCustomers")
	active, _ := getFloat(s, "activeCustomers")
	trial, _ := getFloat(s, "trialCustomers")
	fmt.Fprintf(&sb, "  Customers: %.0f total (%.0f active, %.0f trial)\n", total, active, trial)
	if mrr, ok := getFloat(s, "mrrCents"); ok {
		fmt.Fprintf(&sb, "  MRR: %s\n", formatCents(mrr))
	}
	if v, ok := getFloat(s, "churnRate"); ok {
		fmt.Fprintf(&sb, "  Churn rate (30d): %.1f%%\n", v*100)
	}
	if v, ok := getFloat(s, "conversionRate"); ok {
		fmt.Fprintf(&sb, "  Trial conversion: %.1f%%\n", v*100)
	}
	if v, ok := getFloat(s, "avgSatisfaction"); ok && v > 0 {
		fmt.Fprintf(&sb, "  Avg satisfaction: %.1f/5\n", v)
	}
	sb.WriteString("  Commission:\n")
	for _, row := range []struct{ label, key string }{
		{"Pending", "pendingCommissionCents"},
		{"Approved", "approvedCommissionCents"},
		{"Paid", "paidCommissionCents"},
		{"Disputed", "disputedCommissionCents"},
	} {
		if v, ok := getFloat(s, row.key); ok && v > 0 {
			fmt.Fprintf(&sb, "    %s: %s\n", row.label, formatCents(v))
		}
	}
	return sb.String(), nil
}

func formatEligibility(raw json.RawMessage) (string, error) {
	var resp struct {
		Evaluation map[string]any `json:"evaluation"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Evaluation == nil {
		return "", fmt.Errorf("unexpected eligibility response format")
	}
	ev := resp.Evaluation

	var sb strings.Builder
	if atTop, _ := ev["atTop"].(bool); atTop {
		fmt.Fprintf(&sb, "You are on the top tier (%s). No further upgrades.\n", getString(ev, "currentTier"))
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "Current tier: %s\n", getString(ev, "currentTier"))
	fmt.Fprintf(&sb, "Next tier: %s\n", getString(ev, "nextTier"))
	if eligible, _ := ev["eligible"].(bool); eligible {
		sb.WriteString("Status: ELIGIBLE, all thresholds met. Contact PartnerHub staff to promote.\n")
	} else {
		sb.WriteString("Status: not yet eligible\n")
	}
	if checks, ok := ev["checks"].([]any); ok {
		sb.WriteString("\nThresholds:\n")
		for _, raw := range checks {
			c, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			mark := "✗"
			if met, _ := c["met"].(bool); met {
				mark = "✓"
			}
			fmt.Fprintf(&sb, "  %s %s: need %s, have %s\n",
				mark, getString(c, "name"), getString(c, "required"), getString(c, "actual"))
		}
	}
	return sb.String(), nil
}

func formatReport(raw json.RawMessage) (string, error) {
	var resp struct {
		Records []map[string]any `json:"records"`
		Totals  map[string]any   `json:"totals"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected report response format")
	}
	if len(resp.Records) == 0 {
		return "No commission records in this window.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Commission report (%d records):\n\n", len(resp.Records))
	for _, r := range resp.Records {
		revenue, _ := getFloat(r, "revenueAmountCents")
		commission, _ := getFloat(r, "commissionAmountCents")
		rate, _ := getFloat(r, "rateBps")
		fmt.Fprintf(&sb, "- %s  revenue %s → commission %s at %s  [%s]\n",
			getString(r, "createdAt"), formatCents(revenue), formatCents(commission),
			formatBPS(rate), getString(r, "status"))
	}
	if resp.Totals != nil {
		sb.WriteString("\nTotals:\n")
		if v, ok := getFloat(resp.Totals, "commissionCents"); ok {
			fmt.Fprintf(&sb, "  Commission earned: %s\n", formatCents(v))
		}
		if v, ok := getFloat(resp.Totals, "paidCommissionCents"); ok {
			fmt.Fprintf(&sb, "  Paid out: %s\n", formatCents(v))
		}
		if v, ok := getFloat(resp.Totals, "unpaidCommissionCents"); ok {
			fmt.Fprintf(&sb, "  Outstanding: %s\n", formatCents(v))
		}
	}
	return sb.String(), nil
}

// formatBPS renders basis points as a percentage, e.g. 2000 → "20.00%".
func formatBPS(bps float64) string {
	return fmt.Sprintf("%.2f%%", bps/100)
}

// formatCents renders a cent amount as dollars, e.g. 123456 → "$1234.56".
func formatCents(cents float64) string {
	v := int64(cents)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
