package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/report"
)

func registerTools(s *server.MCPServer, c *apiClient) {
	s.AddTool(mcp.NewTool("scan_website",
		mcp.WithDescription("Load a web page in a headless browser and report its bugs: JavaScript errors, failed requests, HTTP errors, broken images, accessibility and SEO problems and slow loads."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL of the page to scan"),
		),
		mcp.WithBoolean("analyze",
			mcp.Description("Add an AI analysis with a quality score and prioritised fixes (default: true)"),
		),
		mcp.WithBoolean("check_accessibility",
			mcp.Description("Run accessibility checks (default: true)"),
		),
		mcp.WithBoolean("check_seo",
			mcp.Description("Run SEO checks (default: true)"),
		),
		mcp.WithBoolean("check_performance",
			mcp.Description("Flag slow page loads (default: true)"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Navigation timeout in milliseconds (default: 30000, max: 120000)"),
		),
	), handleScanWebsite(c))

	s.AddTool(mcp.NewTool("get_scan",
		mcp.WithDescription("Fetch a stored scan report by its ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Scan ID as returned by scan_website (scan_...)"),
		),
	), handleGetScan(c))

	s.AddTool(mcp.NewTool("list_scans",
		mcp.WithDescription("List stored scans, newest first, with bug counts by severity."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum scans to return (default: 10, max: 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of scans to skip (default: 0)"),
		),
	), handleListScans(c))

	s.AddTool(mcp.NewTool("suggest_fix",
		mcp.WithDescription("Ask the AI for a step-by-step fix for one bug from a scan report."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Bug type, e.g. console_error or accessibility_missing_alt"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Bug message from the report"),
		),
		mcp.WithString("severity",
			mcp.Description("Bug severity"),
			mcp.Enum("critical", "high", "medium", "low"),
		),
		mcp.WithString("location",
			mcp.Description("Where the bug occurred (URL or script position)"),
		),
	), handleSuggestFix(c))
}

func handleScanWebsite(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		req := models.ScanRequest{URL: target}
		args := request.GetArguments()
		if v, ok := args["analyze"].(bool); ok {
			req.Analyze = &v
		}
		if v, ok := args["check_accessibility"].(bool); ok {
			req.Options.CheckAccessibility = &v
		}
		if v, ok := args["check_seo"].(bool); ok {
			req.Options.CheckSEO = &v
		}
		if v, ok := args["check_performance"].(bool); ok {
			req.Options.CheckPerformance = &v
		}
		if v, ok := args["timeout_ms"].(float64); ok && v > 0 {
			req.Options.TimeoutMs = int(v)
		}

		var resp models.ScanResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/scan", req, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return renderScan(resp.Scan)
	}
}

func handleGetScan(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		var resp models.ScanResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/scans/"+url.PathEscape(id), nil, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get scan failed: %v", err)), nil
		}
		return renderScan(resp.Scan)
	}
}

func handleListScans(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(request.GetInt("limit", 10)))
		q.Set("offset", fmt.Sprint(request.GetInt("offset", 0)))

		var resp models.ScanListResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/scans?"+q.Encode(), nil, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list scans failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Scans %d-%d of %d\n\n", min(resp.Offset+1, resp.Total), resp.Offset+len(resp.Scans), resp.Total)
		for _, s := range resp.Scans {
			fmt.Fprintf(&sb, "- %s  %s  %s  [%s] bugs: %d (critical %d, high %d, medium %d, low %d)\n",
				s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.URL, s.Status,
				s.Summary.Total, s.Summary.Critical, s.Summary.High, s.Summary.Medium, s.Summary.Low)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleSuggestFix(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typ, err := request.RequireString("type")
		if err != nil {
			return mcp.NewToolResultError("type is required"), nil
		}
		msg, err := request.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError("message is required"), nil
		}

		bug := models.Bug{
			Type:     models.BugType(typ),
			Severity: models.Severity(request.GetString("severity", "")),
			Message:  msg,
			Location: request.GetString("location", ""),
		}
		if bug.Severity == "" {
			bug.Severity = models.Classify(bug.Type).Severity
		}

		var resp models.FixResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/suggest-fix", models.SuggestFixRequest{Bug: bug}, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("suggest fix failed: %v", err)), nil
		}
		if resp.Suggestion == nil {
			return mcp.NewToolResultError("suggest fix failed: empty response"), nil
		}
		return mcp.NewToolResultText(formatFix(resp.Suggestion)), nil
	}
}

// renderScan formats a stored scan as the Markdown report.
func renderScan(rec *models.ScanRecord) (*mcp.CallToolResult, error) {
	if rec == nil {
		return mcp.NewToolResultError("API returned no scan"), nil
	}

	r := report.Report{URL: rec.URL, Result: rec.Result, Analysis: rec.Analysis}
	if rec.Status == models.StatusFailed {
		r.Error = &models.ErrorDetail{Code: "SCAN_FAILED", Message: rec.Error}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Scan ID: %s\n\n", rec.ID)
	if _, err := report.NewMarkdownWriter(&buf).Write([]report.Report{r}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func formatFix(s *models.FixSuggestion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fix for %s (%s): %s\n\n", s.Bug.Type, s.Bug.Severity, s.Bug.Message)
	fmt.Fprintf(&sb, "%s\n\n", s.Fix.Explanation)
	for i, step := range s.Fix.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
	}
	if s.Fix.CodeExample != nil && *s.Fix.CodeExample != "" {
		lang := ""
		if s.Fix.Language != nil {
			lang = *s.Fix.Language
		}
		fmt.Fprintf(&sb, "\n```%s\n%s\n```\n", lang, *s.Fix.CodeExample)
	}
	if s.Fix.Prevention != "" {
		fmt.Fprintf(&sb, "\nPrevention: %s\n", s.Fix.Prevention)
	}
	if s.Fix.EstimatedTime != "" {
		fmt.Fprintf(&sb, "Estimated time: %s\n", s.Fix.EstimatedTime)
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "\n(Fallback advice: %s)\n", s.Error)
	}
	return sb.String()
}
