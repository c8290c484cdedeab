package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/intervention"
)

// Analyzer runs a stateless analysis.
type Analyzer interface {
	Analyze(in analysis.Inputs, userID string, history *analysis.History) *analysis.Result
}

// AnalyzeTool handles the miso_analyze MCP tool. It analyzes the scores in
// the request without touching the store.
type AnalyzeTool struct {
	analyzer Analyzer
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(a Analyzer) *AnalyzeTool {
	return &AnalyzeTool{analyzer: a}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("miso_analyze",
		mcp.WithDescription(
			"Analyze psychometric scores: DASS-21 screening (required for any analysis), "+
				"Big Five traits, VIA character strengths and a four-letter type code. "+
				"Returns the completeness level, profile, discrepancies, mechanisms, "+
				"a tiered intervention plan and, when history is given, trends. "+
				"Nothing is stored.",
		),
		mcp.WithString("user_id",
			mcp.Description("Opaque user identifier echoed in the result."),
		),
		mcp.WithObject("dass21",
			mcp.Description("DASS-21 raw subscale scores on the 0-42 scale: {\"D\": 14, \"A\": 8, \"S\": 20}. All three are required."),
		),
		mcp.WithObject("big5",
			mcp.Description("Big Five raw scores keyed N, E, O, A, C (item averages 1-5 or item sums)."),
		),
		mcp.WithObject("via",
			mcp.Description("VIA strength raw sums (5-25) keyed by strength, e.g. {\"hope\": 21}."),
		),
		mcp.WithString("mbti",
			mcp.Description("Four-letter type code with optional -A/-T suffix, e.g. INFP-T."),
		),
		mcp.WithObject("history",
			mcp.Description("Prior administrations: {\"dass21\": [{\"timestamp\": RFC3339, \"raw_scores\": {...}}], \"big5\": [...]}."),
		),
		mcp.WithString("format",
			mcp.Description("Response format: 'markdown' (default) or 'json'."),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the miso_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := inputsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	history, err := historyArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r := t.analyzer.Analyze(in, req.GetString("user_id", ""), history)
	return renderResult(r, "", req.GetString("format", "markdown"))
}

// renderResult formats a result as markdown with the full JSON envelope, or
// as bare JSON.
func renderResult(r *analysis.Result, storedID, format string) (*mcp.CallToolResult, error) {
	if format == "json" {
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding result: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
	block, err := jsonBlock(r)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis (%s)\n\n", r.Level())
	if storedID != "" {
		fmt.Fprintf(&b, "**Stored as:** `%s`\n", storedID)
	}
	fmt.Fprintf(&b, "**Confidence:** %.0f%%\n", r.Completeness.Confidence*100)
	if r.Profile.Name != "" {
		fmt.Fprintf(&b, "**Profile:** %s (%s, risk %s)\n", r.Profile.Name, r.Profile.Mode, r.Profile.RiskLevel)
	}
	fmt.Fprintf(&b, "\n%s\n", r.Summary.Text)

	if len(r.Summary.KeyFindings) > 0 {
		b.WriteString("\n## Key findings\n\n")
		for _, f := range r.Summary.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(r.Interventions.FirstAid) > 0 {
		b.WriteString("\n## First aid\n\n")
		for _, e := range r.Interventions.FirstAid {
			fmt.Fprintf(&b, "- **%s**: %s\n", e.Details.Name, e.Details.Description)
		}
	}
	if r.Interventions.Len() > 0 {
		b.WriteString("\n## Plan\n")
		for _, tier := range intervention.Tiers {
			entries := r.Interventions.Tier(tier)
			if len(entries) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n\n", tier)
			for _, e := range entries {
				fmt.Fprintf(&b, "%d. **%s** (score %.2f): %s\n", e.Priority, e.Details.Name, e.Score, strings.Join(e.Reasons, "; "))
			}
		}
	}

	if errs := r.ScientificErrors(); len(errs) > 0 {
		b.WriteString("\n## Rejected input\n\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	if len(r.Summary.DataNeeded) > 0 {
		b.WriteString("\n## Data needed\n\n")
		for _, d := range r.Summary.DataNeeded {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	b.WriteString("\n## Result\n\n")
	b.WriteString(block)
	return mcp.NewToolResultText(b.String()), nil
}
