package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/miso/internal/store"
)

// HistoryReader lists stored assessments and analyses.
type HistoryReader interface {
	Assessments(ctx context.Context, userID string, limit int) ([]store.Assessment, error)
	RecentAnalyses(ctx context.Context, userID string, limit int) ([]store.AnalysisSummary, error)
}

// HistoryTool handles the miso_history MCP tool.
type HistoryTool struct {
	store HistoryReader
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(store HistoryReader) *HistoryTool {
	return &HistoryTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("miso_history",
		mcp.WithDescription("List a user's recorded assessments and stored analyses, newest first."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose history is listed."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries per section (default 10)."),
		),
	)
}

// Handle processes the miso_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	limit := intArg(req, "limit", 10)
	if limit <= 0 {
		limit = 10
	}

	assessments, err := t.store.Assessments(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	analyses, err := t.store.RecentAnalyses(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	if len(assessments) == 0 && len(analyses) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No history for user %q.", userID)), nil
	}

	now := timeNow()
	var b strings.Builder
	fmt.Fprintf(&b, "# History for %s\n", userID)

	fmt.Fprintf(&b, "\n## Assessments (%d)\n\n", len(assessments))
	for _, a := range assessments {
		fmt.Fprintf(&b, "- #%d **%s** %s (%s)\n", a.ID, a.Kind, string(a.Payload),
			humanize.RelTime(a.RecordedAt, now, "ago", "from now"))
	}

	fmt.Fprintf(&b, "\n## Analyses (%d)\n\n", len(analyses))
	for _, a := range analyses {
		line := fmt.Sprintf("- `%s` %s", a.ID, a.Level)
		if a.ProfileCode != "" {
			line += " profile " + a.ProfileCode
		}
		if a.Discrepancy != "" {
			line += " top " + a.Discrepancy
		}
		fmt.Fprintf(&b, "%s (%s)\n", line, humanize.RelTime(a.CreatedAt, now, "ago", "from now"))
	}
	return mcp.NewToolResultText(b.String()), nil
}
