package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/miso/internal/service"
)

// UserAnalyzer analyzes a stored user and persists the result.
type UserAnalyzer interface {
	AnalyzeUser(ctx context.Context, userID string) (*service.Outcome, error)
}

// AnalyzeUserTool handles the miso_analyze_user MCP tool.
type AnalyzeUserTool struct {
	svc UserAnalyzer
}

// NewAnalyzeUserTool creates an AnalyzeUserTool.
func NewAnalyzeUserTool(svc UserAnalyzer) *AnalyzeUserTool {
	return &AnalyzeUserTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeUserTool) Definition() mcp.Tool {
	return mcp.NewTool("miso_analyze_user",
		mcp.WithDescription(
			"Analyze a user from their recorded assessments. The latest administration of each "+
				"instrument is the current input; earlier DASS-21 and Big Five administrations "+
				"drive the trend analysis. The result is appended to the analysis log.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose recorded assessments are analyzed."),
		),
		mcp.WithString("format",
			mcp.Description("Response format: 'markdown' (default) or 'json'."),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the miso_analyze_user tool call.
func (t *AnalyzeUserTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}

	out, err := t.svc.AnalyzeUser(ctx, userID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	return renderResult(out.Result, out.ID, req.GetString("format", "markdown"))
}
