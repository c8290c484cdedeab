package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/miso/internal/analysis"
)

// Recorder stores assessments.
type Recorder interface {
	RecordAssessment(ctx context.Context, userID string, in analysis.Inputs, at time.Time) ([]int64, error)
}

// RecordTool handles the miso_record_assessment MCP tool.
type RecordTool struct {
	store Recorder
}

// NewRecordTool creates a RecordTool.
func NewRecordTool(store Recorder) *RecordTool {
	return &RecordTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *RecordTool) Definition() mcp.Tool {
	return mcp.NewTool("miso_record_assessment",
		mcp.WithDescription(
			"Record one or more instrument administrations for a user. Each instrument present "+
				"is stored separately; the newest of each becomes the user's current input. "+
				"Scores are stored as given and validated when analyzed.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User the assessment belongs to."),
		),
		mcp.WithObject("dass21",
			mcp.Description("DASS-21 raw subscale scores: {\"D\": 14, \"A\": 8, \"S\": 20}."),
		),
		mcp.WithObject("big5",
			mcp.Description("Big Five raw scores keyed N, E, O, A, C."),
		),
		mcp.WithObject("via",
			mcp.Description("VIA strength raw sums keyed by strength."),
		),
		mcp.WithString("mbti",
			mcp.Description("Four-letter type code, optional -A/-T suffix."),
		),
		mcp.WithString("recorded_at",
			mcp.Description("Administration time (RFC3339). Defaults to now."),
		),
	)
}

// Handle processes the miso_record_assessment tool call.
func (t *RecordTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	in, err := inputsArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.DASS21 == nil && len(in.Big5) == 0 && len(in.VIA) == 0 && in.MBTI == "" {
		return mcp.NewToolResultError("at least one of 'dass21', 'big5', 'via' or 'mbti' is required"), nil
	}

	at := timeNow()
	if s := req.GetString("recorded_at", ""); s != "" {
		at, err = cast.ToTimeE(s)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'recorded_at': %v", err)), nil
		}
	}

	ids, err := t.store.RecordAssessment(ctx, userID, in, at)
	if err != nil {
		return nil, fmt.Errorf("recording assessment: %w", err)
	}

	var groups []string
	if in.DASS21 != nil {
		groups = append(groups, "dass21")
	}
	if len(in.Big5) > 0 {
		groups = append(groups, "big5")
	}
	if len(in.VIA) > 0 {
		groups = append(groups, "via")
	}
	if in.MBTI != "" {
		groups = append(groups, "mbti")
	}

	response := fmt.Sprintf(
		"# Assessment Recorded\n\n"+
			"**User:** %s\n"+
			"**Instruments:** %s\n"+
			"**Recorded at:** %s\n"+
			"**Rows:** %v\n\n"+
			"Run `miso_analyze_user` to analyze the updated record.",
		userID, strings.Join(groups, ", "), at.UTC().Format(time.RFC3339), ids,
	)
	return mcp.NewToolResultText(response), nil
}
