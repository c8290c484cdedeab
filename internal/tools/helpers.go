// Package tools implements the MCP tool handlers.
//
// Each tool is a struct whose dependencies are injected through its
// constructor; Definition returns the schema and Handle serves the call.
// User errors are returned as tool errors, not Go errors.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/normalize"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// intArg extracts an integer argument, returning defaultVal when the key is
// missing or not numeric.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key]
	if !ok {
		return defaultVal
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// scoreMap decodes an object of numeric scores. Numbers given as strings are
// accepted.
func scoreMap(field string, v any) (map[string]float64, error) {
	if v == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("%s: expected an object of scores", field)
	}
	out := make(map[string]float64, len(m))
	for k, raw := range m {
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %v is not a number", field, k, raw)
		}
		out[k] = f
	}
	return out, nil
}

// screening decodes a {D, A, S} object. Missing subscales stay nil so the
// all-or-nothing rule can report them.
func screening(field string, v any) (*normalize.ScreeningRaw, error) {
	m, err := scoreMap(field, v)
	if err != nil || m == nil {
		return nil, err
	}
	raw := &normalize.ScreeningRaw{}
	for k, f := range m {
		var slot **float64
		name := strings.ToUpper(strings.TrimSpace(k))
		switch name {
		case "D", "DEPRESSION":
			slot = &raw.D
		case "A", "ANXIETY":
			slot = &raw.A
		case "S", "STRESS":
			slot = &raw.S
		default:
			return nil, fmt.Errorf("%s: unknown subscale %q (want D, A or S)", field, k)
		}
		if *slot != nil {
			return nil, fmt.Errorf("%s: subscale %s given more than once", field, name[:1])
		}
		*slot = &f
	}
	return raw, nil
}

// inputsArg reads the four instrument groups from a request.
func inputsArg(req mcp.CallToolRequest) (analysis.Inputs, error) {
	args := req.GetArguments()
	var (
		in  analysis.Inputs
		err error
	)
	if in.DASS21, err = screening("dass21", args["dass21"]); err != nil {
		return in, err
	}
	if in.Big5, err = scoreMap("big5", args["big5"]); err != nil {
		return in, err
	}
	if in.VIA, err = scoreMap("via", args["via"]); err != nil {
		return in, err
	}
	in.MBTI = strings.TrimSpace(cast.ToString(args["mbti"]))
	return in, nil
}

// historyArg reads an optional history object:
// {"dass21": [{"timestamp": ..., "raw_scores": {...}}], "big5": [...]}.
func historyArg(req mcp.CallToolRequest) (*analysis.History, error) {
	v, ok := req.GetArguments()["history"]
	if !ok || v == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("history: expected an object")
	}
	h := &analysis.History{}

	entries, err := historyEntries("history.dass21", m["dass21"])
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		raw, err := screening(fmt.Sprintf("history.dass21[%d].raw_scores", i), e.scores)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			raw = &normalize.ScreeningRaw{}
		}
		h.DASS21 = append(h.DASS21, analysis.ScreeningEntry{Timestamp: e.at, RawScores: *raw})
	}

	entries, err = historyEntries("history.big5", m["big5"])
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		raw, err := scoreMap(fmt.Sprintf("history.big5[%d].raw_scores", i), e.scores)
		if err != nil {
			return nil, err
		}
		h.Big5 = append(h.Big5, analysis.TraitEntry{Timestamp: e.at, RawScores: raw})
	}
	return h, nil
}

type historyEntry struct {
	at     time.Time
	scores any
}

func historyEntries(field string, v any) ([]historyEntry, error) {
	if v == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%s: expected a list", field)
	}
	out := make([]historyEntry, 0, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: expected an object", field, i)
		}
		at, err := cast.ToTimeE(m["timestamp"])
		if err != nil {
			return nil, fmt.Errorf("%s[%d].timestamp: %v", field, i, err)
		}
		out = append(out, historyEntry{at: at, scores: m["raw_scores"]})
	}
	return out, nil
}

// jsonBlock renders v as an indented fenced JSON block.
func jsonBlock(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```\n", nil
}
