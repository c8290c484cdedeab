// Package resources implements the MCP resources: read-only views of the
// reference data the engine runs on, addressed as miso://...
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/miso/internal/norms"
)

const (
	NormsURI         = "miso://norms"
	InterventionsURI = "miso://interventions"
)

// Handler serves resources from one set of tables.
type Handler struct {
	tables *norms.Tables
}

// NewHandler creates a resource Handler.
func NewHandler(tables *norms.Tables) *Handler {
	return &Handler{tables: tables}
}

// NormsResource returns the MCP resource definition for the norm tables.
func (h *Handler) NormsResource() mcp.Resource {
	return mcp.NewResource(
		NormsURI,
		"Miso Norm Tables",
		mcp.WithResourceDescription("Instrument norms, severity cut-points, type priors, calibration, profiles, discrepancies and pathways"),
		mcp.WithMIMEType("application/json"),
	)
}

// InterventionsResource returns the MCP resource definition for the
// intervention library.
func (h *Handler) InterventionsResource() mcp.Resource {
	return mcp.NewResource(
		InterventionsURI,
		"Miso Intervention Library",
		mcp.WithResourceDescription("Intervention catalog, candidate mappings and the first-aid list"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleNorms returns the norm tables as JSON.
func (h *Handler) HandleNorms(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.tables)
}

// HandleInterventions returns the intervention library as JSON.
func (h *Handler) HandleInterventions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.tables.Library == nil {
		return errorResource(req.Params.URI, "no intervention library loaded"), nil
	}
	return jsonResource(req.Params.URI, h.tables.Library)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
