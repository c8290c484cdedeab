// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools and resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/config"
	"github.com/HendryAvila/miso/internal/metrics"
	"github.com/HendryAvila/miso/internal/norms"
	"github.com/HendryAvila/miso/internal/resources"
	"github.com/HendryAvila/miso/internal/service"
	"github.com/HendryAvila/miso/internal/store"
	"github.com/HendryAvila/miso/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options carries the server's external dependencies.
type Options struct {
	Config config.Config
	Logger *slog.Logger
	// Registerer receives the service metrics; nil uses the default registry.
	Registerer prometheus.Registerer
}

// New creates and configures the MCP server with all tools and resources
// registered. This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the store and must be called on
// shutdown. It is always non-nil and safe to call even if the store failed
// to open.
func New(opts Options) (*server.MCPServer, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config

	// --- Create shared dependencies ---

	tables, err := norms.LoadFiles(cfg.NormsFile, cfg.LibraryFile)
	if err != nil {
		return nil, noop, fmt.Errorf("loading norm tables: %w", err)
	}
	logger.Info("norm tables loaded", "version", tables.Version, "library", tables.Library.Version)

	engine := analysis.New(tables, analysis.WithLogger(logger))
	m := metrics.MustNewMetrics(opts.Registerer)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"miso",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register stateless tools ---

	// The store is an independent subsystem: if it fails to open, the
	// stateless analysis tool keeps working and the stored-data tools are
	// not registered.
	cleanup := noop
	st, storeErr := store.New(store.Config{DataDir: cfg.DataDir, HistoryLimit: cfg.HistoryLimit})

	var repo service.Repository
	if storeErr == nil {
		repo = st
	}
	svc := service.New(engine, repo,
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithParallel(cfg.Parallel),
	)

	analyzeTool := tools.NewAnalyzeTool(svc)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	// --- Register store tools ---

	if storeErr != nil {
		logger.Warn("WARNING: store subsystem disabled", "error", storeErr)
	} else {
		cleanup = func() {
			if err := st.Close(); err != nil {
				logger.Warn("WARNING: store close", "error", err)
			}
		}
		registerStoreTools(s, st, svc)
	}

	// --- Register resources ---

	resourceHandler := resources.NewHandler(tables)
	s.AddResource(resourceHandler.NormsResource(), resourceHandler.HandleNorms)
	s.AddResource(resourceHandler.InterventionsResource(), resourceHandler.HandleInterventions)

	return s, cleanup, nil
}

// noop is the cleanup used when the store is disabled.
func noop() {}

func registerStoreTools(s *server.MCPServer, st *store.Store, svc *service.Service) {
	recordTool := tools.NewRecordTool(st)
	s.AddTool(recordTool.Definition(), recordTool.Handle)

	analyzeUserTool := tools.NewAnalyzeUserTool(svc)
	s.AddTool(analyzeUserTool.Definition(), analyzeUserTool.Handle)

	historyTool := tools.NewHistoryTool(st)
	s.AddTool(historyTool.Definition(), historyTool.Handle)
}

// serverInstructions tells the host how to use the tools.
func serverInstructions() string {
	return `You have access to Miso, a behavioral-health meta-analysis engine.

It combines a DASS-21 screening with optional Big Five traits, VIA character
strengths and a four-letter type code into a profile, trait/symptom
discrepancies, active mechanisms and a tiered intervention plan.

## Tools

- miso_analyze: analyze scores passed in the call. Nothing is stored.
- miso_record_assessment: store instrument scores for a user.
- miso_analyze_user: analyze a user's stored scores, with trends from earlier
  administrations, and store the result.
- miso_history: list a user's stored assessments and analyses.

## Rules

- A complete DASS-21 screening (D, A and S) is required for any analysis.
  Without it the result has completeness NONE and lists the data needed.
- When the result contains first_aid entries, present them before anything else.
- Results are decision support, not a diagnosis. Say so when presenting them.
- Report the completeness level and confidence alongside the findings.

## Resources

- miso://norms: the norm tables and calibration the engine runs on.
- miso://interventions: the intervention library and its mappings.`
}
