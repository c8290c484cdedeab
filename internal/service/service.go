// Package service runs analyses for stored users: it loads the current
// inputs and history concurrently, calls the engine, records metrics and
// appends the result to the analysis log.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/metrics"
)

// DefaultParallel bounds AnalyzeBatch when no limit is configured.
const DefaultParallel = 4

// Repository is the persistence the service needs.
type Repository interface {
	LatestInputs(ctx context.Context, userID string) (analysis.Inputs, error)
	History(ctx context.Context, userID string) (*analysis.History, error)
	SaveAnalysis(ctx context.Context, r *analysis.Result) (string, error)
}

// Outcome is a completed, stored analysis.
type Outcome struct {
	ID     string           `json:"id"`
	Result *analysis.Result `json:"result"`
}

// BatchItem is the outcome for one user of a batch.
type BatchItem struct {
	UserID  string   `json:"user_id"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Err     error    `json:"-"`
}

// Service coordinates loads, analysis and persistence.
type Service struct {
	engine   *analysis.Engine
	repo     Repository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	parallel int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallel bounds the number of concurrent analyses in a batch.
func WithParallel(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallel = n
		}
	}
}

// New creates a Service.
func New(engine *analysis.Engine, repo Repository, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		repo:     repo,
		logger:   slog.New(slog.DiscardHandler),
		parallel: DefaultParallel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads a user's latest inputs and history concurrently.
func (s *Service) Load(ctx context.Context, userID string) (analysis.Inputs, *analysis.History, error) {
	var (
		in      analysis.Inputs
		history *analysis.History
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in, err = s.repo.LatestInputs(gctx, userID)
		if err != nil {
			return fmt.Errorf("latest inputs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = s.repo.History(gctx, userID)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncFailure("load")
		return analysis.Inputs{}, nil, fmt.Errorf("service: load %s: %w", userID, err)
	}
	return in, history, nil
}

// Analyze runs the engine on caller-supplied data and records metrics. It
// does not persist.
func (s *Service) Analyze(in analysis.Inputs, userID string, history *analysis.History) *analysis.Result {
	start := s.now()
	r := s.engine.Analyze(in, userID, history)
	s.metrics.ObserveResult(r, s.now().Sub(start))
	return r
}

// AnalyzeUser loads a user's stored data, analyzes it and appends the result
// to the analysis log.
func (s *Service) AnalyzeUser(ctx context.Context, userID string) (*Outcome, error) {
	if userID == "" {
		return nil, errors.New("service: user id is required")
	}
	start := s.now()
	in, history, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := s.engine.Analyze(in, userID, history)
	s.metrics.ObserveResult(r, s.now().Sub(start))

	id, err := s.repo.SaveAnalysis(ctx, r)
	if err != nil {
		s.metrics.IncFailure("save")
		return nil, fmt.Errorf("service: save analysis for %s: %w", userID, err)
	}
	s.logger.Info("analysis stored", "user", userID, "id", id, "level", r.Level(), "profile", r.Profile.Code)
	return &Outcome{ID: id, Result: r}, nil
}

// AnalyzeBatch analyzes users with bounded parallelism. A failure for one
// user does not stop the others; items are returned in input order.
func (s *Service) AnalyzeBatch(ctx context.Context, userIDs []string) []BatchItem {
	items := make([]BatchItem, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, id := range userIDs {
		g.Go(func() error {
			out, err := s.AnalyzeUser(gctx, id)
			items[i] = BatchItem{UserID: id, Outcome: out, Err: err}
			if err != nil {
				s.logger.Warn("batch analysis failed", "user", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return items
}
