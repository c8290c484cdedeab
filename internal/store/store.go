// Package store persists assessments and analysis results for the caller
// side of the engine.
//
// It uses SQLite in WAL mode. Assessments are recorded per instrument so the
// latest administration of each group forms the current inputs and earlier
// administrations form the history. Analyses are append-only.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/HendryAvila/miso/internal/analysis"
	"github.com/HendryAvila/miso/internal/normalize"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is replaced in tests.
var timeNow = time.Now

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Kind is the instrument of a recorded assessment.
type Kind string

const (
	KindDASS21 Kind = "dass21"
	KindBig5   Kind = "big5"
	KindVIA    Kind = "via"
	KindMBTI   Kind = "mbti"
)

// Kinds lists the instruments in recording order.
var Kinds = []Kind{KindDASS21, KindBig5, KindVIA, KindMBTI}

// Assessment is one recorded administration of one instrument.
type Assessment struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// AnalysisSummary is a compact view of a stored analysis.
type AnalysisSummary struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Level       string    `json:"level"`
	ProfileCode string    `json:"profile_code,omitempty"`
	Discrepancy string    `json:"top_discrepancy,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Config holds store configuration.
type Config struct {
	DataDir string
	// HistoryLimit caps the administrations History returns per instrument.
	HistoryLimit int
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:      filepath.Join(home, ".miso"),
		HistoryLimit: 50,
	}
}

// Store is the persistent assessment and analysis log backed by SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates the data directory if needed, opens SQLite with WAL mode and
// runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "miso.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS assessments (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			payload     TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_assessments_user_kind
			ON assessments(user_id, kind, recorded_at);

		CREATE TABLE IF NOT EXISTS analyses (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			level           TEXT NOT NULL,
			profile_code    TEXT,
			top_discrepancy TEXT,
			result          TEXT NOT NULL,
			created_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_user
			ON analyses(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAssessment stores every group present in in as its own
// administration at time at (now when zero). It returns the row IDs in
// Kinds order.
func (s *Store) RecordAssessment(ctx context.Context, userID string, in analysis.Inputs, at time.Time) ([]int64, error) {
	if userID == "" {
		return nil, errors.New("store: user id is required")
	}
	if at.IsZero() {
		at = timeNow()
	}
	payloads, err := payloadsOf(in)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, errors.New("store: assessment has no instrument data")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, 0, len(payloads))
	stamp := at.UTC().Format(timeLayout)
	for _, k := range Kinds {
		p, ok := payloads[k]
		if !ok {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO assessments (user_id, kind, payload, recorded_at) VALUES (?, ?, ?, ?)`,
			userID, string(k), string(p), stamp,
		)
		if err != nil {
			return nil, fmt.Errorf("store: insert %s: %w", k, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("store: insert %s: %w", k, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return ids, nil
}

func payloadsOf(in analysis.Inputs) (map[Kind][]byte, error) {
	out := make(map[Kind][]byte, len(Kinds))
	add := func(k Kind, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", k, err)
		}
		out[k] = b
		return nil
	}
	if in.DASS21 != nil {
		if err := add(KindDASS21, in.DASS21); err != nil {
			return nil, err
		}
	}
	if len(in.Big5) > 0 {
		if err := add(KindBig5, in.Big5); err != nil {
			return nil, err
		}
	}
	if len(in.VIA) > 0 {
		if err := add(KindVIA, in.VIA); err != nil {
			return nil, err
		}
	}
	if in.MBTI != "" {
		if err := add(KindMBTI, in.MBTI); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LatestInputs assembles the current inputs from the most recent
// administration of each instrument. A user with no records yields empty
// inputs.
func (s *Store) LatestInputs(ctx context.Context, userID string) (analysis.Inputs, error) {
	var in analysis.Inputs
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.kind, a.payload
		FROM assessments a
		WHERE a.user_id = ?
		  AND a.id = (
			SELECT b.id FROM assessments b
			WHERE b.user_id = a.user_id AND b.kind = a.kind
			ORDER BY b.recorded_at DESC, b.id DESC LIMIT 1
		  )`, userID)
	if err != nil {
		return in, fmt.Errorf("store: latest inputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return in, fmt.Errorf("store: latest inputs: %w", err)
		}
		if err := decodeInto(&in, Kind(kind), []byte(payload)); err != nil {
			return in, err
		}
	}
	return in, rows.Err()
}

func decodeInto(in *analysis.Inputs, k Kind, payload []byte) error {
	var err error
	switch k {
	case KindDASS21:
		in.DASS21 = &normalize.ScreeningRaw{}
		err = json.Unmarshal(payload, in.DASS21)
	case KindBig5:
		err = json.Unmarshal(payload, &in.Big5)
	case KindVIA:
		err = json.Unmarshal(payload, &in.VIA)
	case KindMBTI:
		err = json.Unmarshal(payload, &in.MBTI)
	default:
		return fmt.Errorf("store: unknown assessment kind %q", k)
	}
	if err != nil {
		return fmt.Errorf("store: decode %s: %w", k, err)
	}
	return nil
}

// History returns the DASS-21 and Big Five administrations of a user, oldest
// first, including the latest so trends end at the current input. At most the
// configured limit of newest entries is returned per instrument.
func (s *Store) History(ctx context.Context, userID string) (*analysis.History, error) {
	h := &analysis.History{}

	dass, err := s.series(ctx, userID, KindDASS21)
	if err != nil {
		return nil, err
	}
	for _, a := range dass {
		var raw normalize.ScreeningRaw
		if err := json.Unmarshal(a.Payload, &raw); err != nil {
			return nil, fmt.Errorf("store: decode history %d: %w", a.ID, err)
		}
		h.DASS21 = append(h.DASS21, analysis.ScreeningEntry{Timestamp: a.RecordedAt, RawScores: raw})
	}

	big5, err := s.series(ctx, userID, KindBig5)
	if err != nil {
		return nil, err
	}
	for _, a := range big5 {
		var raw map[string]float64
		if err := json.Unmarshal(a.Payload, &raw); err != nil {
			return nil, fmt.Errorf("store: decode history %d: %w", a.ID, err)
		}
		h.Big5 = append(h.Big5, analysis.TraitEntry{Timestamp: a.RecordedAt, RawScores: raw})
	}
	return h, nil
}

// series returns the newest administrations of kind up to the history limit,
// oldest first.
func (s *Store) series(ctx context.Context, userID string, k Kind) ([]Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, payload, recorded_at
		FROM assessments
		WHERE user_id = ? AND kind = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, userID, string(k), s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", k, err)
	}
	out, err := scanAssessments(rows)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", k, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Assessments lists every administration of a user, newest first, up to
// limit (the configured history limit when non-positive).
func (s *Store) Assessments(ctx context.Context, userID string, limit int) ([]Assessment, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, payload, recorded_at
		FROM assessments
		WHERE user_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: assessments: %w", err)
	}
	out, err := scanAssessments(rows)
	if err != nil {
		return nil, fmt.Errorf("store: assessments: %w", err)
	}
	return out, nil
}

func scanAssessments(rows *sql.Rows) ([]Assessment, error) {
	defer func() { _ = rows.Close() }()
	var out []Assessment
	for rows.Next() {
		var (
			a             Assessment
			kind, payload string
			stamp         string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &payload, &stamp); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, err
		}
		a.Kind = Kind(kind)
		a.Payload = json.RawMessage(payload)
		a.RecordedAt = t
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveAnalysis appends a result to the analysis log and returns its ID.
func (s *Store) SaveAnalysis(ctx context.Context, r *analysis.Result) (string, error) {
	if r == nil {
		return "", errors.New("store: nil analysis result")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("store: encode analysis: %w", err)
	}
	var top string
	if r.Discrepancies != nil && r.Discrepancies.Top != nil {
		top = r.Discrepancies.Top.ID
	}
	created := r.Timestamp
	if created.IsZero() {
		created = timeNow()
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, level, profile_code, top_discrepancy, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.UserID, string(r.Level()), nullableString(r.Profile.Code), nullableString(top),
		string(body), created.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("store: insert analysis: %w", err)
	}
	return id, nil
}

// RecentAnalyses lists a user's stored analyses, newest first.
func (s *Store) RecentAnalyses(ctx context.Context, userID string, limit int) ([]AnalysisSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, level, profile_code, top_discrepancy, created_at
		FROM analyses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AnalysisSummary
	for rows.Next() {
		var (
			a          AnalysisSummary
			code, disc sql.NullString
			stamp      string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Level, &code, &disc, &stamp); err != nil {
			return nil, fmt.Errorf("store: recent analyses: %w", err)
		}
		t, err := time.Parse(timeLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("store: recent analyses: %w", err)
		}
		a.ProfileCode, a.Discrepancy, a.CreatedAt = code.String, disc.String, t
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAnalysis loads a stored result by ID.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*analysis.Result, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM analyses WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get analysis: %w", err)
	}
	var r analysis.Result
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("store: decode analysis %s: %w", id, err)
	}
	return &r, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
