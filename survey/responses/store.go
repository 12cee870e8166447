// Package responses persists completed surveys to an append-only table and
// reads them back for reporting.
package responses

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/survey/answers"
)

const component = "service.responses"

// Record is one stored survey response. Records are never updated.
type Record struct {
	ID        int64           `db:"id"`
	UserID    int64           `db:"user_id"`
	Username  sql.NullString  `db:"username"`
	CreatedAt time.Time       `db:"created_at"`
	Answers   answers.Answers `db:"answers"`
}

// DisplayName returns the stored username or an empty string.
func (r Record) DisplayName() string {
	if !r.Username.Valid {
		return ""
	}
	return r.Username.String
}

// Persister appends completed surveys.
type Persister interface {
	Save(ctx context.Context, userID int64, displayName string, as answers.Answers) (int64, error)
}

// Reader exposes stored responses read-only.
type Reader interface {
	LoadAll(ctx context.Context) ([]Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Store implements Persister and Reader on top of sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save appends one record and returns its storage-assigned id. created_at is
// assigned here. Save performs a single attempt.
func (s *Store) Save(ctx context.Context, userID int64, displayName string, as answers.Answers) (int64, error) {
	start := time.Now()
	username := sql.NullString{String: strings.TrimSpace(displayName)}
	username.Valid = username.String != ""

	query := s.db.Rebind(`INSERT INTO survey_responses (user_id, username, created_at, answers)
VALUES (?, ?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query, userID, username, s.now().UTC(), as).Scan(&id)
	if err != nil {
		logger.Error(ctx, component, "responses.save",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.Int("answers", len(as)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return 0, &PersistError{UserID: userID, Err: err}
	}

	logger.Info(ctx, component, "responses.save",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int64("record_id", id),
		slog.Int("answers", len(as)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return id, nil
}

// LoadAll returns every record ordered by id.
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	return s.load(ctx, "load_all",
		`SELECT id, user_id, username, created_at, answers FROM survey_responses ORDER BY id`)
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.load(ctx, "recent",
		s.db.Rebind(`SELECT id, user_id, username, created_at, answers FROM survey_responses
ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
}

func (s *Store) load(ctx context.Context, op, query string, args ...any) ([]Record, error) {
	start := time.Now()
	var out []Record
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		logger.Error(ctx, component, "responses.load",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil, &ReadError{Op: op, Err: err}
	}
	logger.Debug(ctx, component, "responses.load",
		slog.String("status", "ok"),
		slog.String("op", op),
		slog.Int("rows", len(out)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return out, nil
}
