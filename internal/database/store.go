package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for telemetry persistence.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTelemetry inserts a new telemetry record.
	AppendTelemetry(ctx context.Context, record *TelemetryRecord) error

	// GetRecentTelemetry retrieves the most recent 'limit' records for a user.
	// A zero userID returns records across all users.
	GetRecentTelemetry(ctx context.Context, userID int64, limit int) ([]*TelemetryRecord, error)

	// PurgeTelemetryBefore deletes records emitted before the cutoff and
	// returns the number of rows removed.
	PurgeTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendTelemetry inserts a new telemetry record.
func (s *sqlxStore) AppendTelemetry(ctx context.Context, record *TelemetryRecord) error {
	if record == nil {
		return fmt.Errorf("cannot append nil telemetry record")
	}
	if record.UserID == 0 {
		return fmt.Errorf("telemetry record must have a non-zero user_id")
	}
	if record.TriggerKind == "" {
		return fmt.Errorf("telemetry record must have a trigger_kind")
	}
	if record.EmittedAt.IsZero() {
		return fmt.Errorf("telemetry record must have a non-zero emitted_at")
	}

	record.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO telemetry (created_at, user_id, event_kind, trigger_kind, intent,
                               resolved_symbol, external_calls, raw_text, latency_ms,
                               succeeded, error_detail, emitted_at)
        VALUES (:created_at, :user_id, :event_kind, :trigger_kind, :intent,
                :resolved_symbol, :external_calls, :raw_text, :latency_ms,
                :succeeded, :error_detail, :emitted_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending telemetry record",
			"user_id", record.UserID, "trigger_kind", record.TriggerKind, "error", err)
		return fmt.Errorf("failed to append telemetry record (user %d): %w", record.UserID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		record.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after appending telemetry",
			"user_id", record.UserID, "error", err)
	}

	s.logger.DebugContext(ctx, "Telemetry record appended",
		"user_id", record.UserID, "trigger_kind", record.TriggerKind, "record_id", record.ID)
	return nil
}

// GetRecentTelemetry retrieves the most recent 'limit' records for a user.
func (s *sqlxStore) GetRecentTelemetry(ctx context.Context, userID int64, limit int) ([]*TelemetryRecord, error) {
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "default_limit", limit)
	} else if limit > 500 {
		limit = 500
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var (
		records []*TelemetryRecord
		err     error
	)

	if userID == 0 {
		query := `
            SELECT id, created_at, user_id, event_kind, trigger_kind, intent,
                   resolved_symbol, external_calls, raw_text, latency_ms,
                   succeeded, error_detail, emitted_at
            FROM telemetry
            ORDER BY emitted_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &records, query, limit)
	} else {
		query := `
            SELECT id, created_at, user_id, event_kind, trigger_kind, intent,
                   resolved_symbol, external_calls, raw_text, latency_ms,
                   succeeded, error_detail, emitted_at
            FROM telemetry
            WHERE user_id = ?
            ORDER BY emitted_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &records, query, userID, limit)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching telemetry",
			"user_id", userID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent telemetry", "user_id", userID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent telemetry for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Fetched recent telemetry", "user_id", userID, "count", len(records))
	return records, nil
}

// PurgeTelemetryBefore deletes records emitted before the cutoff.
func (s *sqlxStore) PurgeTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff cannot be zero")
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM telemetry WHERE emitted_at < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error purging telemetry records", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to purge telemetry records before %v: %w", cutoff, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Purged telemetry records", "cutoff", cutoff, "count", count)
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
