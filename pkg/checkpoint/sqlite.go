package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Checkpointer backed by a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens the database at path, applies migrations, and
// returns a ready store.
func NewSQLiteStore(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "checkpoint-sqlite").Logger(),
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Debug().Str("path", path).Msg("Checkpoint database opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Put stores a checkpoint.
func (s *SQLiteStore) Put(ctx context.Context, cp Checkpoint) error {
	state, err := cp.MarshalState()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	var metadata []byte
	if cp.Metadata != nil {
		metadata, err = json.Marshal(cp.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO checkpoints (id, thread_id, graph_id, node, state, parent_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		cp.ID,
		cp.ThreadID,
		cp.GraphID,
		cp.Node,
		string(state),
		nullString(cp.ParentID),
		nullBytes(metadata),
		cp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}

	return nil
}

// Get returns a specific checkpoint of a thread.
func (s *SQLiteStore) Get(ctx context.Context, threadID, id string) (Checkpoint, error) {
	query := `
		SELECT id, thread_id, graph_id, node, state, parent_id, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ? AND id = ?
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, threadID, id))
}

// Latest returns the most recent checkpoint of a thread.
func (s *SQLiteStore) Latest(ctx context.Context, threadID string) (Checkpoint, error) {
	query := `
		SELECT id, thread_id, graph_id, node, state, parent_id, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, threadID))
}

func (s *SQLiteStore) scanOne(row *sql.Row) (Checkpoint, error) {
	var cp Checkpoint
	var state string
	var parentID sql.NullString
	var metadata sql.NullString

	err := row.Scan(
		&cp.ID,
		&cp.ThreadID,
		&cp.GraphID,
		&cp.Node,
		&state,
		&parentID,
		&metadata,
		&cp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	if err := decodeCheckpoint(&cp, state, parentID, metadata); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// List returns a thread's checkpoints, newest first.
func (s *SQLiteStore) List(ctx context.Context, threadID string) ([]Checkpoint, error) {
	query := `
		SELECT id, thread_id, graph_id, node, state, parent_id, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		var cp Checkpoint
		var state string
		var parentID sql.NullString
		var metadata sql.NullString

		err := rows.Scan(
			&cp.ID,
			&cp.ThreadID,
			&cp.GraphID,
			&cp.Node,
			&state,
			&parentID,
			&metadata,
			&cp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		if err := decodeCheckpoint(&cp, state, parentID, metadata); err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}

	return checkpoints, nil
}

// Delete removes a single checkpoint.
func (s *SQLiteStore) Delete(ctx context.Context, threadID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE thread_id = ? AND id = ?", threadID, id)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteThread removes all checkpoints of a thread.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE thread_id = ?", threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread checkpoints: %w", err)
	}
	return nil
}

// Threads returns the ids of all threads with checkpoints.
func (s *SQLiteStore) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		threads = append(threads, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threads: %w", err)
	}

	return threads, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeCheckpoint(cp *Checkpoint, state string, parentID, metadata sql.NullString) error {
	if err := json.Unmarshal([]byte(state), &cp.State); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if parentID.Valid {
		cp.ParentID = parentID.String
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &cp.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
