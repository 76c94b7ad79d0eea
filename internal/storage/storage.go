// Package storage persists server records and deployment events in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mcpdock/internal/registry"

	_ "modernc.org/sqlite"
)

// Store owns the SQLite database. It implements registry.Backend and keeps
// an append-only deployment event log alongside the records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and initializes the
// schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS servers (
			name TEXT PRIMARY KEY,
			source_ref TEXT NOT NULL,
			version_spec TEXT NOT NULL,
			env_json TEXT NOT NULL,
			status TEXT NOT NULL,
			resolved_commit TEXT,
			resolved_version TEXT,
			installed_at TEXT,
			last_updated TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create servers table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server TEXT NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			resolved_version TEXT,
			duration_seconds REAL,
			error_message TEXT,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_server
		ON events(server, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events index: %w", err)
	}

	return nil
}

// GetRecord returns the record for name, or nil if absent.
func (s *Store) GetRecord(ctx context.Context, name string) (*registry.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, source_ref, version_spec, env_json, status,
		       resolved_commit, resolved_version, installed_at, last_updated
		FROM servers
		WHERE name = ?
	`, name)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query server record: %w", err)
	}
	return record, nil
}

// UpsertRecord inserts or replaces the record keyed by name.
func (s *Store) UpsertRecord(ctx context.Context, record *registry.Record) error {
	envJSON, err := json.Marshal(record.Env)
	if err != nil {
		return fmt.Errorf("failed to encode env vars: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO servers
		(name, source_ref, version_spec, env_json, status,
		 resolved_commit, resolved_version, installed_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_ref = excluded.source_ref,
			version_spec = excluded.version_spec,
			env_json = excluded.env_json,
			status = excluded.status,
			resolved_commit = excluded.resolved_commit,
			resolved_version = excluded.resolved_version,
			installed_at = excluded.installed_at,
			last_updated = excluded.last_updated
	`,
		record.Name,
		record.SourceRef,
		record.VersionSpec,
		string(envJSON),
		string(record.Status),
		nullString(record.ResolvedCommit),
		nullString(record.ResolvedVersion),
		nullTime(record.InstalledAt),
		nullTime(record.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert server record: %w", err)
	}
	return nil
}

// ListRecords returns every persisted record.
func (s *Store) ListRecords(ctx context.Context) ([]*registry.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source_ref, version_spec, env_json, status,
		       resolved_commit, resolved_version, installed_at, last_updated
		FROM servers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query server records: %w", err)
	}
	defer rows.Close()

	var records []*registry.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record; returns whether it existed.
func (s *Store) DeleteRecord(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete server record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// RecordEvent appends a deployment event and returns its ID.
func (s *Store) RecordEvent(ctx context.Context, event *Event) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(server, action, status, resolved_version, duration_seconds, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.Server,
		event.Action,
		event.Status,
		event.ResolvedVersion,
		event.DurationSeconds,
		event.ErrorMessage,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// ListEvents returns the most recent events for a server, newest first.
func (s *Store) ListEvents(ctx context.Context, server string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server, action, status, resolved_version,
		       duration_seconds, error_message, created_at
		FROM events
		WHERE server = ?
		ORDER BY id DESC
		LIMIT ?
	`, server, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var resolvedVersion, errorMessage sql.NullString
		var duration sql.NullFloat64
		var createdAtStr string

		err := rows.Scan(
			&event.ID,
			&event.Server,
			&event.Action,
			&event.Status,
			&resolvedVersion,
			&duration,
			&errorMessage,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if resolvedVersion.Valid {
			event.ResolvedVersion = &resolvedVersion.String
		}
		if duration.Valid {
			event.DurationSeconds = &duration.Float64
		}
		if errorMessage.Valid {
			event.ErrorMessage = &errorMessage.String
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
		event.CreatedAt = createdAt

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*registry.Record, error) {
	var record registry.Record
	var envJSON, statusStr string
	var resolvedCommit, resolvedVersion, installedAt, lastUpdated sql.NullString

	err := s.Scan(
		&record.Name,
		&record.SourceRef,
		&record.VersionSpec,
		&envJSON,
		&statusStr,
		&resolvedCommit,
		&resolvedVersion,
		&installedAt,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	status, err := registry.ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}
	record.Status = status

	if envJSON != "" && envJSON != "null" {
		if err := json.Unmarshal([]byte(envJSON), &record.Env); err != nil {
			return nil, fmt.Errorf("failed to decode env vars: %w", err)
		}
	}

	record.ResolvedCommit = resolvedCommit.String
	record.ResolvedVersion = resolvedVersion.String

	if installedAt.Valid {
		t, err := time.Parse(time.RFC3339, installedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse installed_at timestamp: %w", err)
		}
		record.InstalledAt = &t
	}
	if lastUpdated.Valid {
		t, err := time.Parse(time.RFC3339, lastUpdated.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_updated timestamp: %w", err)
		}
		record.LastUpdated = &t
	}

	return &record, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
