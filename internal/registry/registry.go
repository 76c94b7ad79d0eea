// Package registry holds the typed in-memory view of managed servers.
//
// The store itself does not own durable storage: it validates input,
// normalizes records, and delegates persistence to a Backend (the external
// persistence collaborator, SQLite in this repo).
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mcpdock/internal/security"
)

// Backend is the durable store for records. Implementations must be safe
// for concurrent use.
type Backend interface {
	GetRecord(ctx context.Context, name string) (*Record, error)
	UpsertRecord(ctx context.Context, record *Record) error
	ListRecords(ctx context.Context) ([]*Record, error)
	DeleteRecord(ctx context.Context, name string) (bool, error)
}

// Store wraps a Backend with validation and an in-memory cache keyed by
// server name. Name uniqueness is enforced here: an upsert for an existing
// name replaces the record.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	records map[string]*Record
}

// NewStore loads all persisted records into memory and returns the store.
func NewStore(ctx context.Context, backend Backend) (*Store, error) {
	records, err := backend.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load server records: %w", err)
	}

	byName := make(map[string]*Record, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	return &Store{backend: backend, records: byName}, nil
}

// Get retrieves a record by name. The returned record is a copy.
func (s *Store) Get(name string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[name]
	if !exists {
		return nil, false
	}
	return record.Clone(), true
}

// All returns copies of every known record, sorted by name.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of known records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upsert validates a record and persists it. Invalid input fails with a
// ValidationError and never reaches the backend. An empty version spec
// normalizes to "latest"; an empty status to not_installed.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return &security.ValidationError{Field: "record", Reason: "cannot be nil"}
	}
	if err := ValidateRecord(record); err != nil {
		return err
	}

	normalized := record.Clone()
	if normalized.VersionSpec == "" {
		normalized.VersionSpec = "latest"
	}
	if normalized.Status == "" {
		normalized.Status = StatusNotInstalled
	}

	// The lock spans the backend write so the durable store and the
	// in-memory view always commit concurrent upserts in the same order.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.UpsertRecord(ctx, normalized); err != nil {
		return fmt.Errorf("failed to persist server record %q: %w", record.Name, err)
	}
	s.records[normalized.Name] = normalized
	return nil
}

// Delete removes a record from the backend and the in-memory view.
// Returns whether a record was present.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	if err := security.ValidateServerName(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existed, err := s.backend.DeleteRecord(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete server record %q: %w", name, err)
	}
	delete(s.records, name)
	return existed, nil
}

// ValidateRecord checks the caller-controlled fields of a record.
func ValidateRecord(record *Record) error {
	if err := security.ValidateServerName(record.Name); err != nil {
		return err
	}
	if err := security.ValidateSourceRef(record.SourceRef); err != nil {
		return err
	}
	if err := security.ValidateVersionSpec(record.VersionSpec); err != nil {
		return err
	}
	for name := range record.Env {
		if err := security.ValidateEnvName(name); err != nil {
			return err
		}
	}
	if record.Status != "" && !record.Status.Valid() {
		return &security.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", record.Status)}
	}
	return nil
}
