package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mcpdock/internal/registry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	installedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	record := &registry.Record{
		Name:            "filesystem",
		SourceRef:       "modelcontextprotocol/servers",
		VersionSpec:     "v1.2.0",
		Env:             map[string]string{"ROOT": "/srv/data"},
		Status:          registry.StatusInstalled,
		ResolvedCommit:  "abc123def456",
		ResolvedVersion: "v1.2.0",
		InstalledAt:     &installedAt,
		LastUpdated:     &installedAt,
	}

	if err := store.UpsertRecord(ctx, record); err != nil {
		t.Fatalf("UpsertRecord failed: %v", err)
	}

	got, err := store.GetRecord(ctx, "filesystem")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected record, got nil")
	}
	if got.SourceRef != record.SourceRef {
		t.Errorf("SourceRef mismatch: %q", got.SourceRef)
	}
	if got.Status != registry.StatusInstalled {
		t.Errorf("Status mismatch: %q", got.Status)
	}
	if got.Env["ROOT"] != "/srv/data" {
		t.Errorf("Env mismatch: %v", got.Env)
	}
	if got.ResolvedCommit != "abc123def456" {
		t.Errorf("ResolvedCommit mismatch: %q", got.ResolvedCommit)
	}
	if got.InstalledAt == nil || !got.InstalledAt.Equal(installedAt) {
		t.Errorf("InstalledAt mismatch: %v", got.InstalledAt)
	}
}

func TestStore_GetRecord_Absent(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetRecord(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for absent record, got %+v", got)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpsertRecord(ctx, &registry.Record{
		Name: "srv", SourceRef: "o/r", VersionSpec: "v1", Status: registry.StatusNotInstalled,
	}); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if err := store.UpsertRecord(ctx, &registry.Record{
		Name: "srv", SourceRef: "o/r", VersionSpec: "v2", Status: registry.StatusInstalled,
	}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	records, err := store.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Upsert must replace by name: got %d records", len(records))
	}
	if records[0].VersionSpec != "v2" {
		t.Errorf("Expected v2, got %q", records[0].VersionSpec)
	}
}

func TestStore_DeleteRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpsertRecord(ctx, &registry.Record{
		Name: "srv", SourceRef: "o/r", VersionSpec: "latest", Status: registry.StatusNotInstalled,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	existed, err := store.DeleteRecord(ctx, "srv")
	if err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if !existed {
		t.Error("Delete should report the record existed")
	}

	existed, err = store.DeleteRecord(ctx, "srv")
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if existed {
		t.Error("Second delete should report absence")
	}
}

func TestStore_Events(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	version := "v1.0.0"
	duration := 2.5
	errMsg := "clone failed"

	for i, event := range []*Event{
		{Server: "srv", Action: "deploy", Status: "failed", ErrorMessage: &errMsg},
		{Server: "srv", Action: "deploy", Status: "success", ResolvedVersion: &version, DurationSeconds: &duration},
		{Server: "other", Action: "undeploy", Status: "success"},
	} {
		if _, err := store.RecordEvent(ctx, event); err != nil {
			t.Fatalf("RecordEvent %d failed: %v", i, err)
		}
	}

	events, err := store.ListEvents(ctx, "srv", 10)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events for srv, got %d", len(events))
	}

	// Newest first
	if events[0].Status != "success" {
		t.Errorf("Expected newest event first, got %q", events[0].Status)
	}
	if events[0].ResolvedVersion == nil || *events[0].ResolvedVersion != "v1.0.0" {
		t.Errorf("ResolvedVersion not preserved: %v", events[0].ResolvedVersion)
	}
	if events[1].ErrorMessage == nil || *events[1].ErrorMessage != "clone failed" {
		t.Errorf("ErrorMessage not preserved: %v", events[1].ErrorMessage)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestStore_ListEvents_Limit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.RecordEvent(ctx, &Event{Server: "srv", Action: "deploy", Status: "success"}); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	events, err := store.ListEvents(ctx, "srv", 3)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Expected limit of 3, got %d", len(events))
	}
}
