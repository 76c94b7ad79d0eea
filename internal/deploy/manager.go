// Package deploy turns server records into host configuration entries.
//
// All mutation of the host configuration file goes through this package:
// every write is preceded by a timestamped backup and performed as an
// atomic temp-file-and-rename, so the host application never observes a
// half-written or syntactically invalid document. Failures roll the file
// back to its pre-operation bytes.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"mcpdock/internal/manifest"
	"mcpdock/internal/platform"
	"mcpdock/internal/registry"
	"mcpdock/internal/resolver"
	"mcpdock/internal/security"
	"mcpdock/internal/storage"
)

const (
	// DefaultKeepBackups is the number of config backups retained per
	// cleanup pass.
	DefaultKeepBackups = 10
)

// EventRecorder receives one event per completed deploy/undeploy.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *storage.Event) (int64, error)
}

// CacheInvalidator drops cached health results when an operation changes
// whether a server is configured.
type CacheInvalidator interface {
	Invalidate(name string)
}

// Manager deploys and undeploys managed servers.
//
// Locking discipline: operations for the same server serialize on a
// per-name lock; the read-modify-write of the monolithic configuration
// file additionally serializes on a single file-scoped mutex, because two
// deploys for different names still share the file.
type Manager struct {
	Records  *registry.Store
	Source   resolver.Resolver
	Platform platform.Resolver
	Logger   *slog.Logger

	// Events and Invalidator are optional collaborators.
	Events      EventRecorder
	Invalidator CacheInvalidator

	// KeepBackups bounds the retained config backups.
	KeepBackups int

	locks  *LockManager
	fileMu sync.Mutex
}

// NewManager creates a deployment manager.
func NewManager(records *registry.Store, source resolver.Resolver, plat platform.Resolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Records:     records,
		Source:      source,
		Platform:    plat,
		Logger:      logger,
		KeepBackups: DefaultKeepBackups,
		locks:       NewLockManager(),
	}
}

// Deploy resolves the record's source, derives its launch instruction, and
// merges the entry into the host configuration file.
//
// Validation and platform errors are returned as errors with no side
// effects. Everything after source resolution is reported through the
// Result: on failure the configuration file is restored to its pre-call
// bytes and the record moves to the error status.
func (m *Manager) Deploy(ctx context.Context, name string) (*Result, error) {
	if err := security.ValidateServerName(name); err != nil {
		return nil, err
	}

	m.locks.Lock(name)
	defer m.locks.Unlock(name)

	record, ok := m.Records.Get(name)
	if !ok {
		return nil, &security.ValidationError{Field: "server name", Reason: fmt.Sprintf("unknown server %q", name)}
	}

	configPath, err := m.Platform.ConfigPath()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	m.setStatus(ctx, record, registry.StatusUpdating)

	// Resolution happens before any backup or mutation: a failure here is
	// a no-op on disk.
	resolution, err := m.Source.Resolve(ctx, record.SourceRef, record.VersionSpec)
	if err != nil {
		return m.failDeploy(ctx, record, configPath, "", start, err), nil
	}

	mf, err := manifest.Load(resolution.LocalPath)
	if err != nil {
		return m.failDeploy(ctx, record, configPath, "", start, err), nil
	}

	entry := Entry{
		Command: mf.Command,
		Args:    mf.Args,
		Env:     mergeEnv(mf.Env, record.Env),
	}

	backupPath, err := m.writeEntry(configPath, name, &entry)
	if err != nil {
		return m.failDeploy(ctx, record, configPath, backupPath, start, err), nil
	}

	// Persist the successful transition. If the record store fails the
	// config must not claim an install the records deny, so undo the file
	// change too.
	updated := record.Clone()
	updated.Status = registry.StatusInstalled
	updated.ResolvedCommit = resolution.Commit
	updated.ResolvedVersion = resolution.Version
	now := time.Now()
	if updated.InstalledAt == nil {
		updated.InstalledAt = &now
	}
	updated.LastUpdated = &now

	if err := m.Records.Upsert(ctx, updated); err != nil {
		m.fileMu.Lock()
		if backupPath == "" {
			// The deploy created the file; undo means removing it.
			if rerr := os.Remove(configPath); rerr != nil && !os.IsNotExist(rerr) {
				m.Logger.Error("rollback after record persist failure failed", "server", name, "error", rerr)
			}
		} else if rerr := restoreConfig(backupPath, configPath); rerr != nil {
			m.Logger.Error("rollback after record persist failure failed", "server", name, "error", rerr)
		}
		m.fileMu.Unlock()
		return m.failDeploy(ctx, record, configPath, backupPath, start, err), nil
	}

	m.invalidate(name)
	m.pruneBackups(configPath)
	m.recordEvent(ctx, name, "deploy", "success", resolution.Version, time.Since(start), "")

	m.Logger.Info("server deployed",
		"server", name,
		"version", resolution.Version,
		"commit", resolution.Commit,
		"config", configPath)

	return &Result{
		ServerName: name,
		Success:    true,
		ConfigPath: configPath,
		BackupPath: backupPath,
		Command:    entry.Command,
		Args:       entry.Args,
	}, nil
}

// Undeploy removes the server's entry from the host configuration file.
// Returns whether an entry was actually present to remove.
func (m *Manager) Undeploy(ctx context.Context, name string) (bool, error) {
	if err := security.ValidateServerName(name); err != nil {
		return false, err
	}

	m.locks.Lock(name)
	defer m.locks.Unlock(name)

	configPath, err := m.Platform.ConfigPath()
	if err != nil {
		return false, err
	}

	record, hasRecord := m.Records.Get(name)
	start := time.Now()

	removed, err := m.removeEntry(configPath, name)
	if err != nil {
		if hasRecord {
			m.setStatus(ctx, record, registry.StatusError)
		}
		m.recordEvent(ctx, name, "undeploy", "failed", "", time.Since(start), err.Error())
		return false, err
	}

	if hasRecord {
		updated := record.Clone()
		updated.Status = registry.StatusNotInstalled
		now := time.Now()
		updated.LastUpdated = &now
		if err := m.Records.Upsert(ctx, updated); err != nil {
			m.Logger.Error("failed to persist undeploy transition", "server", name, "error", err)
		}
	}

	m.invalidate(name)
	if removed {
		m.pruneBackups(configPath)
	}
	m.recordEvent(ctx, name, "undeploy", "success", "", time.Since(start), "")

	m.Logger.Info("server undeployed", "server", name, "removed", removed)
	return removed, nil
}

// writeEntry merges one entry into the config under the file-scoped lock.
// Returns the backup path (empty when the file did not previously exist).
func (m *Manager) writeEntry(configPath, name string, entry *Entry) (string, error) {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	doc, err := LoadDocument(configPath)
	if err != nil {
		return "", err
	}

	backupPath, err := backupConfig(configPath)
	if err != nil {
		return "", err
	}

	// Replacing by key makes deploy idempotent
	doc[name] = *entry

	if err := writeDocumentAtomic(configPath, doc); err != nil {
		if rerr := restoreConfig(backupPath, configPath); rerr != nil {
			m.Logger.Error("config rollback failed", "server", name, "backup", backupPath, "error", rerr)
		}
		return backupPath, err
	}
	return backupPath, nil
}

// removeEntry deletes one entry from the config under the file-scoped
// lock, using the same backup/validate/rename sequence as writes.
func (m *Manager) removeEntry(configPath, name string) (bool, error) {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	doc, err := LoadDocument(configPath)
	if err != nil {
		return false, err
	}

	if _, present := doc[name]; !present {
		return false, nil
	}

	backupPath, err := backupConfig(configPath)
	if err != nil {
		return false, err
	}

	delete(doc, name)

	if err := writeDocumentAtomic(configPath, doc); err != nil {
		if rerr := restoreConfig(backupPath, configPath); rerr != nil {
			m.Logger.Error("config rollback failed", "server", name, "backup", backupPath, "error", rerr)
		}
		return false, err
	}
	return true, nil
}

// failDeploy moves the record to the error status, restores nothing (the
// write path already rolled back), records the event, and builds the
// failed result.
func (m *Manager) failDeploy(ctx context.Context, record *registry.Record, configPath, backupPath string, start time.Time, cause error) *Result {
	m.setStatus(ctx, record, registry.StatusError)
	m.recordEvent(ctx, record.Name, "deploy", "failed", "", time.Since(start), cause.Error())

	m.Logger.Error("deploy failed", "server", record.Name, "error", cause)

	return &Result{
		ServerName:   record.Name,
		Success:      false,
		ConfigPath:   configPath,
		BackupPath:   backupPath,
		ErrorMessage: cause.Error(),
	}
}

func (m *Manager) setStatus(ctx context.Context, record *registry.Record, status registry.Status) {
	if !record.Status.CanTransition(status) {
		m.Logger.Warn("skipping illegal status transition",
			"server", record.Name, "from", record.Status, "to", status)
		return
	}
	updated := record.Clone()
	updated.Status = status
	if err := m.Records.Upsert(ctx, updated); err != nil {
		m.Logger.Error("failed to persist status transition",
			"server", record.Name, "status", status, "error", err)
	}
}

func (m *Manager) invalidate(name string) {
	if m.Invalidator != nil {
		m.Invalidator.Invalidate(name)
	}
}

func (m *Manager) pruneBackups(configPath string) {
	if err := pruneBackups(configPath, m.KeepBackups); err != nil {
		m.Logger.Warn("backup cleanup failed", "config", configPath, "error", err)
	}
}

func (m *Manager) recordEvent(ctx context.Context, name, action, status, version string, duration time.Duration, errMsg string) {
	if m.Events == nil {
		return
	}

	event := &storage.Event{
		Server: name,
		Action: action,
		Status: status,
	}
	seconds := duration.Seconds()
	event.DurationSeconds = &seconds
	if version != "" {
		event.ResolvedVersion = &version
	}
	if errMsg != "" {
		event.ErrorMessage = &errMsg
	}

	if _, err := m.Events.RecordEvent(ctx, event); err != nil {
		m.Logger.Error("failed to record event", "server", name, "action", action, "error", err)
	}
}

func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
