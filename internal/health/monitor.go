package health

import (
	"log/slog"
	"time"

	"mcpdock/internal/deploy"
	"mcpdock/internal/platform"
	"mcpdock/internal/registry"
	"mcpdock/internal/security"
)

// Monitor performs health checks against the host's configuration and
// logs, caching results for a short freshness window.
type Monitor struct {
	Records  *registry.Store
	Platform platform.Resolver
	Logger   *slog.Logger

	// Window and MaxLines bound the log scan. Zero values select the
	// package defaults.
	Window   time.Duration
	MaxLines int

	cache *cache

	// inflight serializes checks per name so concurrent callers share one
	// log scan instead of racing to perform their own.
	inflight *deploy.LockManager
}

// NewMonitor creates a monitor with the default freshness window.
func NewMonitor(records *registry.Store, plat platform.Resolver, logger *slog.Logger) *Monitor {
	return NewMonitorWithFreshness(records, plat, logger, DefaultFreshness)
}

// NewMonitorWithFreshness creates a monitor with an explicit cache
// freshness window. Used by tests and by callers that poll aggressively.
func NewMonitorWithFreshness(records *registry.Store, plat platform.Resolver, logger *slog.Logger, freshness time.Duration) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		Records:  records,
		Platform: plat,
		Logger:   logger,
		cache:    newCache(freshness),
		inflight: deploy.NewLockManager(),
	}
}

// Invalidate drops the cached result for name. The deployment manager
// calls this after any operation that changes whether name is configured.
func (m *Monitor) Invalidate(name string) {
	m.cache.invalidate(name)
}

// CheckHealth reports the inferred health of one server.
//
// Results younger than the freshness window are returned unchanged,
// including CheckedAt. A server absent from the host configuration is
// NotDeployed; a configured server with unreadable logs is Unknown rather
// than an error.
func (m *Monitor) CheckHealth(name string) (*Result, error) {
	if err := security.ValidateServerName(name); err != nil {
		return nil, err
	}

	if result, ok := m.cache.get(name); ok {
		return result, nil
	}

	// Serialize per name so a concurrent check for the same server waits
	// and reuses the scan instead of repeating it.
	m.inflight.Lock(name)
	defer m.inflight.Unlock(name)

	if result, ok := m.cache.get(name); ok {
		return result, nil
	}

	result, err := m.check(name)
	if err != nil {
		return nil, err
	}
	m.cache.put(result)
	return result, nil
}

// CheckAll checks every known record. Individual failures degrade to an
// unknown result rather than aborting the sweep.
func (m *Monitor) CheckAll() []*Result {
	records := m.Records.All()
	results := make([]*Result, 0, len(records))
	for _, record := range records {
		result, err := m.CheckHealth(record.Name)
		if err != nil {
			m.Logger.Warn("health check failed", "server", record.Name, "error", err)
			result = &Result{
				ServerName: record.Name,
				Status:     StatusUnknown,
				CheckedAt:  time.Now(),
			}
		}
		results = append(results, result)
	}
	return results
}

func (m *Monitor) check(name string) (*Result, error) {
	configPath, err := m.Platform.ConfigPath()
	if err != nil {
		return nil, err
	}

	doc, err := deploy.LoadDocument(configPath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, deployed := doc[name]; !deployed {
		return &Result{
			ServerName: name,
			Status:     StatusNotDeployed,
			Deployed:   false,
			CheckedAt:  now,
		}, nil
	}

	logDir, err := m.Platform.LogDir()
	if err != nil {
		return nil, err
	}

	summary, err := scanLogs(logDir, name, m.Window, m.MaxLines)
	if err != nil {
		// No log evidence is not a failure state
		m.Logger.Debug("log scan unavailable", "server", name, "dir", logDir, "error", err)
		return &Result{
			ServerName: name,
			Status:     StatusUnknown,
			Deployed:   true,
			CheckedAt:  now,
		}, nil
	}

	return &Result{
		ServerName:     name,
		Status:         classify(summary),
		Deployed:       true,
		LastSeenInLogs: summary.lastSeen,
		ErrorCount:     summary.errorCount,
		WarningCount:   summary.warningCount,
		RecentErrors:   summary.recentErrors,
		RecentWarnings: summary.recentWarnings,
		CheckedAt:      now,
	}, nil
}

// classify ranks evidence by severity: errors beat warnings beat plain
// activity beat silence.
func classify(summary *scanSummary) Status {
	switch {
	case summary.errorCount > 0:
		return StatusUnhealthy
	case summary.warningCount > 0:
		return StatusDegraded
	case summary.matched():
		return StatusHealthy
	default:
		return StatusUnknown
	}
}
