// Package health infers the operational state of deployed servers from the
// host application's log output.
//
// The host launches configured servers itself and exposes no health
// endpoint, so the only observable signal is what it logs. Results are
// heuristic: a server is judged by recent log lines that mention its name,
// classified by severity. Absence of evidence maps to an unknown status,
// never to a failure.
package health

import "time"

// Status classifies a server's inferred health.
type Status string

const (
	// StatusHealthy means recent log activity mentions the server with no
	// errors or warnings.
	StatusHealthy Status = "healthy"

	// StatusDegraded means warnings but no errors were seen.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means at least one error-severity line mentioned
	// the server inside the scan window.
	StatusUnhealthy Status = "unhealthy"

	// StatusUnknown means the server is configured but no recent log line
	// mentions it. Not an error state.
	StatusUnknown Status = "unknown"

	// StatusNotDeployed means the server has no entry in the host
	// configuration file.
	StatusNotDeployed Status = "not_deployed"
)

// Result is one health check outcome. Results are ephemeral; they live in
// the monitor's cache and are never persisted.
type Result struct {
	ServerName string `json:"server_name"`
	Status     Status `json:"status"`
	Deployed   bool   `json:"deployed"`

	// LastSeenInLogs is the newest log timestamp mentioning the server,
	// nil when no line matched.
	LastSeenInLogs *time.Time `json:"last_seen_in_logs,omitempty"`

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	// RecentErrors and RecentWarnings are most-recent-first and capped.
	RecentErrors   []string `json:"recent_errors,omitempty"`
	RecentWarnings []string `json:"recent_warnings,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}
