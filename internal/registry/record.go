package registry

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a managed server. It is a closed enum:
// values outside the four constants are rejected at parse time rather than
// carried through the system as free-form strings.
type Status string

const (
	StatusNotInstalled Status = "not_installed"
	StatusInstalled    Status = "installed"
	StatusError        Status = "error"
	StatusUpdating     Status = "updating"
)

// ParseStatus converts a persisted string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotInstalled, StatusInstalled, StatusError, StatusUpdating:
		return Status(s), nil
	case "":
		return StatusNotInstalled, nil
	default:
		return "", fmt.Errorf("unknown server status %q", s)
	}
}

// Valid reports whether the status is one of the defined constants.
func (s Status) Valid() bool {
	switch s {
	case StatusNotInstalled, StatusInstalled, StatusError, StatusUpdating:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step:
//
//	any        -> updating       (deployment started)
//	updating   -> installed      (deploy success)
//	updating   -> error          (deploy failure)
//	any        -> error          (operation failure)
//	installed  -> not_installed  (undeploy)
//	error      -> not_installed  (undeploy of a failed entry)
//	not_installed -> not_installed (undeploy with nothing to remove)
//	installed/error/not_installed -> installed (direct deploy success)
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	switch next {
	case StatusUpdating, StatusError:
		return true
	case StatusInstalled:
		return true
	case StatusNotInstalled:
		return s != StatusUpdating
	}
	return false
}

// Record is one managed server entry.
type Record struct {
	// Name uniquely identifies the server; restricted charset, never a
	// path segment.
	Name string

	// SourceRef is an owner/repo reference to where the server's code
	// comes from. Validated here, resolved elsewhere.
	SourceRef string

	// VersionSpec is a concrete tag or the "latest" sentinel.
	VersionSpec string

	// Env holds configuration variables injected into the deployed entry.
	Env map[string]string

	Status Status

	// ResolvedCommit and ResolvedVersion are filled in once a concrete
	// artifact has been resolved.
	ResolvedCommit  string
	ResolvedVersion string

	// InstalledAt and LastUpdated are set only by the deployment manager
	// on successful transitions.
	InstalledAt *time.Time
	LastUpdated *time.Time
}

// Clone returns a deep copy so callers can mutate records without
// affecting the store's view.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Env != nil {
		out.Env = make(map[string]string, len(r.Env))
		for k, v := range r.Env {
			out.Env[k] = v
		}
	}
	if r.InstalledAt != nil {
		t := *r.InstalledAt
		out.InstalledAt = &t
	}
	if r.LastUpdated != nil {
		t := *r.LastUpdated
		out.LastUpdated = &t
	}
	return &out
}
