package storage

import "time"

// Event is a single deployment event in the database.
type Event struct {
	ID              int64
	Server          string
	Action          string // deploy, undeploy
	Status          string // success, failed, rejected
	ResolvedVersion *string
	DurationSeconds *float64
	ErrorMessage    *string
	CreatedAt       time.Time
}
