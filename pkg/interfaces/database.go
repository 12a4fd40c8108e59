package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// SessionRecordWriter persists the history record produced at end of session
type SessionRecordWriter interface {
	// CreateSessionRecord writes one immutable session record
	CreateSessionRecord(ctx context.Context, record *types.SessionRecord) error
}

// CourseLookup resolves catalogued courses
type CourseLookup interface {
	// FindCourseByID returns ErrNotFound when no course matches
	FindCourseByID(ctx context.Context, courseID string) (*types.Course, error)
}

// DatabaseManager handles all durable store operations
// ARCHITECTURAL DISCOVERY: Single interface for all persistence operations
// so the SQLite and Postgres stores are interchangeable
type DatabaseManager interface {
	SessionRecordWriter
	CourseLookup

	// ListSessionRecords returns the history of a session id, newest first
	ListSessionRecords(ctx context.Context, sessionID string) ([]*types.SessionRecord, error)

	// UpsertCourse creates or replaces a course record (seeding and dev tooling)
	UpsertCourse(ctx context.Context, course *types.Course) error

	// HealthCheck verifies database connectivity and basic operations
	HealthCheck(ctx context.Context) error

	// Close closes the database connection and cleans up resources
	Close() error
}
