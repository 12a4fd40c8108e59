package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	dbconfig "liveclass/pkg/database"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Manager implements interfaces.DatabaseManager on SQLite
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	retryDelay   time.Duration
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

var errManagerClosed = errors.New("database manager is closed")

// NewManager opens the database and starts the writer goroutine
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := config.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
		retryDelay:   5 * time.Second,
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			// FUNCTIONAL DISCOVERY: A failed write is retried exactly once
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in %s: %v", m.retryDelay, err)
				time.Sleep(m.retryDelay)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return errManagerClosed
	}

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateSessionRecord inserts one ended-session history row
func (m *Manager) CreateSessionRecord(ctx context.Context, record *types.SessionRecord) error {
	attendees := record.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	// TECHNICAL DISCOVERY: JSON serialization for the attendee snapshot keeps
	// the record a single row
	attendeesJSON, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("failed to marshal attendees: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO session_records (session_id, instructor_id, start_time, end_time, attendees)
			VALUES (?, ?, ?, ?, ?)
		`,
			record.SessionID,
			record.InstructorID,
			record.StartTime.UTC(),
			record.EndTime.UTC(),
			string(attendeesJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert session record: %w", err)
		}
		return nil
	})
}

// ListSessionRecords returns the history of a session id, newest first
func (m *Manager) ListSessionRecords(ctx context.Context, sessionID string) ([]*types.SessionRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT session_id, instructor_id, start_time, end_time, attendees
		FROM session_records
		WHERE session_id = ?
		ORDER BY end_time DESC, id DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*types.SessionRecord{}
	for rows.Next() {
		var record types.SessionRecord
		var attendeesJSON string

		if err := rows.Scan(
			&record.SessionID,
			&record.InstructorID,
			&record.StartTime,
			&record.EndTime,
			&attendeesJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		if err := json.Unmarshal([]byte(attendeesJSON), &record.Attendees); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attendees: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session records: %w", err)
	}

	return records, nil
}

// FindCourseByID resolves a course, returning interfaces.ErrNotFound when absent
func (m *Manager) FindCourseByID(ctx context.Context, courseID string) (*types.Course, error) {
	var course types.Course
	err := m.db.QueryRowContext(ctx,
		"SELECT id, title, instructor_id FROM courses WHERE id = ?",
		courseID,
	).Scan(&course.ID, &course.Title, &course.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query course: %w", err)
	}
	return &course, nil
}

// UpsertCourse creates or replaces a course row
func (m *Manager) UpsertCourse(ctx context.Context, course *types.Course) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO courses (id, title, instructor_id)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				instructor_id = excluded.instructor_id,
				updated_at = CURRENT_TIMESTAMP
		`, course.ID, course.Title, course.InstructorID)
		if err != nil {
			return fmt.Errorf("failed to upsert course: %w", err)
		}
		return nil
	})
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB returns the underlying database connection for migrations
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the writer goroutine and the connection pool
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
