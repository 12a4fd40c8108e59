package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of pgxpool.Pool the store uses, so tests can inject pgxmock
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store implements interfaces.DatabaseManager on Postgres
type Store struct {
	db    DB
	close func()
}

// New wraps an existing connection
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pgx pool to databaseURL
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// Migrate applies the schema inside one transaction
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateSessionRecord(ctx context.Context, record *types.SessionRecord) error {
	attendees := record.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	raw, err := json.Marshal(attendees)
	if err != nil {
		return err
	}

	const q = `
insert into session_records (session_id, instructor_id, start_time, end_time, attendees)
values ($1, $2, $3, $4, $5)`
	_, err = s.db.Exec(ctx, q, record.SessionID, record.InstructorID, record.StartTime.UTC(), record.EndTime.UTC(), raw)
	return err
}

func (s *Store) ListSessionRecords(ctx context.Context, sessionID string) ([]*types.SessionRecord, error) {
	const q = `
select session_id, instructor_id, start_time, end_time, attendees
from session_records
where session_id = $1
order by end_time desc, id desc`

	rows, err := s.db.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*types.SessionRecord{}
	for rows.Next() {
		var rec types.SessionRecord
		var raw []byte
		if err := rows.Scan(&rec.SessionID, &rec.InstructorID, &rec.StartTime, &rec.EndTime, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.Attendees); err != nil {
			return nil, fmt.Errorf("decode attendees: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) FindCourseByID(ctx context.Context, courseID string) (*types.Course, error) {
	const q = `select id, title, instructor_id from courses where id = $1`

	var out types.Course
	if err := s.db.QueryRow(ctx, q, courseID).Scan(&out.ID, &out.Title, &out.InstructorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpsertCourse(ctx context.Context, course *types.Course) error {
	const q = `
insert into courses (id, title, instructor_id)
values ($1, $2, $3)
on conflict (id) do update set
  title = excluded.title,
  instructor_id = excluded.instructor_id,
  updated_at = now()`
	_, err := s.db.Exec(ctx, q, course.ID, course.Title, course.InstructorID)
	return err
}

func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "select 1").Scan(&one); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
