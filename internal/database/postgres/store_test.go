package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

var _ interfaces.DatabaseManager = (*Store)(nil)

func TestCreateSessionRecord_EncodesAttendees(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("insert into session_records")).
		WithArgs("c1", "instructor-a", start, end, []byte(`["u1","u2"]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := New(mock)
	err = s.CreateSessionRecord(context.Background(), &types.SessionRecord{
		SessionID:    "c1",
		InstructorID: "instructor-a",
		StartTime:    start,
		EndTime:      end,
		Attendees:    []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("CreateSessionRecord returned err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateSessionRecord_NilAttendeesStoredAsEmptyArray(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	start := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("insert into session_records")).
		WithArgs("adhoc1", "instructor-a", start, start, []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := New(mock)
	err = s.CreateSessionRecord(context.Background(), &types.SessionRecord{
		SessionID:    "adhoc1",
		InstructorID: "instructor-a",
		StartTime:    start,
		EndTime:      start,
	})
	if err != nil {
		t.Fatalf("CreateSessionRecord returned err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListSessionRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"session_id", "instructor_id", "start_time", "end_time", "attendees"}).
		AddRow("c1", "instructor-a", start.Add(24*time.Hour), start.Add(25*time.Hour), []byte(`[]`)).
		AddRow("c1", "instructor-a", start, start.Add(time.Hour), []byte(`["u1"]`))
	mock.ExpectQuery(regexp.QuoteMeta("select session_id, instructor_id, start_time, end_time, attendees")).
		WithArgs("c1").
		WillReturnRows(rows)

	s := New(mock)
	out, err := s.ListSessionRecords(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListSessionRecords returned err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if len(out[1].Attendees) != 1 || out[1].Attendees[0] != "u1" {
		t.Fatalf("unexpected attendees: %v", out[1].Attendees)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindCourseByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("select id, title, instructor_id from courses")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	s := New(mock)
	_, err = s.FindCourseByID(context.Background(), "missing")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindCourseByID_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("select id, title, instructor_id from courses")).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "instructor_id"}).
			AddRow("c1", "Distributed Systems", "instructor-a"))

	s := New(mock)
	course, err := s.FindCourseByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FindCourseByID returned err: %v", err)
	}
	if course.Title != "Distributed Systems" || course.InstructorID != "instructor-a" {
		t.Fatalf("unexpected course: %+v", course)
	}
}

func TestUpsertCourse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("insert into courses")).
		WithArgs("c1", "Distributed Systems", "instructor-a").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := New(mock)
	if err := s.UpsertCourse(context.Background(), &types.Course{ID: "c1", Title: "Distributed Systems", InstructorID: "instructor-a"}); err != nil {
		t.Fatalf("UpsertCourse returned err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate_RunsSchemaInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists courses")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	s := New(mock)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate returned err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("select 1")).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	if err := New(mock).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned err: %v", err)
	}
}
