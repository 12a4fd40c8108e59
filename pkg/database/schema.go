package database

import (
	"database/sql"
	"fmt"
	"time"
)

type tableSpec struct {
	name    string
	columns map[string]string
}

// expectedTables mirrors migrations/001_initial_schema.sql
var expectedTables = []tableSpec{
	{name: "courses", columns: map[string]string{
		"id":            "TEXT",
		"title":         "TEXT",
		"instructor_id": "TEXT",
	}},
	{name: "session_records", columns: map[string]string{
		"id":            "INTEGER",
		"session_id":    "TEXT",
		"instructor_id": "TEXT",
		"start_time":    "DATETIME",
		"end_time":      "DATETIME",
		"attendees":     "TEXT",
	}},
	{name: "schema_migrations"},
}

var expectedIndexes = []string{
	"idx_courses_instructor",
	"idx_session_records_session_end",
	"idx_session_records_instructor",
}

// SchemaValidator checks a migrated database against the shape the stores expect
// ARCHITECTURAL DISCOVERY: Kept apart from the migrator so deployments can run
// `liveclass migrate --check` against an existing file
type SchemaValidator struct {
	db *sql.DB
}

func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every check and stops at the first failure
func (v *SchemaValidator) Validate() error {
	for _, check := range []func() error{
		v.ValidateTablesExist,
		v.ValidateTableStructure,
		v.ValidateIndexes,
		v.ValidateConstraints,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range expectedTables {
		if err := v.requireObject("table", table.name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTableStructure compares declared column types
func (v *SchemaValidator) ValidateTableStructure() error {
	for _, table := range expectedTables {
		if len(table.columns) == 0 {
			continue
		}
		found, err := v.columnTypes(table.name)
		if err != nil {
			return fmt.Errorf("read %s columns: %w", table.name, err)
		}
		for column, want := range table.columns {
			got, ok := found[column]
			switch {
			case !ok:
				return fmt.Errorf("%s table structure invalid: column %s not found", table.name, column)
			case got != want:
				return fmt.Errorf("%s table structure invalid: column %s has type %s, expected %s", table.name, column, got, want)
			}
		}
	}
	return nil
}

func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range expectedIndexes {
		if err := v.requireObject("index", index); err != nil {
			return err
		}
	}
	return nil
}

// ValidateConstraints probes the session_records CHECK clauses
// FUNCTIONAL DISCOVERY: Probes run inside a rolled back transaction so the
// validator never leaves rows behind
func (v *SchemaValidator) ValidateConstraints() error {
	tx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	probes := []struct {
		constraint string
		start, end time.Time
		attendees  string
	}{
		{"end_time >= start_time", now, now.Add(-time.Hour), "[]"},
		{"attendees json", now, now, "not json"},
	}

	const insert = `INSERT INTO session_records (session_id, instructor_id, start_time, end_time, attendees)
		VALUES ('schema-check', 'schema-check', ?, ?, ?)`
	for _, p := range probes {
		if _, err := tx.Exec(insert, p.start, p.end, p.attendees); err == nil {
			return fmt.Errorf("check constraint not enforced: session_records %s", p.constraint)
		}
	}
	return nil
}

func (v *SchemaValidator) requireObject(kind, name string) error {
	var count int
	err := v.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count)
	if err != nil {
		return fmt.Errorf("lookup %s %s: %w", kind, name, err)
	}
	if count == 0 {
		return fmt.Errorf("required %s %s does not exist", kind, name)
	}
	return nil
}

func (v *SchemaValidator) columnTypes(table string) (map[string]string, error) {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types := make(map[string]string)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			defaultValue     any
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		types[name] = dataType
	}
	return types, rows.Err()
}
