// Package store provides persistent storage for enrolled people and
// attendance records. It is the storage collaborator of the verification
// engine: the engine reads enrollments through it and the CLI appends
// attendance and audit rows after a verdict.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/itkulocom-bit/attendance/internal/feature"
	"github.com/itkulocom-bit/attendance/internal/verify"
)

// Recognized attendance status labels.
const (
	StatusPresent = "present"
	StatusExcused = "excused"
	StatusSick    = "sick"
	StatusAbsent  = "absent"
)

// ValidStatus reports whether label is one of the recognized status labels.
func ValidStatus(label string) bool {
	switch label {
	case StatusPresent, StatusExcused, StatusSick, StatusAbsent:
		return true
	}
	return false
}

// Person represents an enrolled person.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Group     string    `json:"group"`
	Photo     []byte    `json:"-"` // Normalized reference photo, JPEG bytes
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendanceRecord is one append-only attendance row.
type AttendanceRecord struct {
	ID         int64     `json:"id"`
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	Group      string    `json:"group"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Photo      []byte    `json:"-"` // Optional captured photo
	CreatedAt  time.Time `json:"created_at"`
}

// VerificationLog is one audit row, written for every terminal outcome.
type VerificationLog struct {
	ID         int64     `json:"id"`
	PersonID   string    `json:"person_id"`
	Outcome    string    `json:"outcome"`
	Tier       string    `json:"tier"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store provides persistent storage backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		group_label TEXT,
		photo BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_people_group ON people(group_label);

	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id TEXT NOT NULL,
		name TEXT,
		group_label TEXT,
		status TEXT NOT NULL,
		confidence REAL,
		photo BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (person_id) REFERENCES people(id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_person_id ON attendance(person_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_created_at ON attendance(created_at);

	CREATE TABLE IF NOT EXISTS verifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id TEXT,
		outcome TEXT NOT NULL,
		tier TEXT,
		confidence REAL,
		rationale TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_verifications_person_id ON verifications(person_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnrollPerson inserts or replaces an enrollment. The photo may be nil when
// the person is enrolled without a reference image.
func (s *Store) EnrollPerson(ctx context.Context, p *Person) error {
	now := time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO people (id, name, group_label, photo, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   group_label = excluded.group_label,
		   photo = COALESCE(excluded.photo, people.photo),
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Group, p.Photo, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to enroll person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by identity key.
func (s *Store) GetPerson(ctx context.Context, id string) (*Person, error) {
	var p Person
	var photo []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, group_label, photo, created_at, updated_at
		 FROM people WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Name, &p.Group, &photo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("person not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	p.Photo = photo
	return &p, nil
}

// GetEnrolledPerson satisfies verify.Directory.
func (s *Store) GetEnrolledPerson(ctx context.Context, identityKey string) (*verify.Person, error) {
	p, err := s.GetPerson(ctx, identityKey)
	if err != nil {
		return nil, err
	}
	return &verify.Person{
		IdentityKey: p.ID,
		DisplayName: p.Name,
		GroupLabel:  p.Group,
		Reference:   p.Photo,
	}, nil
}

// ListPeople returns all enrolled people without their photos.
func (s *Store) ListPeople(ctx context.Context) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, group_label, created_at, updated_at
		 FROM people ORDER BY group_label, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Group, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}

	return people, rows.Err()
}

// DeletePerson removes an enrollment.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("person not found: %s", id)
	}

	return nil
}

// AppendAttendanceRecord appends one attendance row. The append is not
// deduplicated; duplicate submissions are the caller's concern.
func (s *Store) AppendAttendanceRecord(ctx context.Context, rec *AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (person_id, name, group_label, status, confidence, photo)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.PersonID, rec.Name, rec.Group, rec.Status, rec.Confidence, rec.Photo,
	)
	if err != nil {
		return fmt.Errorf("failed to append attendance record: %w", err)
	}
	return nil
}

// History returns attendance rows for a person, newest first.
func (s *Store) History(ctx context.Context, personID string, limit int) ([]AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, person_id, name, group_label, status, confidence, created_at
		 FROM attendance
		 WHERE person_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		personID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []AttendanceRecord
	for rows.Next() {
		var rec AttendanceRecord
		var confidence sql.NullFloat64

		err := rows.Scan(&rec.ID, &rec.PersonID, &rec.Name, &rec.Group,
			&rec.Status, &confidence, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}

		if confidence.Valid {
			rec.Confidence = confidence.Float64
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// RecordVerification writes one audit row for a terminal outcome. Outcomes
// reached before any extraction tier ran (quality rejections, missing
// reference photo, input errors) carry no tier and log NULL.
func (s *Store) RecordVerification(ctx context.Context, personID string, outcome *verify.Outcome) error {
	var tier any
	if outcome.Tier != feature.TierNone {
		tier = outcome.Tier.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verifications (person_id, outcome, tier, confidence, rationale)
		 VALUES (?, ?, ?, ?, ?)`,
		personID, outcome.Status.String(), tier,
		outcome.Confidence, outcome.Rationale,
	)
	if err != nil {
		return fmt.Errorf("failed to record verification: %w", err)
	}
	return nil
}
