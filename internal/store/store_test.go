package store

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/itkulocom-bit/attendance/internal/feature"
	"github.com/itkulocom-bit/attendance/internal/verify"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestEnrollPerson(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	photo := []byte("jpeg-bytes")

	t.Run("EnrollAndGet", func(t *testing.T) {
		err := s.EnrollPerson(ctx, &Person{
			ID:    "S001",
			Name:  "Siti Rahma",
			Group: "XII-A",
			Photo: photo,
		})
		if err != nil {
			t.Fatalf("Failed to enroll: %v", err)
		}

		got, err := s.GetPerson(ctx, "S001")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}

		if got.Name != "Siti Rahma" {
			t.Errorf("Expected name 'Siti Rahma', got '%s'", got.Name)
		}
		if got.Group != "XII-A" {
			t.Errorf("Expected group 'XII-A', got '%s'", got.Group)
		}
		if !bytes.Equal(got.Photo, photo) {
			t.Error("Stored photo does not match")
		}
	})

	t.Run("UpsertWithoutPhotoKeepsExisting", func(t *testing.T) {
		err := s.EnrollPerson(ctx, &Person{
			ID:    "S001",
			Name:  "Siti R.",
			Group: "XII-B",
		})
		if err != nil {
			t.Fatalf("Failed to re-enroll: %v", err)
		}

		got, err := s.GetPerson(ctx, "S001")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}

		if got.Name != "Siti R." || got.Group != "XII-B" {
			t.Errorf("Re-enroll should update name and group, got '%s' / '%s'", got.Name, got.Group)
		}
		if !bytes.Equal(got.Photo, photo) {
			t.Error("Re-enrolling without a photo must keep the stored one")
		}
	})

	t.Run("GetUnknownPerson", func(t *testing.T) {
		_, err := s.GetPerson(ctx, "nobody")
		if err == nil {
			t.Fatal("Expected error for unknown person")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("Expected not-found error, got: %v", err)
		}
	})
}

func TestGetEnrolledPerson(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.EnrollPerson(ctx, &Person{
		ID:    "S002",
		Name:  "Budi Santoso",
		Group: "XII-A",
		Photo: []byte("ref"),
	})
	if err != nil {
		t.Fatalf("Failed to enroll: %v", err)
	}

	p, err := s.GetEnrolledPerson(ctx, "S002")
	if err != nil {
		t.Fatalf("Failed to get enrolled person: %v", err)
	}

	if p.IdentityKey != "S002" || p.DisplayName != "Budi Santoso" || p.GroupLabel != "XII-A" {
		t.Errorf("Unexpected enrollment mapping: %+v", p)
	}
	if !bytes.Equal(p.Reference, []byte("ref")) {
		t.Error("Reference photo does not match the stored enrollment photo")
	}
}

func TestListAndDeletePeople(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []Person{
		{ID: "S010", Name: "Ani", Group: "XII-B"},
		{ID: "S011", Name: "Candra", Group: "XII-A"},
		{ID: "S012", Name: "Dewi", Group: "XII-A"},
	} {
		person := p
		if err := s.EnrollPerson(ctx, &person); err != nil {
			t.Fatalf("Failed to enroll %s: %v", p.ID, err)
		}
	}

	t.Run("ListOrderedByGroupAndName", func(t *testing.T) {
		people, err := s.ListPeople(ctx)
		if err != nil {
			t.Fatalf("Failed to list people: %v", err)
		}

		if len(people) != 3 {
			t.Fatalf("Expected 3 people, got %d", len(people))
		}
		if people[0].ID != "S011" || people[1].ID != "S012" || people[2].ID != "S010" {
			t.Errorf("Unexpected order: %s, %s, %s", people[0].ID, people[1].ID, people[2].ID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.DeletePerson(ctx, "S010"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}

		people, err := s.ListPeople(ctx)
		if err != nil {
			t.Fatalf("Failed to list people: %v", err)
		}
		if len(people) != 2 {
			t.Errorf("Expected 2 people after delete, got %d", len(people))
		}
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		if err := s.DeletePerson(ctx, "nobody"); err == nil {
			t.Fatal("Expected error deleting unknown person")
		}
	})
}

func TestAttendance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnrollPerson(ctx, &Person{ID: "S020", Name: "Eka", Group: "XII-C"}); err != nil {
		t.Fatalf("Failed to enroll: %v", err)
	}

	records := []AttendanceRecord{
		{PersonID: "S020", Name: "Eka", Group: "XII-C", Status: StatusPresent, Confidence: 87.5},
		{PersonID: "S020", Name: "Eka", Group: "XII-C", Status: StatusSick},
		{PersonID: "S020", Name: "Eka", Group: "XII-C", Status: StatusPresent, Confidence: 91.0},
	}
	for i := range records {
		if err := s.AppendAttendanceRecord(ctx, &records[i]); err != nil {
			t.Fatalf("Failed to append record %d: %v", i, err)
		}
	}

	t.Run("History", func(t *testing.T) {
		got, err := s.History(ctx, "S020", 10)
		if err != nil {
			t.Fatalf("Failed to get history: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(got))
		}
		for _, rec := range got {
			if rec.PersonID != "S020" {
				t.Errorf("History returned foreign record for %s", rec.PersonID)
			}
		}
	})

	t.Run("HistoryLimit", func(t *testing.T) {
		got, err := s.History(ctx, "S020", 2)
		if err != nil {
			t.Fatalf("Failed to get history: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 records with limit 2, got %d", len(got))
		}
	})

	t.Run("HistoryUnknownPerson", func(t *testing.T) {
		got, err := s.History(ctx, "nobody", 10)
		if err != nil {
			t.Fatalf("Failed to get history: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected empty history, got %d records", len(got))
		}
	})
}

func TestRecordVerification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("TierOutcome", func(t *testing.T) {
		outcome := &verify.Outcome{
			Status:     verify.StatusAccepted,
			Confidence: 72.3,
			Tier:       feature.TierClassical,
			Rationale:  "ClassicalDetector tier matched with confidence 72.3 (accept threshold 65)",
		}

		if err := s.RecordVerification(ctx, "S030", outcome); err != nil {
			t.Fatalf("Failed to record verification: %v", err)
		}

		var logged VerificationLog
		err := s.db.QueryRowContext(ctx,
			`SELECT person_id, outcome, tier, confidence, rationale
			 FROM verifications WHERE person_id = ?`, "S030",
		).Scan(&logged.PersonID, &logged.Outcome, &logged.Tier, &logged.Confidence, &logged.Rationale)
		if err != nil {
			t.Fatalf("Failed to read verification row: %v", err)
		}

		if logged.Outcome != "Accepted" {
			t.Errorf("Expected outcome 'Accepted', got '%s'", logged.Outcome)
		}
		if logged.Tier != "ClassicalDetector" {
			t.Errorf("Expected tier 'ClassicalDetector', got '%s'", logged.Tier)
		}
		if logged.Confidence != 72.3 {
			t.Errorf("Expected confidence 72.3, got %f", logged.Confidence)
		}
	})

	t.Run("PreTierOutcomeLogsNullTier", func(t *testing.T) {
		// Quality rejections and missing-reference verdicts happen before any
		// extraction tier runs; the audit row must not attribute one.
		outcome := &verify.Outcome{
			Status:    verify.StatusNoReferencePhoto,
			Rationale: "no reference photo on file for S031",
		}

		if err := s.RecordVerification(ctx, "S031", outcome); err != nil {
			t.Fatalf("Failed to record verification: %v", err)
		}

		var tier sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT tier FROM verifications WHERE person_id = ?`, "S031",
		).Scan(&tier)
		if err != nil {
			t.Fatalf("Failed to read verification row: %v", err)
		}

		if tier.Valid {
			t.Errorf("Expected NULL tier for a pre-tier outcome, got '%s'", tier.String)
		}
	})
}

func TestValidStatus(t *testing.T) {
	for _, label := range []string{StatusPresent, StatusExcused, StatusSick, StatusAbsent} {
		if !ValidStatus(label) {
			t.Errorf("Expected '%s' to be a valid status", label)
		}
	}
	for _, label := range []string{"", "late", "Present", "hadir"} {
		if ValidStatus(label) {
			t.Errorf("Expected '%s' to be rejected", label)
		}
	}
}
