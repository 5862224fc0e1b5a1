package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write roster file: %v", err)
	}
	return path
}

func TestLoadRoster(t *testing.T) {
	t.Run("ValidRoster", func(t *testing.T) {
		path := writeRoster(t, `
- id: S001
  name: Siti Rahma
  group: XII-A
- id: S002
  name: Budi Santoso
  group: XII-B
`)

		entries, err := LoadRoster(path)
		if err != nil {
			t.Fatalf("Failed to load roster: %v", err)
		}

		if len(entries) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(entries))
		}
		if entries[0].ID != "S001" || entries[0].Name != "Siti Rahma" || entries[0].Group != "XII-A" {
			t.Errorf("Unexpected first entry: %+v", entries[0])
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		path := writeRoster(t, `
- id: S001
  group: XII-A
`)

		if _, err := LoadRoster(path); err == nil {
			t.Fatal("Expected error for entry without a name")
		}
	})

	t.Run("MalformedYaml", func(t *testing.T) {
		path := writeRoster(t, "{not a list")

		if _, err := LoadRoster(path); err == nil {
			t.Fatal("Expected error for malformed yaml")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := LoadRoster(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("Expected error for missing file")
		}
	})
}

func TestImportRoster(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Pre-enroll one roster member with a photo; the import must not wipe it.
	err := s.EnrollPerson(ctx, &Person{
		ID:    "S001",
		Name:  "Siti",
		Photo: []byte("existing-photo"),
	})
	if err != nil {
		t.Fatalf("Failed to pre-enroll: %v", err)
	}

	path := writeRoster(t, `
- id: S001
  name: Siti Rahma
  group: XII-A
- id: S002
  name: Budi Santoso
  group: XII-A
- id: S003
  name: Citra Lestari
  group: XII-B
`)

	count, err := s.ImportRoster(ctx, path)
	if err != nil {
		t.Fatalf("Failed to import roster: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 imported entries, got %d", count)
	}

	people, err := s.ListPeople(ctx)
	if err != nil {
		t.Fatalf("Failed to list people: %v", err)
	}
	if len(people) != 3 {
		t.Errorf("Expected 3 enrolled people, got %d", len(people))
	}

	existing, err := s.GetPerson(ctx, "S001")
	if err != nil {
		t.Fatalf("Failed to get pre-enrolled person: %v", err)
	}
	if existing.Name != "Siti Rahma" {
		t.Errorf("Import should update the name, got '%s'", existing.Name)
	}
	if string(existing.Photo) != "existing-photo" {
		t.Error("Import must preserve the existing reference photo")
	}
}
