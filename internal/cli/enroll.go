// Package cli provides command-line interface functionality for the
// attendance verifier
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/itkulocom-bit/attendance/internal/config"
	"github.com/itkulocom-bit/attendance/internal/store"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

// RunEnroll runs the enrollment CLI
func RunEnroll(args []string) {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	id := fs.String("id", "", "Identity key to enroll")
	name := fs.String("name", "", "Display name")
	group := fs.String("group", "", "Class or group label")
	photo := fs.String("photo", "", "Path to reference photo (JPEG/PNG)")
	roster := fs.String("roster", "", "Import a yaml roster file")
	deleteID := fs.String("delete", "", "Delete an enrollment")
	listPeople := fs.Bool("list", false, "List enrolled people")
	configPath := fs.String("config", "", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	_ = fs.Parse(args)

	logger := newLogger(*verbose)
	cfg := loadConfig(*configPath, logger)

	st, err := store.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	switch {
	case *listPeople:
		if err := listEnrolled(ctx, st); err != nil {
			logger.Fatalf("Failed to list people: %v", err)
		}
	case *deleteID != "":
		if err := st.DeletePerson(ctx, *deleteID); err != nil {
			logger.Fatalf("Failed to delete enrollment: %v", err)
		}
		fmt.Printf("Deleted enrollment for %s\n", *deleteID)
	case *roster != "":
		count, err := st.ImportRoster(ctx, *roster)
		if err != nil {
			logger.Fatalf("Roster import failed: %v", err)
		}
		fmt.Printf("Imported %d people from %s\n", count, *roster)
	case *id != "":
		if err := enrollPerson(ctx, cfg, st, *id, *name, *group, *photo, logger); err != nil {
			logger.Fatalf("Enrollment failed: %v", err)
		}
	default:
		fmt.Println("Usage: attendance enroll -id <key> -name <name> [options]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  attendance enroll -id S1 -name \"Siti A.\" -group TI-1A -photo ref.jpg")
		fmt.Println("  attendance enroll -roster class.yaml        # Import a roster")
		fmt.Println("  attendance enroll -list                     # List enrolled people")
		fmt.Println("  attendance enroll -delete S1                # Delete an enrollment")
		os.Exit(1)
	}
}

func enrollPerson(ctx context.Context, cfg *config.Config, st *store.Store,
	id, name, group, photoPath string, logger *logrus.Logger) error {

	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if !isValidIdentityKey(id) {
		return fmt.Errorf("invalid identity key: %s", id)
	}

	person := &store.Person{ID: id, Name: name, Group: group}

	if photoPath != "" {
		data, err := os.ReadFile(photoPath)
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}

		normalized, err := imaging.Normalize(data, cfg.Normalizer.MaxEdge, cfg.Normalizer.Quality)
		if err != nil {
			return fmt.Errorf("failed to normalize photo: %w", err)
		}

		person.Photo = normalized.Encoded
		logger.Debugf("Reference photo normalized to %dx%d (%d bytes)",
			normalized.Width, normalized.Height, len(normalized.Encoded))
	} else {
		logger.Warnf("Enrolling %s without a reference photo; verification will report NoReferencePhoto", id)
	}

	if err := st.EnrollPerson(ctx, person); err != nil {
		return err
	}

	fmt.Printf("Enrolled %s (%s)\n", name, id)
	return nil
}

func listEnrolled(ctx context.Context, st *store.Store) error {
	people, err := st.ListPeople(ctx)
	if err != nil {
		return err
	}

	if len(people) == 0 {
		fmt.Println("No people enrolled")
		return nil
	}

	fmt.Printf("Enrolled people (%d):\n\n", len(people))
	for _, p := range people {
		fmt.Printf("  %-12s %-24s %s\n", p.ID, p.Name, p.Group)
	}
	return nil
}

func isValidIdentityKey(key string) bool {
	if key == "" || len(key) > 64 {
		return false
	}
	for _, r := range key {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.", r) {
			return false
		}
	}
	return true
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func loadConfig(path string, logger *logrus.Logger) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warnf("Using default configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}
