package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/itkulocom-bit/attendance/internal/store"
	"github.com/itkulocom-bit/attendance/internal/verify"
)

// RunVerify runs the verification CLI
func RunVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	id := fs.String("id", "", "Identity key to verify")
	photo := fs.String("photo", "", "Path to captured photo (JPEG/PNG)")
	status := fs.String("status", store.StatusPresent, "Attendance status label (present|excused|sick|absent)")
	override := fs.Bool("override", false, "Confirm a borderline match as accepted")
	unverified := fs.Bool("unverified", false, "Record attendance with confidence 0 when no reference photo exists")
	savePhoto := fs.Bool("save-photo", false, "Store the captured photo with the attendance record")
	configPath := fs.String("config", "", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	_ = fs.Parse(args)

	logger := newLogger(*verbose)

	if *id == "" || *photo == "" {
		fmt.Println("Usage: attendance verify -id <key> -photo <capture> [options]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  attendance verify -id S1 -photo capture.jpg")
		fmt.Println("  attendance verify -id S1 -photo capture.jpg -override   # Confirm borderline")
		os.Exit(1)
	}

	if !store.ValidStatus(*status) {
		logger.Fatalf("Unrecognized status label: %s", *status)
	}

	cfg := loadConfig(*configPath, logger)

	capture, err := os.ReadFile(*photo)
	if err != nil {
		logger.Fatalf("Failed to read captured photo: %v", err)
	}

	st, err := store.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	engine, err := verify.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	ctx := context.Background()

	outcome, err := engine.VerifyEnrolled(ctx, st, *id, capture)
	if err != nil {
		logger.Fatalf("Verification failed: %v", err)
	}

	// The override decision is the operator's, not the engine's: -override
	// confirms a borderline match, its absence declines it.
	if outcome.Status == verify.StatusBorderlineNeedsOverride {
		fmt.Printf("Borderline match: %s\n", outcome.Rationale)
		if *override {
			fmt.Println("Operator override confirmed")
		} else {
			fmt.Println("No override given, treating as rejected (re-run with -override to confirm)")
		}
		outcome = outcome.Resolve(*override)
	}

	if err := st.RecordVerification(ctx, *id, outcome); err != nil {
		logger.Warnf("Failed to write verification audit log: %v", err)
	}

	fmt.Printf("\nOutcome:    %s\n", outcome.Status)
	fmt.Printf("Confidence: %.1f\n", outcome.Confidence)
	fmt.Printf("Rationale:  %s\n", outcome.Rationale)

	switch outcome.Status {
	case verify.StatusAccepted:
		if err := recordAttendance(ctx, st, *id, *status, outcome.Confidence, capture, *savePhoto); err != nil {
			logger.Fatalf("Failed to record attendance: %v", err)
		}
		fmt.Printf("\nAttendance recorded: %s\n", *status)
	case verify.StatusNoReferencePhoto:
		if *unverified {
			if err := recordAttendance(ctx, st, *id, *status, 0, nil, false); err != nil {
				logger.Fatalf("Failed to record attendance: %v", err)
			}
			fmt.Printf("\nUnverified attendance recorded: %s (confidence 0)\n", *status)
		} else {
			fmt.Println("\nNo reference photo on file; re-run with -unverified to record anyway")
			os.Exit(1)
		}
	default:
		os.Exit(1)
	}
}

func recordAttendance(ctx context.Context, st *store.Store, id, status string,
	confidence float64, capture []byte, savePhoto bool) error {

	person, err := st.GetPerson(ctx, id)
	if err != nil {
		return err
	}

	rec := &store.AttendanceRecord{
		PersonID:   person.ID,
		Name:       person.Name,
		Group:      person.Group,
		Status:     status,
		Confidence: confidence,
	}
	if savePhoto {
		rec.Photo = capture
	}

	return st.AppendAttendanceRecord(ctx, rec)
}

// RunHistory prints the attendance history for a person
func RunHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	id := fs.String("id", "", "Identity key")
	limit := fs.Int("limit", 20, "Maximum rows to show")
	configPath := fs.String("config", "", "Path to configuration file")
	_ = fs.Parse(args)

	logger := newLogger(false)

	if *id == "" {
		fmt.Println("Usage: attendance history -id <key> [-limit 20]")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, logger)

	st, err := store.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	records, err := st.History(context.Background(), *id, *limit)
	if err != nil {
		logger.Fatalf("Failed to get history: %v", err)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance records for %s\n", *id)
		return
	}

	fmt.Printf("Attendance for %s (%d records):\n\n", *id, len(records))
	for _, rec := range records {
		fmt.Printf("  %s  %-8s  confidence %.1f\n",
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Status, rec.Confidence)
	}
}
