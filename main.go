package main

import (
	"fmt"
	"os"

	"github.com/itkulocom-bit/attendance/internal/cli"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "enroll":
		cli.RunEnroll(os.Args[2:])
	case "verify":
		cli.RunVerify(os.Args[2:])
	case "history":
		cli.RunHistory(os.Args[2:])
	case "--help", "-h", "help":
		printHelp()
	case "--version", "-v", "version":
		fmt.Printf("attendance %s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("attendance - face verification attendance tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  attendance <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  enroll    Enroll a person with a reference photo, or import a roster")
	fmt.Println("  verify    Verify a captured photo against an enrollment and record attendance")
	fmt.Println("  history   Show attendance history for a person")
	fmt.Println("  version   Print version")
	fmt.Println()
	fmt.Println("Run 'attendance <command>' without options for command usage.")
}
