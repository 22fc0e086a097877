// Package cmd contains the CLI entry points: command routing, flag
// handling, and process lifecycle. main.go stays a minimal shim.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"ragchat/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the ragchat CLI.
// It handles command routing and delegates to the subcommand runners.
func Execute() error {
	// Handle version and help before full initialization so they work
	// even if config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			initLogger()
			return runServe(os.Args[2:])
		case "load":
			initLogger()
			return runLoad(os.Args[2:])
		default:
			printHelp()
			return fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	printHelp()
	return nil
}

// initLogger installs the structured logger as the process default.
// DEBUG env var (any value) enables debug level.
func initLogger() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level, JSON: false}))
}

func printVersionInfo() {
	fmt.Printf("ragchat v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("ragchat - retrieval-augmented chat service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragchat serve              Start the HTTP API server")
	fmt.Println("  ragchat load --sample      Load the built-in sample documents")
	fmt.Println("  ragchat load <file>...     Load text files into the knowledge store")
	fmt.Println("  ragchat version            Show version information")
	fmt.Println("  ragchat help               Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Optional: overrides PostgreSQL settings")
	fmt.Println("  DEBUG              Optional: enable debug logging")
}
