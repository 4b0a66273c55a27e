package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/aryan0dhankhar/landledger/internal/infrastructure/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logger.ParseLevel(getEnv("LANDLEDGER_LOG_LEVEL", "warn")),
	}))

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, log))
}

// run executes one command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer, log *slog.Logger) int {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		if len(args) < 1 {
			return 2
		}
		return 0
	}

	a, err := openApp(ctx, storePath(), stdout, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	if err := a.dispatch(ctx, args); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, usage.Error())
			return 2
		}
		fmt.Fprintf(stderr, "✗ %v\n", err)
		return 1
	}
	return 0
}

// usageError reports a malformed command line
type usageError string

func (u usageError) Error() string { return string(u) }

// readPassword prompts on stderr and reads without echo
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func storePath() string {
	if home := os.Getenv("LANDLEDGER_HOME"); home != "" {
		return filepath.Join(home, "store.json")
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, ".landledger", "store.json")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `LandLedger CLI

Usage:
  landledger <command> [options]

Commands:
  auth       Accounts (register, login, logout, who, profile, password)
  land       Parcels (register, list, show)
  verify     Run a verification stage (documents, notary, proof, mint)
  transfer   Ownership transfers (send, list)
  dashboard  Account summary
  admin      Admin operations (users, lands, transfers, delete-user) - admin access required
  help       Show this help message

Environment Variables:
  LANDLEDGER_HOME        Directory holding store.json (default: ~/.landledger)
  LANDLEDGER_LOG_LEVEL   Log level on stderr (default: warn)
  ADMIN_EMAIL            Seeded administrator email (default: admin@blockland.com)
  ADMIN_PASSWORD         Seeded administrator password (default: admin123)

Examples:
  landledger auth register -name Alice -email alice@example.com
  landledger auth login -email alice@example.com
  landledger land register -title Farm -area 1200 -address "1 Road" -city Pune -state MH -country India -pincode 411001
  landledger verify documents -land <land-id> -doc deed.pdf
  landledger verify notary -land <land-id> -appointment 2026-11-01T10:00:00Z
  landledger transfer send -land <land-id> -to bob@example.com -amount 1.5
`)
}
