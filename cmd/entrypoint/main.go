// Package main provides the Docker container entrypoint
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const moderatorBinary = "/app/bin/moderator"

func main() {
	// Get environment variables with defaults
	runType := getEnvWithDefault("RUN_TYPE", "run")
	autoMigrate := getEnvWithDefault("AUTO_MIGRATE", "false")

	switch runType {
	case "run":
		// Migrations run first so the moderator never blocks on the interactive prompt
		if autoMigrate == "true" {
			execBinary(moderatorBinary, "migrate")
		}
		execBinary(moderatorBinary, "run")
	case "migrate":
		execBinary(moderatorBinary, "migrate")
	default:
		fmt.Fprintf(os.Stderr, "Invalid RUN_TYPE. Must be either 'run' or 'migrate'\n")
		fmt.Fprintf(os.Stderr, "Usage: RUN_TYPE=<run|migrate> [AUTO_MIGRATE=true]\n")
		os.Exit(1)
	}
}

// getEnvWithDefault returns the environment variable value or the default if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// execBinary executes the specified binary with given arguments.
func execBinary(path string, args ...string) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute %s: %v\n", filepath.Base(path), err)
		os.Exit(1)
	}
}
