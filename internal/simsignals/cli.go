package simsignals

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/synheart-ai/synheart-core/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the signal simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Synheart Signal Simulator
=========================

A concurrent tool for driving the state fusion runtime with synthetic
wearable, phone, and behavior batches.

Usage:
  go run cmd/sim-signals/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -duration duration
        How long to stream batches (default 2m)
  -interval duration
        Delay between batch rounds (default 1s)
  -workers int
        Number of concurrent submitters (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -tier string
        Capability tier to mint: core, extended, research (default "extended")
  -secret string
        Capability signing secret; must match the service
  -tenant string
        Tenant id embedded in the token (default "local")
  -policy int
        Consent policy version to grant against (default 1)
  -skip-consent
        Leave consents ungranted to exercise denial paths
  -log string
        Log file for run output (default: sim_log_TIMESTAMP.log)
  -verbose
        Log full state payloads
  -help
        Show this help message

Examples:
  # Drive a locally running service with defaults
  go run cmd/sim-signals/main.go

  # Longer run at research tier
  go run cmd/sim-signals/main.go -duration 10m -tier research

  # Exercise consent denial paths
  go run cmd/sim-signals/main.go -skip-consent -duration 1m
`)
}
