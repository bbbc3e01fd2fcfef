package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/synheart-ai/synheart-core/internal/simsignals"
)

// Default configuration constants.
const (
	defaultDuration   = 2 * time.Minute
	defaultInterval   = time.Second
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 30 * time.Minute
	defaultPolicy     = 1
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		duration    = flag.Duration("duration", defaultDuration, "How long to stream batches")
		interval    = flag.Duration("interval", defaultInterval, "Delay between batch rounds")
		workers     = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tier        = flag.String("tier", "extended", "Capability tier to mint: core, extended, research")
		secret      = flag.String("secret", "dev-capability-secret", "Capability signing secret; must match the service")
		tenant      = flag.String("tenant", "local", "Tenant id embedded in the token")
		policy      = flag.Int("policy", defaultPolicy, "Consent policy version to grant against")
		skipConsent = flag.Bool("skip-consent", false, "Leave consents ungranted to exercise denial paths")
		logFile     = flag.String("log", "", "Log file for run output (default: sim_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log full state payloads")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simsignals.ShowHelp()
		return
	}

	// Setup logging
	if err := simsignals.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simsignals.Config{
		BaseURL:          *baseURL,
		Duration:         *duration,
		Interval:         *interval,
		Workers:          *workers,
		Timeout:          *timeout,
		Tier:             *tier,
		CapabilitySecret: *secret,
		TenantID:         *tenant,
		PolicyVersion:    *policy,
		SkipConsent:      *skipConsent,
		LogFile:          *logFile,
		Verbose:          *verbose,
	}

	// Run the simulation
	if err := simsignals.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
