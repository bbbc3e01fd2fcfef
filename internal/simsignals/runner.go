package simsignals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synheart-ai/synheart-core/internal/app"
	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/fusion"
	"github.com/synheart-ai/synheart-core/internal/domain/interp"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/pkg/logger"
)

// Capability token lifetime minted for a run.
const tokenLifetime = time.Hour

// Run executes the complete signal simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting signal simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("duration", config.Duration.String()),
		logger.String("interval", config.Interval.String()),
		logger.Int("workers", config.Workers),
		logger.String("tier", config.Tier),
		logger.Any("skipConsent", config.SkipConsent))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	client := newHTTPClient(config.Timeout)

	// Step 2: Install a capability token
	if err := installCapability(ctx, config, client); err != nil {
		return fmt.Errorf("capability install failed: %w", err)
	}

	// Step 3: Grant consents unless exercising denial paths
	if !config.SkipConsent {
		if err := grantConsents(ctx, config, client); err != nil {
			return fmt.Errorf("consent grant failed: %w", err)
		}
	}

	// Step 4: Stream synthetic batches for the configured duration
	if err := streamBatches(ctx, config, client, stats); err != nil {
		return fmt.Errorf("batch streaming failed: %w", err)
	}

	// Step 5: Observe the latest fused state per window class
	observeStates(ctx, config, client, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// installCapability mints a token covering the full module surface at the
// configured tier and installs it via PUT /v1/capability.
func installCapability(ctx context.Context, config *Config, client *HTTPClient) error {
	now := time.Now()
	token := access.CapabilityToken{
		TenantID: config.TenantID,
		AppID:    "sim-signals",
		Tier:     model.Tier(config.Tier),
		Grants: map[string][]model.Verb{
			app.ModuleSignals:           {model.VerbCollect},
			fusion.ModuleAffect:         {model.VerbCompute},
			fusion.ModuleEngagement:     {model.VerbCompute},
			fusion.ModuleLoad:           {model.VerbCompute},
			interp.ModuleInterpretation: {model.VerbInfer},
			app.ModuleExport:            {model.VerbExport},
		},
		IssuedAt:  now,
		ExpiresAt: now.Add(tokenLifetime),
	}
	blob, err := access.SignCapabilityToken(token, []byte(config.CapabilitySecret))
	if err != nil {
		return err
	}

	resp, err := client.Send(ctx, http.MethodPut, config.BaseURL+"/v1/capability", CapabilityRequest{Token: blob})
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("capability rejected with status %d: %s", resp.StatusCode, body)
	}

	logger.Get().Info(ctx, "capability installed", logger.String("tier", config.Tier))
	return nil
}

// grantConsents grants every consent category against the configured
// policy version.
func grantConsents(ctx context.Context, config *Config, client *HTTPClient) error {
	types := []model.ConsentType{
		model.ConsentBiosignals,
		model.ConsentPhoneContext,
		model.ConsentBehavior,
		model.ConsentCloudUpload,
		model.ConsentFocusEstimation,
		model.ConsentEmotionEstimation,
	}
	for _, t := range types {
		req := ConsentRequest{
			Type:               string(t),
			Granted:            true,
			TS:                 time.Now(),
			PolicyVersion:      config.PolicyVersion,
			ConsentTextVersion: config.PolicyVersion,
		}
		resp, err := client.Send(ctx, http.MethodPut, config.BaseURL+"/v1/consent", req)
		if err != nil {
			return err
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("consent %s rejected with status %d: %s", t, resp.StatusCode, body)
		}
	}
	logger.Get().Info(ctx, "consents granted", logger.Int("count", len(types)))
	return nil
}

// streamBatches submits generated rounds concurrently until the duration
// elapses.
func streamBatches(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) error {
	logger.Get().Info(ctx, "streaming synthetic batches",
		logger.String("duration", config.Duration.String()),
		logger.String("interval", config.Interval.String()))

	var (
		generated int64
		submitted int64
		accepted  int64
		rejected  int64
	)

	frameChan := make(chan FrameRequest, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for frame := range frameChan {
				select {
				case <-ctx.Done():
					return
				default:
					atomic.AddInt64(&submitted, 1)
					if submitSingleBatch(ctx, client, config.BaseURL+"/v1/frames", frame) {
						atomic.AddInt64(&accepted, 1)
					} else {
						atomic.AddInt64(&rejected, 1)
					}
				}
			}
		}()
	}

	deadline := time.Now().Add(config.Duration)
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			if now.After(deadline) {
				break loop
			}
			for _, frame := range generateRound(now) {
				atomic.AddInt64(&generated, 1)
				select {
				case <-ctx.Done():
					break loop
				case frameChan <- frame:
				}
			}
		}
	}
	close(frameChan)
	wg.Wait()

	stats.BatchesGenerated = int(atomic.LoadInt64(&generated))
	stats.BatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BatchesAccepted = int(atomic.LoadInt64(&accepted))
	stats.BatchesRejected = int(atomic.LoadInt64(&rejected))
	return nil
}

// submitSingleBatch submits one frame and reports acceptance.
func submitSingleBatch(ctx context.Context, client *HTTPClient, url string, frame FrameRequest) bool {
	resp, err := client.Send(ctx, http.MethodPost, url, frame)
	if err != nil {
		return false
	}
	if _, err := readResponseBody(resp); err != nil {
		return false
	}
	return resp.StatusCode == http.StatusAccepted
}

// observeStates fetches the latest state for each window class and logs
// what came back.
func observeStates(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) {
	for _, class := range model.WindowClasses {
		resp, err := client.Get(ctx, config.BaseURL+"/v1/state/latest?class="+string(class))
		if err != nil {
			logger.Get().Warn(ctx, "state fetch failed", logger.String("class", string(class)), logger.Error(err))
			continue
		}
		body, err := readResponseBody(resp)
		if err != nil {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			logger.Get().Info(ctx, "no state yet", logger.String("class", string(class)), logger.Int("status", resp.StatusCode))
			continue
		}

		var state map[string]interface{}
		if err := json.Unmarshal(body, &state); err != nil {
			continue
		}
		stats.StatesObserved++
		if config.Verbose {
			logger.Get().Info(ctx, "observed state",
				logger.String("class", string(class)),
				logger.Any("state", state))
		} else {
			logger.Get().Info(ctx, "observed state", logger.String("class", string(class)))
		}
	}
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, batchesPerSecond float64

	if stats.BatchesSubmitted > 0 {
		acceptRate = float64(stats.BatchesAccepted) / float64(stats.BatchesSubmitted) * 100
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("batchesGenerated", stats.BatchesGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesRejected", stats.BatchesRejected),
		logger.Int("statesObserved", stats.StatesObserved),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
