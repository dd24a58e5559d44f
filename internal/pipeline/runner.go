package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/errors"
	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
	"github.com/jardins/ghlsync/internal/store"
)

// Notifier receives a human-readable summary after each run.
type Notifier func(text string)

// Runner executes the full pipeline: regenerate documents, refresh the
// agency token, sync installed locations, provision location tokens, then
// publish every configured document into the target location.
type Runner struct {
	cfg       *config.Config
	tokens    *TokenService
	publisher *Publisher
	generator *Generator
	store     store.TokenStore
	runs      *store.RunStore
	logger    *logging.Logger
	metrics   *metrics.Metrics
	notify    Notifier
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunStore enables run-history recording.
func WithRunStore(rs *store.RunStore) RunnerOption {
	return func(r *Runner) {
		r.runs = rs
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRunnerMetrics sets the metrics recorder.
func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithNotifier registers a run-summary callback.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) {
		r.notify = n
	}
}

// NewRunner wires the pipeline stages together.
func NewRunner(cfg *config.Config, ts store.TokenStore, client *ghl.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		store:  ts,
		logger: logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.tokens = NewTokenService(cfg.GHL, ts, client,
		WithTokenLogger(r.logger),
		WithTokenMetrics(r.metrics),
	)
	r.publisher = NewPublisher(client, r.logger, r.metrics)
	if cfg.Pipeline.Generator.Enabled {
		r.generator = NewGenerator(cfg.Pipeline.Generator, r.logger)
	}
	return r
}

// Run executes one full pipeline pass. The first failing stage aborts the
// run; later stages are not attempted.
func (r *Runner) Run(ctx context.Context) error {
	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	started := time.Now()

	if r.runs != nil {
		if err := r.runs.BeginRun(runID, started); err != nil {
			r.logger.WarnWithContext(ctx, "run history write failed", "error", err.Error())
		}
	}
	r.logger.InfoWithContext(ctx, "pipeline run started")

	err := r.runStages(ctx, runID)
	elapsed := time.Since(started).Round(time.Millisecond)

	if err != nil {
		r.finishRun(runID, store.RunFailure, err.Error())
		r.metrics.RecordPipelineRun(store.RunFailure)
		r.logger.ErrorWithContext(ctx, "pipeline run failed", "error", err.Error(), "elapsed", elapsed.String())
		r.sendNotification(fmt.Sprintf("❌ ghlsync run %s failed after %s: %v", runID, elapsed, err))
		return err
	}

	r.finishRun(runID, store.RunSuccess, "")
	r.metrics.RecordPipelineRun(store.RunSuccess)
	r.logger.InfoWithContext(ctx, "pipeline run finished", "elapsed", elapsed.String())
	r.sendNotification(fmt.Sprintf("✅ ghlsync run %s finished in %s", runID, elapsed))
	return nil
}

func (r *Runner) runStages(ctx context.Context, runID string) error {
	if r.generator != nil {
		if err := r.stage(ctx, runID, StageGenerate, func() error {
			return r.generator.Run(ctx)
		}); err != nil {
			return err
		}
	}

	if err := r.stage(ctx, runID, StageRefresh, func() error {
		_, err := r.tokens.RefreshAgencyToken(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := r.stage(ctx, runID, StageSync, func() error {
		_, err := r.tokens.SyncInstalledLocations(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := r.stage(ctx, runID, StageProvision, func() error {
		_, err := r.tokens.ProvisionLocationTokens(ctx)
		return err
	}); err != nil {
		return err
	}

	return r.stage(ctx, runID, StagePublish, func() error {
		return r.PublishDocuments(ctx)
	})
}

// PublishDocuments reads each configured document from disk and upserts it
// into the target location using that location's provisioned token.
func (r *Runner) PublishDocuments(ctx context.Context) error {
	docs := r.cfg.Pipeline.Documents
	if len(docs) == 0 {
		r.logger.InfoWithContext(ctx, "no documents configured, publish skipped")
		return nil
	}

	targetID := r.cfg.Pipeline.TargetLocationID
	if targetID == "" {
		return &errors.ErrMissingConfig{Field: "target_location_id"}
	}

	token, err := r.locationToken(targetID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		content, err := os.ReadFile(doc.Path)
		if err != nil {
			return &errors.ErrFileRead{Path: doc.Path, Err: err}
		}
		if err := r.publisher.Publish(ctx, token, targetID, doc.CustomValue, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) locationToken(locationID string) (string, error) {
	locations, err := r.store.LoadLocations()
	if err != nil {
		return "", &errors.ErrMissingConfig{Field: "locations record", Reason: "run the location sync stage first"}
	}

	for i := range locations {
		loc := &locations[i]
		if loc.ID != locationID {
			continue
		}
		if rec := loc.TokenError(); rec != nil {
			return "", &errors.ErrMissingConfig{
				Field:  "location access token",
				Reason: fmt.Sprintf("token exchange for %s failed: %s", locationID, rec.Error),
			}
		}
		if token := loc.AccessToken(); token != "" {
			return token, nil
		}
		return "", &errors.ErrMissingConfig{
			Field:  "location access token",
			Reason: fmt.Sprintf("no token provisioned for %s", locationID),
		}
	}
	return "", &errors.ErrMissingConfig{
		Field:  "target_location_id",
		Reason: fmt.Sprintf("location %s is not in the installed set", locationID),
	}
}

func (r *Runner) stage(ctx context.Context, runID, name string, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started).Round(time.Millisecond)

	if err != nil {
		r.recordStage(runID, name, store.RunFailure, err.Error())
		r.metrics.RecordStageFailure(name)
		return fmt.Errorf("stage %s: %w", name, err)
	}

	r.recordStage(runID, name, store.RunSuccess, "")
	r.logger.InfoWithContext(ctx, "stage finished", "stage", name, "elapsed", elapsed.String())
	return nil
}

func (r *Runner) recordStage(runID, name, status, detail string) {
	if r.runs == nil {
		return
	}
	if err := r.runs.RecordStage(runID, name, status, detail); err != nil {
		r.logger.Warn("run history write failed", "stage", name, "error", err.Error())
	}
}

func (r *Runner) finishRun(runID, status, errMsg string) {
	if r.runs == nil {
		return
	}
	if err := r.runs.FinishRun(runID, status, errMsg); err != nil {
		r.logger.Warn("run history write failed", "error", err.Error())
	}
}

func (r *Runner) sendNotification(text string) {
	if r.notify == nil {
		return
	}
	r.notify(text)
}
