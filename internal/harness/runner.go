// internal/harness/runner.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/observability"
	"github.com/xkilldash9x/wedcheck/internal/scenario"
	"github.com/xkilldash9x/wedcheck/internal/steps"
	"github.com/xkilldash9x/wedcheck/internal/store"
	"github.com/xkilldash9x/wedcheck/internal/verify"
)

const cleanupTimeout = 30 * time.Second

// Sink persists finished runs.
type Sink interface {
	SaveRun(ctx context.Context, run store.Run) error
}

// Deps are the collaborators of a Runner. Session and Registry are required.
type Deps struct {
	Config    config.Interface
	Registry  *steps.Registry
	Session   *browser.Session
	Verifier  *verify.Verifier
	Evaluator *condition.Evaluator
	// ScreenshotsDir receives failed-step screenshots. Empty disables them.
	ScreenshotsDir string
	Sink           Sink
	Logger         *zap.Logger
}

// Runner executes scenarios against one browser session.
type Runner struct {
	deps      Deps
	tagValues map[string]string
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	if deps.Config == nil || deps.Registry == nil || deps.Session == nil {
		return nil, errors.New("cannot initialize runner with nil dependencies")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		deps:      deps,
		tagValues: browser.TagValues(deps.Config.Browser()),
		logger:    logger.Named("harness"),
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes every scenario in order and returns the summary. A context
// cancellation stops the run after the current scenario.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString(), Started: r.now()}
	logger := r.logger.With(observability.RunFields(sum.RunID, r.deps.Config.Browser())...)
	logger.Info("Starting run.", zap.Int("scenarios", len(scenarios)))

	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		res := r.RunScenario(ctx, sc)
		sum.Results = append(sum.Results, res)
	}
	sum.Elapsed = r.now().Sub(sum.Started)

	logger.Info("Run finished.",
		zap.Duration("elapsed", sum.Elapsed),
		zap.Int("passed", sum.Count(StatusPassed)),
		zap.Int("failed", sum.Failed()),
		zap.Int("skipped", sum.Count(StatusSkipped)),
	)

	if r.deps.Sink != nil {
		b := r.deps.Config.Browser()
		if err := r.deps.Sink.SaveRun(context.WithoutCancel(ctx), sum.Record(b.Name, b.Platform)); err != nil {
			return sum, fmt.Errorf("recording run: %w", err)
		}
	}
	return sum, ctx.Err()
}

// RunScenario runs one scenario, including its setup and cleanup.
func (r *Runner) RunScenario(ctx context.Context, sc scenario.Scenario) (res Result) {
	res = Result{Scenario: sc.Name}
	logger := r.logger.With(zap.String("scenario", sc.Name))

	switch {
	case sc.HasTag(SkipTag):
		res.Status, res.Reason = StatusSkipped, "marked with @skip"
	case Excluded(sc.Tags, r.tagValues):
		res.Status, res.Reason = StatusSkipped, "disabled by an active tag"
	}
	if res.Status == StatusSkipped {
		logger.Info("Skipping scenario.", zap.String("reason", res.Reason))
		return res
	}

	start := r.now()
	defer func() { res.Duration = r.now().Sub(start) }()

	stepsCfg := r.deps.Config.Steps()
	session := r.deps.Session
	if stepsCfg.Captions {
		r.warn(logger, "caption", session.Caption(ctx, "SCENARIO: "+sc.Name))
	}
	if err := session.ResetWindow(ctx); err != nil {
		r.fail(&res, "", fmt.Errorf("resetting window: %w", err))
		return res
	}

	stepCtx := &steps.Context{
		Config:    r.deps.Config,
		Session:   session,
		Verifier:  r.deps.Verifier,
		Evaluator: r.deps.Evaluator,
		Logger:    logger,
		Scenario:  sc.Name,
	}

	prev := steps.Any
	for _, st := range sc.Steps {
		kind, text := steps.ParseStep(st.Text, prev)
		prev = kind
		stepCtx.Text = st.DocString

		if err := r.runStep(ctx, stepCtx, kind, text, st.Text, logger); err != nil {
			r.fail(&res, text, err)
			if errors.Is(err, steps.ErrNoMatch) || errors.Is(err, steps.ErrAmbiguous) {
				res.Status = StatusUndefined
			}
			r.captureFailure(ctx, sc.Name, text, logger)
			break
		}
	}

	if err := r.afterScenario(ctx, logger); err != nil && res.Err == nil {
		r.fail(&res, "", err)
	}
	if res.Status == "" {
		res.Status = StatusPassed
	}
	logger.Info("Scenario finished.", zap.String("status", string(res.Status)))
	return res
}

func (r *Runner) runStep(ctx context.Context, sc *steps.Context, kind steps.Kind, text, line string, logger *zap.Logger) (err error) {
	stepsCfg := r.deps.Config.Steps()
	if stepsCfg.Captions {
		r.warn(logger, "caption", sc.Session.Caption(ctx, "STEP: "+strings.TrimSpace(line)))
	}
	if wait := stepsCfg.WaitBetween(); wait > 0 {
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}

	handler, args, err := r.deps.Registry.Match(kind, text)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step panicked: %v", p)
		}
		if stepsCfg.JSLogs {
			r.dumpJSLog(ctx, logger)
		}
	}()

	logger.Debug("Running step.", zap.String("step", line))
	return handler(ctx, sc, args)
}

// afterScenario closes extra tabs, makes sure the editor did not hit a
// fatal error, and clears the editor's database.
func (r *Runner) afterScenario(ctx context.Context, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	session := r.deps.Session
	r.warn(logger, "closing tabs", session.CloseExtraTabs(ctx))

	fatalErr := session.CheckFatalError(ctx)
	if r.deps.Config.Steps().JSLogs {
		r.dumpJSLog(ctx, logger)
	}
	if fatalErr != nil {
		return fatalErr
	}

	blank := strings.TrimSuffix(r.deps.Config.Server().AppURL(), "/") + "/blank.html"
	return session.ClearDatabase(ctx, blank)
}

func (r *Runner) captureFailure(ctx context.Context, scenarioName, stepText string, logger *zap.Logger) {
	if r.deps.ScreenshotsDir == "" {
		return
	}
	path := filepath.Join(r.deps.ScreenshotsDir, ScreenshotName(scenarioName, stepText))
	if err := r.deps.Session.SaveScreenshot(context.WithoutCancel(ctx), path); err != nil {
		logger.Warn("Could not capture screenshot.", zap.Error(err))
		return
	}
	logger.Info("Captured screenshot.", zap.String("path", path))
}

func (r *Runner) dumpJSLog(ctx context.Context, logger *zap.Logger) {
	entries, err := r.deps.Session.DrainJSLog(ctx)
	if err != nil {
		logger.Warn("Could not read JavaScript log.", zap.Error(err))
		return
	}
	for _, e := range entries {
		logger.Info("JavaScript log.", zap.Any("entry", e))
	}
}

func (r *Runner) fail(res *Result, step string, err error) {
	res.Status = StatusFailed
	res.FailedStep = step
	res.Err = err
}

func (r *Runner) warn(logger *zap.Logger, what string, err error) {
	if err != nil {
		logger.Warn("Ignoring failure.", zap.String("action", what), zap.Error(err))
	}
}
