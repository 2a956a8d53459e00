// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/harness"
	"github.com/xkilldash9x/wedcheck/internal/observability"
	"github.com/xkilldash9x/wedcheck/internal/scenario"
	"github.com/xkilldash9x/wedcheck/internal/steps"
)

func newRunCmd() *cobra.Command {
	var (
		scenarios string
		names     []string
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs scenarios in a browser against the test server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if scenarios != "" {
				cfg.SetScenariosFile(scenarios)
			}
			if cfg.Scenarios().File == "" {
				return errors.New("no scenario file given; use --scenarios or scenarios.file")
			}
			suite, err := loadSuite(cfg)
			if err != nil {
				return err
			}
			selected, err := selectScenarios(suite, names)
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), cfg, suite, selected, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	runCmd.Flags().StringVar(&scenarios, "scenarios", "", "YAML file with the scenarios to run")
	runCmd.Flags().StringSliceVarP(&names, "name", "n", nil, "run only the named scenarios (repeatable)")
	return runCmd
}

// selectScenarios returns the named scenarios in the order given, or every
// scenario when names is empty.
func selectScenarios(suite *scenario.Suite, names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return suite.Scenarios, nil
	}
	out := make([]scenario.Scenario, 0, len(names))
	for _, n := range names {
		sc, err := suite.Find(n)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func runScenarios(ctx context.Context, cfg *config.Config, suite *scenario.Suite, selected []scenario.Scenario, in io.Reader, out io.Writer) error {
	logger := observability.GetLogger()

	registry := steps.NewRegistry()
	if err := steps.RegisterBuiltins(registry); err != nil {
		return err
	}

	shots, err := harness.PrepareScreenshots(cfg.Artifacts().ScreenshotsDir, time.Now())
	if err != nil {
		return err
	}

	client := newHTTPClient(cfg, logger)
	eval := newEvaluator(cfg, logger)
	verifier, err := newVerifier(cfg, client, suite, eval, logger)
	if err != nil {
		return err
	}
	blankURL, err := cfg.Server().BlankURL()
	if err != nil {
		return err
	}

	readyEval := harness.ReadinessEvaluator(cfg.Server(), logger)
	session, err := harness.Start(ctx,
		func(pctx context.Context) error {
			return harness.WaitForServer(pctx, client, blankURL, readyEval)
		},
		// The browser lives as long as ctx; startCtx is cancelled when the
		// server check fails.
		func(startCtx context.Context) (*browser.Session, error) {
			exec, err := browser.NewCDPExecutor(ctx, startCtx, cfg.Browser(), logger)
			if err != nil {
				return nil, err
			}
			return browser.NewSession(exec, cfg.Browser(), logger), nil
		},
	)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = session.Close(context.WithoutCancel(ctx))
		return err
	}
	defer closeStore()

	deps := harness.Deps{
		Config:         cfg,
		Registry:       registry,
		Session:        session,
		Verifier:       verifier,
		Evaluator:      eval,
		ScreenshotsDir: shots,
		Logger:         logger,
	}
	if st != nil {
		deps.Sink = st
	}
	runner, err := harness.NewRunner(deps)
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(ctx, selected)
	if summary != nil {
		printSummary(out, summary)
	}

	failed := runErr != nil || summary == nil || !summary.OK()
	if err := harness.Finish(context.WithoutCancel(ctx), session, cfg.Browser().Quit, failed, in, out); err != nil {
		logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	if !summary.OK() {
		return fmt.Errorf("%d of %d scenarios failed", summary.Failed(), len(summary.Results))
	}
	return nil
}

func printSummary(out io.Writer, s *harness.Summary) {
	for _, r := range s.Results {
		line := fmt.Sprintf("%-9s %s", r.Status, r.Scenario)
		switch {
		case r.Err != nil && r.FailedStep != "":
			line += fmt.Sprintf("\n          step %q: %v", r.FailedStep, r.Err)
		case r.Err != nil:
			line += fmt.Sprintf("\n          %v", r.Err)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d passed, %d failed, %d skipped\n",
		s.Count(harness.StatusPassed), s.Failed(), s.Count(harness.StatusSkipped))
	fmt.Fprintf(out, "Elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
}
