// internal/harness/lifecycle.go
package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/config"
)

// LatestLink is the name of the symlink that points at the newest
// screenshot directory.
const LatestLink = "LATEST"

const screenshotStamp = "2006-01-02T15:04:05"

// WaitForServer polls url until the server answers. Any HTTP response counts;
// only transport errors are retried.
func WaitForServer(ctx context.Context, client *http.Client, url string, eval *condition.Evaluator) error {
	err := eval.WaitFunc(ctx, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, condition.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("cannot contact server at %s: %w", url, err)
	}
	return nil
}

// ReadinessEvaluator turns the readiness settings into polling options: attempts
// tries spaced interval apart.
func ReadinessEvaluator(cfg config.ServerConfig, logger *zap.Logger) *condition.Evaluator {
	attempts := cfg.ReadyAttempts
	if attempts < 1 {
		attempts = 1
	}
	return condition.New(condition.Options{
		Timeout:  time.Duration(attempts-1) * cfg.ReadyInterval,
		Interval: cfg.ReadyInterval,
	}, logger)
}

// PrepareScreenshots creates a directory for this run under root and points
// root/LATEST at it.
func PrepareScreenshots(root string, now time.Time) (string, error) {
	name := now.Format(screenshotStamp)
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	latest := filepath.Join(root, LatestLink)
	if err := os.Remove(latest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.Symlink(name, latest); err != nil {
		return "", fmt.Errorf("linking %s: %w", LatestLink, err)
	}
	return dir, nil
}

// ScreenshotName is the file name used for a failed step.
func ScreenshotName(scenarioName, stepText string) string {
	return slug.Make(scenarioName+"_"+stepText) + ".png"
}

// Start waits for the server and launches the browser concurrently. Both get a
// context that ends as soon as either fails. The session is closed again if
// the server check fails.
func Start(ctx context.Context, waitServer func(context.Context) error,
	launch func(context.Context) (*browser.Session, error)) (*browser.Session, error) {
	var session *browser.Session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return waitServer(gctx) })
	g.Go(func() error {
		s, err := launch(gctx)
		if err != nil {
			return fmt.Errorf("starting browser: %w", err)
		}
		session = s
		return nil
	})
	if err := g.Wait(); err != nil {
		if session != nil {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = session.Close(closeCtx)
		}
		return nil, err
	}
	return session, nil
}

// ShouldQuit decides whether the browser is closed without asking.
func ShouldQuit(mode string, failed bool) bool {
	if mode == config.QuitNever || mode == config.QuitOnEnter {
		return false
	}
	return !(failed && mode == config.QuitOnSuccess)
}

// Finish applies the quit mode to session. With on-enter it prompts on out
// and waits for a line on in before closing.
func Finish(ctx context.Context, session *browser.Session, mode string, failed bool, in io.Reader, out io.Writer) error {
	if session == nil {
		return nil
	}
	if !ShouldQuit(mode, failed) {
		if mode != config.QuitOnEnter {
			return nil
		}
		fmt.Fprint(out, "Hit enter to quit")
		_, _ = bufio.NewReader(in).ReadString('\n')
	}
	return session.Close(ctx)
}
