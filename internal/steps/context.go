// internal/steps/context.go
package steps

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/verify"
)

// Context is handed to every step handler. One is built per scenario; Text
// is replaced before each step.
type Context struct {
	Config    config.Interface
	Session   *browser.Session
	Verifier  *verify.Verifier
	Evaluator *condition.Evaluator
	Logger    *zap.Logger

	// Scenario is the name of the running scenario. The save verification
	// step looks its expected document up under this name.
	Scenario string
	// Text is the doc string attached to the current step, if any.
	Text string

	// Sleep defaults to a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (sc *Context) logger() *zap.Logger {
	if sc.Logger == nil {
		return zap.NewNop()
	}
	return sc.Logger
}

func (sc *Context) sleep(ctx context.Context, d time.Duration) error {
	if sc.Sleep != nil {
		return sc.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
