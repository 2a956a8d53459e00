// internal/browser/cdp_executor.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/config"
)

const (
	keyEventTimeout = 5 * time.Second
	launchTimeout   = 60 * time.Second
)

// CDPExecutor implements Executor over the Chrome DevTools Protocol.
type CDPExecutor struct {
	// ctx is the tab context. It carries the CDP connection and must be
	// combined with the caller's context for every action.
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

var _ Executor = (*CDPExecutor)(nil)

// AllocatorOptions builds the launch flags for a local browser.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// NewCDPExecutor launches (or connects to) a browser and opens a tab. ctx
// bounds the lifetime of the browser. startup only bounds the launch: when it
// ends first, the half-started browser is torn down.
func NewCDPExecutor(ctx, startup context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*CDPExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if cfg.Remote() {
		logger.Info("Connecting to remote browser.", zap.String("url", cfg.RemoteURL))
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	}

	sugar := logger.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	// The first Run allocates the browser under the context it is given, so
	// it runs on the tab context itself and is raced against startup.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()
	var err error
	select {
	case err = <-started:
	case <-startup.Done():
		err = startup.Err()
	case <-timer.C:
		err = fmt.Errorf("no response within %s", launchTimeout)
	}
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return &CDPExecutor{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc, logger: logger}, nil
}

// combine derives a context from the tab context that also ends when opCtx
// does, optionally with a timeout.
func (e *CDPExecutor) combine(opCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(e.ctx)
	stop := context.AfterFunc(opCtx, cancel)
	if timeout <= 0 {
		return ctx, func() { stop(); cancel() }
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() { tcancel(); stop(); cancel() }
}

func (e *CDPExecutor) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := e.combine(ctx, 0)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (e *CDPExecutor) Navigate(ctx context.Context, url string) error {
	e.logger.Debug("Navigating.", zap.String("url", url))
	return e.run(ctx, chromedp.Navigate(url))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (e *CDPExecutor) Evaluate(ctx context.Context, script string, res interface{}) error {
	return e.run(ctx, chromedp.Evaluate(script, res, awaitPromise))
}

func cdpModifiers(m Modifier) input.Modifier {
	var out input.Modifier
	if m&ModAlt != 0 {
		out |= input.ModifierAlt
	}
	if m&ModCtrl != 0 {
		out |= input.ModifierCtrl
	}
	if m&ModMeta != 0 {
		out |= input.ModifierMeta
	}
	if m&ModShift != 0 {
		out |= input.ModifierShift
	}
	return out
}

// keyEvents builds the keyDown/keyUp pair for key. Single letters and digits
// also carry a DOM code and virtual key code so page handlers see keyCode.
func keyEvents(key string, mods Modifier) (down, up *input.DispatchKeyEventParams) {
	m := cdpModifiers(mods)
	down = input.DispatchKeyEvent(input.KeyDown).WithModifiers(m).WithKey(key)
	up = input.DispatchKeyEvent(input.KeyUp).WithModifiers(m).WithKey(key)

	if r := []rune(key); len(r) == 1 {
		upper := unicode.ToUpper(r[0])
		code := ""
		switch {
		case upper >= 'A' && upper <= 'Z':
			code = "Key" + string(upper)
		case upper >= '0' && upper <= '9':
			code = "Digit" + string(upper)
		}
		if code != "" {
			down = down.WithCode(code).WithWindowsVirtualKeyCode(int64(upper))
			up = up.WithCode(code).WithWindowsVirtualKeyCode(int64(upper))
		}
	}
	return down, up
}

func (e *CDPExecutor) DispatchKey(ctx context.Context, key string, mods Modifier) error {
	down, up := keyEvents(key, mods)
	opCtx, cancel := context.WithTimeout(ctx, keyEventTimeout)
	defer cancel()

	err := e.run(opCtx, down, up)
	if err != nil && opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("key event %q timed out after %v: %w", key, keyEventTimeout, opCtx.Err())
	}
	return err
}

func (e *CDPExecutor) WaitVisible(ctx context.Context, selector string) error {
	return e.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (e *CDPExecutor) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := e.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *CDPExecutor) SetWindowBounds(ctx context.Context, left, top, width, height int) error {
	return e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to get window: %w", err)
		}
		bounds := &cdpbrowser.Bounds{
			Left:        int64(left),
			Top:         int64(top),
			Width:       int64(width),
			Height:      int64(height),
			WindowState: cdpbrowser.WindowStateNormal,
		}
		return cdpbrowser.SetWindowBounds(windowID, bounds).Do(ctx)
	}))
}

func (e *CDPExecutor) CloseOtherTabs(ctx context.Context) (int, error) {
	targets, err := chromedp.Targets(e.ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list targets: %w", err)
	}
	current := chromedp.FromContext(e.ctx).Target.TargetID

	closed := 0
	for _, t := range targets {
		if t.Type != "page" || t.TargetID == current {
			continue
		}
		if err := e.run(ctx, target.CloseTarget(t.TargetID)); err != nil {
			return closed, fmt.Errorf("failed to close tab %s: %w", t.TargetID, err)
		}
		closed++
	}
	return closed, nil
}

func (e *CDPExecutor) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(e.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("browser shutdown: %w", ctx.Err())
	}
	e.cancelTab()
	e.cancelAlloc()
	return err
}
