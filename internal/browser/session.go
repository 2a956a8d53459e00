// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/config"
)

// ErrFatalError is returned when the editor's error handler reports that it
// is terminating.
var ErrFatalError = errors.New("editor experienced a fatal error")

// Session is one browser driving the editor. It is passed explicitly to
// every step; there is no ambient "current driver".
type Session struct {
	id       string
	exec     Executor
	platform string
	width    int
	height   int
	logger   *zap.Logger
}

// NewSession wraps exec. The window size and platform come from cfg.
func NewSession(exec Executor, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		exec:     exec,
		platform: PlatformTag(cfg.Platform),
		width:    cfg.WindowWidth,
		height:   cfg.WindowHeight,
		logger:   logger.Named("browser").With(zap.String("session_id", id)),
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.exec.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Evaluate runs script in the page and decodes its result into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.exec.Evaluate(ctx, script, res)
}

// WaitVisible blocks until selector is visible.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.exec.WaitVisible(ctx, selector)
}

// CtrlEquivalent presses key with the platform's command modifier: Meta on
// OS X, Ctrl everywhere else.
func (s *Session) CtrlEquivalent(ctx context.Context, key string) error {
	mod := ModCtrl
	if s.platform == "osx" {
		mod = ModMeta
	}
	return s.exec.DispatchKey(ctx, key, mod)
}

// ResetWindow restores the initial window size at the top left corner so
// that layouts do not depend on the previous scenario.
func (s *Session) ResetWindow(ctx context.Context) error {
	if s.width <= 0 || s.height <= 0 {
		return nil
	}
	return s.exec.SetWindowBounds(ctx, 0, 0, s.width, s.height)
}

// captionLineBreaks are the characters that end a JavaScript line comment.
var captionLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ")

// Caption sends a comment as a script so it shows up in the protocol log.
// Line breaks in text are flattened so the script stays a single comment.
func (s *Session) Caption(ctx context.Context, text string) error {
	return s.exec.Evaluate(ctx, "// "+captionLineBreaks.Replace(text)+"\n", nil)
}

// DrainJSLog returns and clears window.selenium_log.
func (s *Session) DrainJSLog(ctx context.Context) ([]interface{}, error) {
	var entries []interface{}
	if err := s.exec.Evaluate(ctx, drainLogScript, &entries); err != nil {
		return nil, fmt.Errorf("reading JavaScript log: %w", err)
	}
	return entries, nil
}

// SaveScreenshot writes a PNG of the viewport to path.
func (s *Session) SaveScreenshot(ctx context.Context, path string) error {
	png, err := s.exec.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

// CloseExtraTabs closes every tab but the one the session started with.
func (s *Session) CloseExtraTabs(ctx context.Context) error {
	n, err := s.exec.CloseOtherTabs(ctx)
	if n > 0 {
		s.logger.Debug("Closed extra tabs.", zap.Int("count", n))
	}
	return err
}

type fatalStatus struct {
	Terminating bool   `json:"terminating"`
	LoadError   string `json:"loadError"`
}

// CheckFatalError asks the editor whether its error handler is terminating.
func (s *Session) CheckFatalError(ctx context.Context) error {
	var status fatalStatus
	if err := s.exec.Evaluate(ctx, fatalErrorCheckScript, &status); err != nil {
		return fmt.Errorf("probing for fatal error: %w", err)
	}
	if status.LoadError != "" {
		return fmt.Errorf("probing for fatal error: %s", status.LoadError)
	}
	if status.Terminating {
		return ErrFatalError
	}
	return nil
}

// ClearDatabase moves to blankURL, which stops the editor from touching its
// store, and then deletes the "wed" IndexedDB database.
func (s *Session) ClearDatabase(ctx context.Context, blankURL string) error {
	if err := s.Navigate(ctx, blankURL); err != nil {
		return err
	}
	var status []interface{}
	if err := s.exec.Evaluate(ctx, deleteDatabaseScript, &status); err != nil {
		return fmt.Errorf("deleting database: %w", err)
	}
	return checkPair(status, "deleting database")
}

// CheckNotification verifies that a notification of kind is showing text.
func (s *Session) CheckNotification(ctx context.Context, kind, text string) error {
	k, err := json.Marshal(kind)
	if err != nil {
		return err
	}
	t, err := json.Marshal(text)
	if err != nil {
		return err
	}
	var result []interface{}
	if err := s.exec.Evaluate(ctx, fmt.Sprintf(notificationScript, k, t), &result); err != nil {
		return fmt.Errorf("checking notification: %w", err)
	}
	return checkPair(result, "notification")
}

// checkPair interprets the [ok, message] convention used by page scripts.
func checkPair(pair []interface{}, what string) error {
	if len(pair) != 2 {
		return fmt.Errorf("%s: unexpected script result %v", what, pair)
	}
	ok, _ := pair[0].(bool)
	if ok {
		return nil
	}
	return fmt.Errorf("%s: %v", what, pair[1])
}

// Close shuts the browser down.
func (s *Session) Close(ctx context.Context) error {
	s.logger.Debug("Closing browser session.")
	return s.exec.Close(ctx)
}
