// internal/browser/executor.go
package browser

import (
	"context"
)

// Modifier is a bitmask of keyboard modifiers held during a key press.
type Modifier int

const (
	ModAlt Modifier = 1 << iota
	ModCtrl
	ModMeta
	ModShift
)

// Executor is the low-level automation surface a Session drives. The
// production implementation speaks CDP through chromedp; tests substitute a
// mock.
type Executor interface {
	// Navigate loads url in the current tab and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page. Promises are awaited. res may be nil.
	Evaluate(ctx context.Context, script string, res interface{}) error
	// DispatchKey presses and releases key with mods held.
	DispatchKey(ctx context.Context, key string, mods Modifier) error
	// WaitVisible blocks until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// SetWindowBounds moves and resizes the browser window.
	SetWindowBounds(ctx context.Context, left, top, width, height int) error
	// CloseOtherTabs closes every page target except the current one and
	// reports how many were closed.
	CloseOtherTabs(ctx context.Context) (int, error)
	// Close shuts down the tab and, for locally launched browsers, the process.
	Close(ctx context.Context) error
}
