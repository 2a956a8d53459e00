// internal/steps/builtin.go
package steps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/config"
)

const testDataDir = "lib/tests/wed_test_data/"

const editorReadyScript = `(function () {
  return typeof window.wed_editor !== "undefined" &&
    document.querySelector(".wed-document") !== null;
})()`

// tooltipsOffScript disables tooltips and drops any already shown.
const tooltipsOffScript = `(function () {
  wed_editor.preferences.set("tooltips", false);
  jQuery(".tooltip").remove();
  return true;
})()`

const placeholderScript = `document.getElementsByClassName("_placeholder").length > 0`

var errNoSession = errors.New("step needs a browser session")

// documentLoad describes how a step opens the kitchen sink page.
type documentLoad struct {
	file     string
	options  string
	schema   string
	tooltips bool
}

// PageURL builds the kitchen sink URL for appURL with the given parameters.
// Empty values are left out.
func PageURL(appURL, file, options, schema string) string {
	q := url.Values{}
	q.Set("mode", "test")
	q.Set("nodemo", "1")
	if file != "" {
		q.Set("file", "../standalone/"+file)
	}
	if options != "" {
		q.Set("options", options)
	}
	if schema != "" {
		q.Set("schema", schema)
	}
	return strings.TrimSuffix(appURL, "/") + "/kitchen-sink.html?" + q.Encode()
}

func loadDocument(load documentLoad) Handler {
	return func(ctx context.Context, sc *Context, _ []string) error {
		if sc.Session == nil {
			return errNoSession
		}
		target := PageURL(sc.Config.Server().AppURL(), load.file, load.options, load.schema)
		if err := sc.Session.Navigate(ctx, target); err != nil {
			return err
		}
		if err := waitForScript(ctx, sc, editorReadyScript); err != nil {
			return fmt.Errorf("waiting for editor: %w", err)
		}
		if !load.tooltips {
			var ok bool
			if err := sc.Session.Evaluate(ctx, tooltipsOffScript, &ok); err != nil {
				return fmt.Errorf("turning tooltips off: %w", err)
			}
		}
		return nil
	}
}

// waitForScript polls script until it evaluates to true.
func waitForScript(ctx context.Context, sc *Context, script string) error {
	if sc.Evaluator == nil {
		return errors.New("step needs a condition evaluator")
	}
	return sc.Evaluator.WaitFunc(ctx, func(ctx context.Context) (bool, error) {
		var ok bool
		if err := sc.Session.Evaluate(ctx, script, &ok); err != nil {
			return false, err
		}
		return ok, nil
	})
}

// RegisterBuiltins adds the step definitions every run needs.
func RegisterBuiltins(r *Registry) error {
	defs := []struct {
		kind    Kind
		pattern string
		h       Handler
	}{
		{When, `the user loads the page`, loadDocument(documentLoad{})},
		{Given, `an empty document`, loadDocument(documentLoad{})},
		{Given, `an empty docbook document`, loadDocument(documentLoad{schema: "@docbook"})},
		{Given, `an empty document with autoinsert off`, loadDocument(documentLoad{options: "noautoinsert"})},
		{Given, `a document containing a top level element, a p element, and text\.?`,
			loadDocument(documentLoad{file: testDataDir + "source_converted.xml"})},
		{Given, `a document with tooltips on`,
			loadDocument(documentLoad{file: testDataDir + "source_converted.xml", tooltips: true})},
		{Given, `a document that has multiple top namespaces\.?`,
			loadDocument(documentLoad{file: testDataDir + "multiple_top_namespaces_converted.xml", schema: "@math"})},
		{Given, `a complex document without errors?`,
			loadDocument(documentLoad{file: testDataDir + "complex_converted.xml"})},
		{Given, `a document without "hi"`,
			loadDocument(documentLoad{file: testDataDir + "nohi_converted.xml"})},
		{Given, `the platform variation page is loaded`, platformPageLoaded},
		{Then, `the editor shows a document`, editorShowsDocument},
		{Any, `wait (\d+(?:\.\d+)?) seconds?`, wait},
		{When, `the user saves`, userSaves},
		{Then, `the data saved is properly serialized`, dataSaved},
		{Then, `there is a notification of kind (\S+) saying`, notificationShown},
	}
	for _, d := range defs {
		if err := r.Register(d.kind, d.pattern, d.h); err != nil {
			return err
		}
	}
	return nil
}

// PlatformPageURL builds the address of the page that reports how the
// editor detects the browser it runs in.
func PlatformPageURL(unoptimizedURL string, b config.BrowserConfig) string {
	q := url.Values{}
	q.Set("platform", b.Platform)
	q.Set("browser", b.Name)
	q.Set("version", b.Version)
	return strings.TrimSuffix(unoptimizedURL, "/") + "/platform_test.html?" + q.Encode()
}

func platformPageLoaded(ctx context.Context, sc *Context, _ []string) error {
	if sc.Session == nil {
		return errNoSession
	}
	target := PlatformPageURL(sc.Config.Server().UnoptimizedAppURL(), sc.Config.Browser())
	if err := sc.Session.Navigate(ctx, target); err != nil {
		return err
	}
	return sc.Session.WaitVisible(ctx, "body")
}

func editorShowsDocument(ctx context.Context, sc *Context, _ []string) error {
	if sc.Session == nil {
		return errNoSession
	}
	if err := waitForScript(ctx, sc, placeholderScript); err != nil {
		return fmt.Errorf("editor shows no document: %w", err)
	}
	return nil
}

func wait(ctx context.Context, sc *Context, args []string) error {
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	d := time.Duration(secs * float64(time.Second))
	sc.logger().Debug("Waiting.", zap.Duration("duration", d))
	return sc.sleep(ctx, d)
}

func userSaves(ctx context.Context, sc *Context, _ []string) error {
	if sc.Session == nil {
		return errNoSession
	}
	return sc.Session.CtrlEquivalent(ctx, "s")
}

func dataSaved(ctx context.Context, sc *Context, _ []string) error {
	if sc.Verifier == nil {
		return errors.New("step needs a verifier")
	}
	return sc.Verifier.Verify(ctx, sc.Scenario)
}

func notificationShown(ctx context.Context, sc *Context, args []string) error {
	if sc.Session == nil {
		return errNoSession
	}
	return sc.Session.CheckNotification(ctx, args[0], strings.TrimSpace(sc.Text))
}
