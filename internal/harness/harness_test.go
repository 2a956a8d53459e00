package harness

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/mocks"
	"github.com/xkilldash9x/wedcheck/internal/scenario"
	"github.com/xkilldash9x/wedcheck/internal/steps"
	"github.com/xkilldash9x/wedcheck/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func isFatalCheck(s string) bool { return strings.Contains(s, "wed/onerror") }
func isDeleteDB(s string) bool   { return strings.Contains(s, "indexedDB.deleteDatabase") }
func isDrainLog(s string) bool   { return strings.Contains(s, "selenium_log") }
func isCaption(s string) bool    { return strings.HasPrefix(s, "// ") }

type fixture struct {
	cfg      *config.Config
	exec     *mocks.MockExecutor
	registry *steps.Registry
	shots    string
	runner   *Runner
	ran      []string
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.ServerCfg.BaseURL = "http://wed.test"
	cfg.ServerCfg.Root = "/build"
	if mutate != nil {
		mutate(cfg)
	}

	f := &fixture{cfg: cfg, exec: &mocks.MockExecutor{}, registry: steps.NewRegistry(), shots: t.TempDir()}
	f.registry.MustRegister(steps.Any, `a passing step`, func(context.Context, *steps.Context, []string) error {
		f.ran = append(f.ran, "pass")
		return nil
	})
	f.registry.MustRegister(steps.Then, `a failing step`, func(context.Context, *steps.Context, []string) error {
		f.ran = append(f.ran, "fail")
		return errors.New("assertion failed")
	})
	f.registry.MustRegister(steps.When, `a panicking step`, func(context.Context, *steps.Context, []string) error {
		panic("boom")
	})
	f.registry.MustRegister(steps.Then, `the text is (\w+)`, func(_ context.Context, sc *steps.Context, args []string) error {
		if strings.TrimSpace(sc.Text) != args[0] {
			return errors.New("wrong text " + sc.Text)
		}
		f.ran = append(f.ran, sc.Scenario)
		return nil
	})

	logger := zaptest.NewLogger(t)
	r, err := NewRunner(Deps{
		Config:         cfg,
		Registry:       f.registry,
		Session:        browser.NewSession(f.exec, cfg.Browser(), logger),
		ScreenshotsDir: f.shots,
		Logger:         logger,
	})
	require.NoError(t, err)
	f.runner = r
	return f
}

// expectLifecycle sets up the per-scenario window reset and cleanup calls.
func (f *fixture) expectLifecycle() {
	f.exec.On("SetWindowBounds", mock.Anything, 0, 0, 1020, 700).Return(nil)
	f.exec.On("CloseOtherTabs", mock.Anything).Return(0, nil)
	f.exec.On("Evaluate", mock.Anything, mock.MatchedBy(isFatalCheck), mock.Anything).Return(nil)
	f.exec.On("Navigate", mock.Anything, "http://wed.test/build/blank.html").Return(nil)
	f.exec.On("Evaluate", mock.Anything, mock.MatchedBy(isDeleteDB), mock.Anything).Run(mocks.SetPair(true, "")).Return(nil)
}

func lines(texts ...string) []scenario.Step {
	out := make([]scenario.Step, len(texts))
	for i, t := range texts {
		out[i] = scenario.Step{Text: t}
	}
	return out
}

func TestNewRunner_RequiresDeps(t *testing.T) {
	_, err := NewRunner(Deps{})
	assert.Error(t, err)
}

func TestRunScenario_Passes(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "passing",
		Steps: lines("Given a passing step", "And a passing step"),
	})
	assert.Equal(t, StatusPassed, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"pass", "pass"}, f.ran)
	f.exec.AssertNumberOfCalls(t, "SetWindowBounds", 1)
	f.exec.AssertCalled(t, "Navigate", mock.Anything, "http://wed.test/build/blank.html")
}

func TestRunScenario_FailureStopsAndCapturesScreenshot(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()
	f.exec.On("Screenshot", mock.Anything).Return([]byte("png"), nil).Once()

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "failing",
		Steps: lines("Given a passing step", "Then a failing step", "And a passing step"),
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "a failing step", res.FailedStep)
	assert.EqualError(t, res.Err, "assertion failed")
	assert.Equal(t, []string{"pass", "fail"}, f.ran)

	_, err := os.Stat(filepath.Join(f.shots, ScreenshotName("failing", "a failing step")))
	assert.NoError(t, err)
	// Cleanup still runs after a failure.
	f.exec.AssertCalled(t, "CloseOtherTabs", mock.Anything)
}

func TestRunScenario_RecoversPanics(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()
	f.exec.On("Screenshot", mock.Anything).Return(nil, errors.New("no target"))

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "panicking",
		Steps: lines("When a panicking step"),
	})
	assert.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "step panicked: boom")
}

func TestRunScenario_Undefined(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()
	f.exec.On("Screenshot", mock.Anything).Return([]byte("png"), nil)

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "undefined",
		Steps: lines("Given nothing defines this"),
	})
	assert.Equal(t, StatusUndefined, res.Status)
	assert.ErrorIs(t, res.Err, steps.ErrNoMatch)

	// Keywords matter: a Then-only step written with When is undefined too.
	res = f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "wrong keyword",
		Steps: lines("When a failing step"),
	})
	assert.Equal(t, StatusUndefined, res.Status)
}

func TestRunScenario_DocString(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "with text",
		Steps: []scenario.Step{{Text: "Then the text is hello", DocString: "\n  hello\n"}},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"with text"}, f.ran)
}

func TestRunScenario_Skips(t *testing.T) {
	cases := map[string][]string{
		"skip tag":          {"skip"},
		"excluded browser":  {"not.with_browser=ch"},
		"other browser":     {"only.with_browser=ff"},
		"other platform":    {"@only.with_platform=osx"},
		"excluded combined": {"not.with_platform_browser=linux,ch"},
	}
	for name, tags := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			res := f.runner.RunScenario(context.Background(), scenario.Scenario{
				Name:  name,
				Tags:  tags,
				Steps: lines("Given a passing step"),
			})
			assert.Equal(t, StatusSkipped, res.Status)
			assert.NotEmpty(t, res.Reason)
			assert.Empty(t, f.ran)
			f.exec.AssertNotCalled(t, "SetWindowBounds", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunScenario_FatalErrorFailsScenario(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("SetWindowBounds", mock.Anything, 0, 0, 1020, 700).Return(nil)
	f.exec.On("CloseOtherTabs", mock.Anything).Return(1, nil)
	f.exec.On("Evaluate", mock.Anything, mock.MatchedBy(isFatalCheck), mock.Anything).Return(errors.New("script error"))

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "fatal",
		Steps: lines("Given a passing step"),
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.FailedStep)
	assert.ErrorContains(t, res.Err, "script error")
	f.exec.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestRunScenario_CaptionsWaitAndLogs(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.StepsCfg.Captions = true
		c.StepsCfg.JSLogs = true
		c.StepsCfg.WaitBetweenSeconds = 0.25
	})
	var slept []time.Duration
	f.runner.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	f.expectLifecycle()
	f.exec.On("Evaluate", mock.Anything, mock.MatchedBy(isCaption), nil).Return(nil)
	f.exec.On("Evaluate", mock.Anything, mock.MatchedBy(isDrainLog), mock.Anything).
		Run(func(args mock.Arguments) { *args.Get(2).(*[]interface{}) = []interface{}{"log entry"} }).
		Return(nil)

	res := f.runner.RunScenario(context.Background(), scenario.Scenario{
		Name:  "captioned",
		Steps: lines("Given a passing step", "And a passing step"),
	})
	require.NoError(t, res.Err)

	f.exec.AssertCalled(t, "Evaluate", mock.Anything, "// SCENARIO: captioned\n", nil)
	f.exec.AssertCalled(t, "Evaluate", mock.Anything, "// STEP: Given a passing step\n", nil)
	f.exec.AssertCalled(t, "Evaluate", mock.Anything, "// STEP: And a passing step\n", nil)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, slept)

	// One dump per step plus one after the scenario.
	drains := 0
	for _, c := range f.exec.Calls {
		if c.Method == "Evaluate" && isDrainLog(c.Arguments.String(1)) {
			drains++
		}
	}
	assert.Equal(t, 3, drains)
}

func TestRun_SummaryAndSink(t *testing.T) {
	f := newFixture(t, nil)
	f.expectLifecycle()
	f.exec.On("Screenshot", mock.Anything).Return([]byte("png"), nil)

	sink := &mocks.MockSink{}
	sink.On("SaveRun", mock.Anything, mock.MatchedBy(func(run store.Run) bool {
		return run.ID != "" && run.Browser == "CHROME" && len(run.Outcomes) == 3 &&
			run.Outcomes[1].Error == "assertion failed" && run.Outcomes[2].Error == "marked with @skip"
	})).Return(nil).Once()
	f.runner.deps.Sink = sink

	now := epoch
	f.runner.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	sum, err := f.runner.Run(context.Background(), []scenario.Scenario{
		{Name: "one", Steps: lines("Given a passing step")},
		{Name: "two", Steps: lines("Then a failing step")},
		{Name: "three", Tags: []string{"skip"}, Steps: lines("Given a passing step")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, sum.Count(StatusPassed))
	assert.Equal(t, 1, sum.Failed())
	assert.Equal(t, 1, sum.Count(StatusSkipped))
	assert.False(t, sum.OK())
	assert.Positive(t, sum.Elapsed)
	assert.Equal(t, time.Second, sum.Results[0].Duration)
	sink.AssertExpectations(t)
}

func TestRun_SinkErrorAndCancellation(t *testing.T) {
	f := newFixture(t, nil)
	sink := &mocks.MockSink{}
	sink.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.runner.deps.Sink = sink

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := f.runner.Run(ctx, []scenario.Scenario{{Name: "never", Steps: lines("Given a passing step")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, sum.Results)
}

func TestExcluded(t *testing.T) {
	values := map[string]string{"browser": "ch", "platform": "linux", "platform_browser": "linux,ch"}
	cases := []struct {
		tags []string
		want bool
	}{
		{nil, false},
		{[]string{"wip"}, false},
		{[]string{"only.with_browser=ch"}, false},
		{[]string{"only.with_browser=ff"}, true},
		{[]string{"only.with_browser=ff", "only.with_browser=ch"}, false},
		{[]string{"only.with_browser=ch", "only.with_platform=osx"}, true},
		{[]string{"not.with_browser=ie"}, false},
		{[]string{"not.with_browser=ch"}, true},
		{[]string{"use.with_platform=linux"}, false},
		{[]string{"not.with_platform_browser=linux,ch"}, true},
		{[]string{"only.with_color=red"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Excluded(tc.tags, values), "%v", tc.tags)
	}
}

func TestWaitForServer(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/blank", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	eval := condition.New(condition.Options{Timeout: time.Second, Interval: 500 * time.Millisecond}, nil)
	require.NoError(t, WaitForServer(context.Background(), srv.Client(), srv.URL+"/blank", eval))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestWaitForServer_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := srv.Client()
	url := srv.URL + "/blank"
	srv.Close()

	clock := condition.NewFakeClock(epoch)
	eval := ReadinessEvaluator(config.ServerConfig{ReadyAttempts: 10, ReadyInterval: 500 * time.Millisecond}, nil).
		WithOptions(func(o *condition.Options) { o.Clock = clock })

	err := WaitForServer(context.Background(), client, url, eval)
	require.Error(t, err)
	assert.ErrorIs(t, err, condition.ErrTimeout)
	var te *condition.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 10, te.Attempts)
	assert.Len(t, clock.Sleeps(), 9)
}

func TestPrepareScreenshots(t *testing.T) {
	root := t.TempDir()

	first, err := PrepareScreenshots(root, epoch)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024-01-01T00:00:00"), first)

	second, err := PrepareScreenshots(root, epoch.Add(time.Minute))
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(root, LatestLink))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(second), target)
	assert.DirExists(t, first)
}

func TestScreenshotName(t *testing.T) {
	name := ScreenshotName("Saving a document", "the user saves")
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, strings.ToLower(name), name)
	assert.NotContains(t, name, " ")
	assert.Contains(t, name, "the-user-saves")
}

func TestShouldQuit(t *testing.T) {
	cases := []struct {
		mode   string
		failed bool
		want   bool
	}{
		{config.QuitAlways, false, true},
		{config.QuitAlways, true, true},
		{config.QuitNever, false, false},
		{config.QuitOnEnter, false, false},
		{config.QuitOnSuccess, false, true},
		{config.QuitOnSuccess, true, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldQuit(tc.mode, tc.failed), "%s failed=%v", tc.mode, tc.failed)
	}
}

func TestFinish(t *testing.T) {
	exec := &mocks.MockExecutor{}
	exec.On("Close", mock.Anything).Return(nil)
	session := browser.NewSession(exec, config.BrowserConfig{}, nil)

	var out bytes.Buffer
	require.NoError(t, Finish(context.Background(), session, config.QuitOnEnter, false, strings.NewReader("\n"), &out))
	assert.Equal(t, "Hit enter to quit", out.String())
	exec.AssertNumberOfCalls(t, "Close", 1)

	require.NoError(t, Finish(context.Background(), session, config.QuitNever, false, nil, nil))
	require.NoError(t, Finish(context.Background(), session, config.QuitOnSuccess, true, nil, nil))
	exec.AssertNumberOfCalls(t, "Close", 1)

	require.NoError(t, Finish(context.Background(), nil, config.QuitAlways, false, nil, nil))
}

func TestStart(t *testing.T) {
	exec := &mocks.MockExecutor{}
	exec.On("Close", mock.Anything).Return(nil)
	launch := func(context.Context) (*browser.Session, error) {
		return browser.NewSession(exec, config.BrowserConfig{}, nil), nil
	}

	s, err := Start(context.Background(), func(context.Context) error { return nil }, launch)
	require.NoError(t, err)
	assert.NotNil(t, s)
	exec.AssertNotCalled(t, "Close", mock.Anything)

	_, err = Start(context.Background(), func(context.Context) error { return errors.New("cannot contact server") }, launch)
	assert.ErrorContains(t, err, "cannot contact server")
	exec.AssertNumberOfCalls(t, "Close", 1)

	_, err = Start(context.Background(), func(context.Context) error { return nil },
		func(context.Context) (*browser.Session, error) { return nil, errors.New("no chrome") })
	assert.ErrorContains(t, err, "starting browser: no chrome")
}

func TestStart_ServerFailureCancelsLaunch(t *testing.T) {
	serverErr := errors.New("cannot contact server")
	launch := func(ctx context.Context) (*browser.Session, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		_, err := Start(context.Background(), func(context.Context) error { return serverErr }, launch)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, serverErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start kept waiting for the launch after the server check failed")
	}
}
