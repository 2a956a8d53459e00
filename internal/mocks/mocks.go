// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/wedcheck/internal/browser"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/savelog"
	"github.com/xkilldash9x/wedcheck/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	args := m.Called()
	return args.Get(0).(config.NetworkConfig)
}

func (m *MockConfig) Poll() config.PollConfig {
	args := m.Called()
	return args.Get(0).(config.PollConfig)
}

func (m *MockConfig) Steps() config.StepsConfig {
	args := m.Called()
	return args.Get(0).(config.StepsConfig)
}

func (m *MockConfig) Artifacts() config.ArtifactsConfig {
	args := m.Called()
	return args.Get(0).(config.ArtifactsConfig)
}

func (m *MockConfig) Scenarios() config.ScenariosConfig {
	args := m.Called()
	return args.Get(0).(config.ScenariosConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

// --- Setters ---

func (m *MockConfig) SetServerBaseURL(u string) { m.Called(u) }
func (m *MockConfig) SetBrowserName(n string)   { m.Called(n) }
func (m *MockConfig) SetBrowserHeadless(b bool) { m.Called(b) }
func (m *MockConfig) SetScenariosFile(f string) { m.Called(f) }

// -- Browser Mock --

// MockExecutor mocks browser.Executor. Scripts passed to Evaluate are
// matched verbatim, so tests can set up one expectation per page script.
type MockExecutor struct {
	mock.Mock
}

var _ browser.Executor = (*MockExecutor)(nil)

func (m *MockExecutor) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockExecutor) Evaluate(ctx context.Context, script string, res interface{}) error {
	return m.Called(ctx, script, res).Error(0)
}

func (m *MockExecutor) DispatchKey(ctx context.Context, key string, mods browser.Modifier) error {
	return m.Called(ctx, key, mods).Error(0)
}

func (m *MockExecutor) WaitVisible(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockExecutor) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockExecutor) SetWindowBounds(ctx context.Context, left, top, width, height int) error {
	return m.Called(ctx, left, top, width, height).Error(0)
}

func (m *MockExecutor) CloseOtherTabs(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockExecutor) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// SetBool is a Run function for Evaluate expectations whose result is a bool.
func SetBool(v bool) func(mock.Arguments) {
	return func(args mock.Arguments) { *args.Get(2).(*bool) = v }
}

// SetPair is a Run function for Evaluate expectations of page scripts that
// return [ok, message].
func SetPair(ok bool, msg string) func(mock.Arguments) {
	return func(args mock.Arguments) { *args.Get(2).(*[]interface{}) = []interface{}{ok, msg} }
}

// -- Save log Mock --

// MockEnvelopeSource mocks verify.EnvelopeSource.
type MockEnvelopeSource struct {
	mock.Mock
}

func (m *MockEnvelopeSource) Fetch(ctx context.Context) (savelog.Envelope, error) {
	args := m.Called(ctx)
	env, _ := args.Get(0).(savelog.Envelope)
	return env, args.Error(1)
}

// -- Store Mock --

// MockSink records runs handed to it.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) SaveRun(ctx context.Context, run store.Run) error {
	return m.Called(ctx, run).Error(0)
}
