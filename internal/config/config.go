// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing run configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Poll() PollConfig
	Steps() StepsConfig
	Artifacts() ArtifactsConfig
	Scenarios() ScenariosConfig
	Database() DatabaseConfig

	SetServerBaseURL(string)
	SetBrowserName(string)
	SetBrowserHeadless(bool)
	SetScenariosFile(string)
}

// Config holds the entire harness configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	NetworkCfg   NetworkConfig   `mapstructure:"network" yaml:"network"`
	PollCfg      PollConfig      `mapstructure:"poll" yaml:"poll"`
	StepsCfg     StepsConfig     `mapstructure:"steps" yaml:"steps"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	ScenariosCfg ScenariosConfig `mapstructure:"scenarios" yaml:"scenarios"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Server() ServerConfig       { return c.ServerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig     { return c.NetworkCfg }
func (c *Config) Poll() PollConfig           { return c.PollCfg }
func (c *Config) Steps() StepsConfig         { return c.StepsCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Scenarios() ScenariosConfig { return c.ScenariosCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetServerBaseURL(u string) { c.ServerCfg.BaseURL = u }
func (c *Config) SetBrowserName(n string)   { c.BrowserCfg.Name = strings.ToUpper(n) }
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetScenariosFile(f string) { c.ScenariosCfg.File = f }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig locates the test server that hosts the editor and records saves.
type ServerConfig struct {
	// BaseURL is the address at which the harness reaches the server locally.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Root is the path of the optimized build, appended to BaseURL for pages.
	Root string `mapstructure:"root" yaml:"root"`
	// UnoptimizedRoot is the path of the development build.
	UnoptimizedRoot string `mapstructure:"unoptimized_root" yaml:"unoptimized_root"`
	// SavePath is resolved against BaseURL, not against Root.
	SavePath      string        `mapstructure:"save_path" yaml:"save_path"`
	BlankPath     string        `mapstructure:"blank_path" yaml:"blank_path"`
	ReadyAttempts int           `mapstructure:"ready_attempts" yaml:"ready_attempts"`
	ReadyInterval time.Duration `mapstructure:"ready_interval" yaml:"ready_interval"`
}

// AppURL returns the URL under which editor pages are served.
func (s ServerConfig) AppURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.Root
}

// UnoptimizedAppURL returns the address of the development build, which
// serves pages the optimized build leaves out.
func (s ServerConfig) UnoptimizedAppURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.UnoptimizedRoot
}

// SaveURL returns the absolute URL of the save artifact.
func (s ServerConfig) SaveURL() (string, error) {
	return resolve(s.BaseURL, s.SavePath)
}

// BlankURL returns the absolute URL used by the readiness check.
func (s ServerConfig) BlankURL() (string, error) {
	return resolve(s.BaseURL, s.BlankPath)
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server.base_url %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// BrowserConfig describes the browser driving the editor.
type BrowserConfig struct {
	// Name is one of CHROME, FIREFOX, INTERNETEXPLORER or EDGE.
	Name     string `mapstructure:"name" yaml:"name"`
	Platform string `mapstructure:"platform" yaml:"platform"`
	Version  string `mapstructure:"version" yaml:"version"`
	// Spec uses the legacy "Platform,BROWSER,version" form (TEST_BROWSER).
	Spec     string `mapstructure:"spec" yaml:"spec"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	// ExecPath selects the Chromium-family binary. Empty means auto-detect.
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	RemoteURL    string   `mapstructure:"remote_url" yaml:"remote_url"`
	Args         []string `mapstructure:"args" yaml:"args"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	// Quit is one of always, never, on-success or on-enter.
	Quit string `mapstructure:"quit" yaml:"quit"`
}

// Remote reports whether the browser runs on another machine.
func (b BrowserConfig) Remote() bool { return b.RemoteURL != "" }

// NetworkConfig tunes the HTTP client used to fetch save artifacts.
type NetworkConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// PollConfig configures the polling condition evaluator.
type PollConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout" yaml:"remote_timeout"`
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	StrictErrors  bool          `mapstructure:"strict_errors" yaml:"strict_errors"`
}

// StepsConfig holds per-step behaviors of the scenario runner.
type StepsConfig struct {
	WaitBetweenSeconds float64 `mapstructure:"wait_between_seconds" yaml:"wait_between_seconds"`
	Captions           bool    `mapstructure:"captions" yaml:"captions"`
	JSLogs             bool    `mapstructure:"js_logs" yaml:"js_logs"`
}

// WaitBetween converts the configured pause into a duration.
func (s StepsConfig) WaitBetween() time.Duration {
	return time.Duration(s.WaitBetweenSeconds * float64(time.Second))
}

// ArtifactsConfig controls where run artifacts are written.
type ArtifactsConfig struct {
	ScreenshotsDir string `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
}

// ScenariosConfig points at scenario definitions.
type ScenariosConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// DatabaseConfig holds the results database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EffectivePollTimeout returns the poll timeout for the configured browser.
// Remote browsers get more time.
func (c *Config) EffectivePollTimeout() time.Duration {
	if c.BrowserCfg.Remote() && c.PollCfg.RemoteTimeout > 0 {
		return c.PollCfg.RemoteTimeout
	}
	return c.PollCfg.Timeout
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wedcheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.base_url", "http://localhost:8888")
	v.SetDefault("server.root", "/forever/build/dist/packed")
	v.SetDefault("server.unoptimized_root", "/forever/build/dist/dev")
	v.SetDefault("server.save_path", "/build/ajax/save.txt")
	v.SetDefault("server.blank_path", "/blank")
	v.SetDefault("server.ready_attempts", 10)
	v.SetDefault("server.ready_interval", "500ms")

	// -- Browser --
	v.SetDefault("browser.name", "CHROME")
	v.SetDefault("browser.platform", "LINUX")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1020)
	v.SetDefault("browser.window_height", 700)
	v.SetDefault("browser.quit", QuitAlways)
	v.SetDefault("browser.args", []string{"test-type", "touch-events"})

	// -- Network --
	v.SetDefault("network.timeout", "10s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.requests_per_second", 20.0)

	// -- Poll --
	v.SetDefault("poll.timeout", "2s")
	v.SetDefault("poll.remote_timeout", "4s")
	v.SetDefault("poll.interval", "500ms")
	v.SetDefault("poll.strict_errors", false)

	// -- Steps --
	v.SetDefault("steps.wait_between_seconds", 0.0)
	v.SetDefault("steps.captions", false)
	v.SetDefault("steps.js_logs", false)

	// -- Artifacts --
	v.SetDefault("artifacts.screenshots_dir", "test_logs/screenshots")
}

// Quit modes for the browser at the end of a run.
const (
	QuitAlways    = "always"
	QuitNever     = "never"
	QuitOnSuccess = "on-success"
	QuitOnEnter   = "on-enter"
)

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Environment variables understood by the older harness.
	_ = v.BindEnv("browser.quit", "SELENIUM_QUIT")
	_ = v.BindEnv("browser.spec", "TEST_BROWSER")
	_ = v.BindEnv("steps.wait_between_seconds", "BEHAVE_WAIT_BETWEEN_STEPS")
	_ = v.BindEnv("steps.captions", "BEHAVE_CAPTIONS")
	_ = v.BindEnv("steps.js_logs", "SELENIUM_LOGS")
	_ = v.BindEnv("database.url", "WEDCHECK_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.BrowserCfg.Spec != "" {
		if err := cfg.BrowserCfg.applySpec(cfg.BrowserCfg.Spec); err != nil {
			return nil, err
		}
	}
	cfg.BrowserCfg.Name = strings.ToUpper(cfg.BrowserCfg.Name)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var browserAbbreviations = map[string]string{
	"CH":   "CHROME",
	"FF":   "FIREFOX",
	"IE":   "INTERNETEXPLORER",
	"EDGE": "EDGE",
}

// applySpec parses "Platform,BROWSER,version". Empty parts keep the current value.
func (b *BrowserConfig) applySpec(spec string) error {
	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		return fmt.Errorf("browser spec %q must have the form platform,browser,version", spec)
	}
	if p := strings.TrimSpace(parts[0]); p != "" {
		b.Platform = strings.ToUpper(p)
	}
	if n := strings.ToUpper(strings.TrimSpace(parts[1])); n != "" {
		if full, ok := browserAbbreviations[n]; ok {
			n = full
		}
		b.Name = n
	}
	if ver := strings.TrimSpace(parts[2]); ver != "" {
		b.Version = ver
	}
	return nil
}

var knownBrowsers = map[string]bool{
	"CHROME":           true,
	"FIREFOX":          true,
	"INTERNETEXPLORER": true,
	"EDGE":             true,
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.ServerCfg.BaseURL == "" {
		return fmt.Errorf("server.base_url is a required configuration field")
	}
	if _, err := url.Parse(c.ServerCfg.BaseURL); err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if c.ServerCfg.ReadyAttempts <= 0 {
		return fmt.Errorf("server.ready_attempts must be a positive integer")
	}
	if !knownBrowsers[strings.ToUpper(c.BrowserCfg.Name)] {
		return fmt.Errorf("browser.name %q is not one of CHROME, FIREFOX, INTERNETEXPLORER, EDGE", c.BrowserCfg.Name)
	}
	if err := c.PollCfg.Validate(); err != nil {
		return fmt.Errorf("poll configuration invalid: %w", err)
	}
	switch c.BrowserCfg.Quit {
	case QuitAlways, QuitNever, QuitOnSuccess, QuitOnEnter:
	default:
		return fmt.Errorf("browser.quit %q is not one of always, never, on-success, on-enter", c.BrowserCfg.Quit)
	}
	if c.StepsCfg.WaitBetweenSeconds < 0 {
		return fmt.Errorf("steps.wait_between_seconds must not be negative")
	}
	return nil
}

// Validate checks the PollConfig settings.
func (p *PollConfig) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if p.Interval <= 0 {
		return fmt.Errorf("interval must be a positive duration")
	}
	if p.Interval > p.Timeout {
		return fmt.Errorf("interval (%s) must not exceed timeout (%s)", p.Interval, p.Timeout)
	}
	return nil
}
