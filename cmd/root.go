// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// NewRootCommand builds the command tree. Each call returns an independent
// tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "wedcheck",
		Short:         "wedcheck drives the wed editor in a browser and checks what it saves.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err == nil {
				applyFlagOverrides(cmd, cfg)
				if err = cfg.Validate(); err != nil {
					err = fmt.Errorf("invalid configuration: %w", err)
				}
			}
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "wedcheck"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting wedcheck", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./wedcheck.yaml or ~/.wedcheck/wedcheck.yaml)")
	flags.String("base-url", "", "address of the test server")
	flags.String("browser", "", "browser name: CHROME, FIREFOX, INTERNETEXPLORER or EDGE")
	flags.Bool("headless", true, "run a local browser without a window")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx and logs a failure.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Interrupted.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

// initializeConfig reads in the config file and the environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wedcheck"))
		}
		v.SetConfigName("wedcheck")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEDCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// applyFlagOverrides copies the global flags the user set onto cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("base-url") {
		u, _ := flags.GetString("base-url")
		cfg.SetServerBaseURL(u)
	}
	if flags.Changed("browser") {
		n, _ := flags.GetString("browser")
		cfg.SetBrowserName(n)
	}
	if flags.Changed("headless") {
		h, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(h)
	}
}

// configFrom returns the configuration stored by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
