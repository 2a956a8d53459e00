// File: cmd/verify.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/observability"
	"github.com/xkilldash9x/wedcheck/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		name      string
		scenarios string
	)
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Checks the last save recorded by the test server against a scenario",
		Long: `verify fetches the save log from the test server, waits until the last
entry matches the document expected for the scenario, and reports a
mismatch otherwise. No browser is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if scenarios != "" {
				cfg.SetScenariosFile(scenarios)
			}
			logger := observability.GetLogger()

			suite, err := loadSuite(cfg)
			if err != nil {
				return err
			}
			client := newHTTPClient(cfg, logger)
			v, err := newVerifier(cfg, client, suite, newEvaluator(cfg, logger), logger)
			if err != nil {
				return err
			}

			if err := v.Verify(cmd.Context(), name); err != nil {
				var mismatch *verify.MismatchError
				if errors.As(err, &mismatch) {
					fmt.Fprintf(cmd.OutOrStdout(), "Mismatch for %q:\n%s\n", name, mismatch.Diff)
				}
				return err
			}

			logger.Info("Save verified.", zap.String("scenario", name), zap.String("identity", v.Identity().String()))
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", name)
			return nil
		},
	}
	verifyCmd.Flags().StringVarP(&name, "scenario", "s", "", "name of the scenario whose expected document is checked")
	verifyCmd.Flags().StringVar(&scenarios, "scenarios", "", "YAML file with additional expected documents")
	_ = verifyCmd.MarkFlagRequired("scenario")
	return verifyCmd
}
