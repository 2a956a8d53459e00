// File: cmd/watch.go
package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/observability"
	"github.com/xkilldash9x/wedcheck/internal/savelog"
)

func newWatchCmd() *cobra.Command {
	var opts savelog.WatchOptions
	watchCmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Follows a save log on disk and prints each save as it lands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			w, err := savelog.NewWatcher(args[0], opts, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			return w.Run(cmd.Context(), func(env savelog.Envelope) {
				data, _ := env.Data()
				logger.Info("Save received.",
					zap.String("command", env.Command()),
					zap.Any("version", env.Version()),
					zap.Int("data_length", len(data)),
				)
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s version=%v bytes=%d\n", env.Command(), env.Version(), len(data))
			})
		},
	}
	watchCmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "replay entries already in the file")
	watchCmd.Flags().BoolVar(&opts.Poll, "poll", false, "poll the file instead of using inotify")
	return watchCmd
}
