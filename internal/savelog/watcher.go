package savelog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// FromStart replays entries already in the file before following it.
	FromStart bool
	// Poll uses stat polling instead of inotify. Needed on some network mounts.
	Poll bool
}

// Watcher follows a save log on disk and decodes each entry as it is
// appended.
type Watcher struct {
	path   string
	opts   WatchOptions
	logger *zap.Logger
}

// NewWatcher returns a Watcher for the save log at path.
func NewWatcher(path string, opts WatchOptions, logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("save log path must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: path, opts: opts, logger: logger.Named("savelog-watcher")}, nil
}

// Run tails the file until ctx is done, calling handle for every entry that
// decodes. Entries that do not decode are logged and skipped. Run returns nil
// when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, handle func(Envelope)) error {
	whence := io.SeekEnd
	if w.opts.FromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(w.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      w.opts.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail save log: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	w.logger.Info("Watching save log.", zap.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping save log watcher.")
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				w.logger.Warn("Error reading save log", zap.Error(line.Err))
				continue
			}
			text := strings.TrimSpace(line.Text)
			// Blank lines and the "***" separator between entries.
			if text == "" || text == strings.TrimSpace(Separator) {
				continue
			}
			env, err := Parse(text)
			if err != nil {
				w.logger.Warn("Skipping undecodable save log entry", zap.Error(err))
				continue
			}
			handle(env)
		}
	}
}
