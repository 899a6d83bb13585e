package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hupe1980/azint/internal/watch"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert pending images, then watch for new ones",
		Long: `Convert every image of the source directory that has no pattern yet,
then keep watching the directory and convert each new image as soon as
it appears. Stop with Ctrl+C; a conversion in progress is finished
before azint exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, true)
			if err != nil {
				return err
			}

			lock, err := s.lockDestination()
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			ctx, stop := watch.SignalContext(cmd.Context())
			defer stop()

			// Live conversions wait until the batch pass is done, so images
			// are converted one at a time.
			var serial sync.Mutex

			w, err := watch.New(watch.Options{
				Dir:    s.cfg.Source,
				Match:  s.conv.Matches,
				Settle: s.cfg.Settle,
			}, func(ctx context.Context, path string) {
				serial.Lock()
				defer serial.Unlock()

				s.conv.Convert(ctx, path)
			})
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			// Subscribe before scanning so an image created during the batch
			// pass is seen by one of the two.
			serial.Lock()

			if err := w.Start(ctx); err != nil {
				serial.Unlock()
				return &ExitError{Code: 1, Err: err}
			}

			_, err = s.runBatch(ctx)

			serial.Unlock()

			if err != nil && !errors.Is(err, context.Canceled) {
				_ = w.Stop()
				return err
			}

			s.printer.Infof("watching %s for new %s files (Ctrl+C to stop)", s.cfg.Source, s.cfg.ImageSuffix)

			<-ctx.Done()

			if err := w.Stop(); err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			return nil
		},
	}

	registerPipelineFlags(cmd)
	registerWatchFlags(cmd)

	return cmd
}
