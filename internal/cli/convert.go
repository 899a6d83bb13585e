package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/azint/internal/output"
	"github.com/hupe1980/azint/internal/pipeline"
)

func newConvertCommand() *cobra.Command {
	var toStdout bool

	cmd := &cobra.Command{
		Use:   "convert <image>...",
		Short: "Convert the named image files",
		Long: `Convert the given image files into pattern files in the destination
directory. Images whose pattern already exists are skipped.

With --stdout the pattern of every image is written to standard output
instead and the destination directory is left untouched.`,
		Example: `  azint convert --dest processed --calibration detector.poni raw/sample01.tif
  azint convert -d processed -c detector.poni --stdout raw/sample01.tif > sample01.dat`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, false)
			if err != nil {
				return err
			}

			if toStdout {
				return renderToStdout(cmd, s, args)
			}

			lock, err := s.lockDestination()
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			failures := 0

			for _, image := range args {
				if s.conv.Convert(cmd.Context(), image).Outcome == pipeline.Failed {
					failures++
				}
			}

			if failures > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d image(s) failed to convert", failures, len(args))}
			}

			return nil
		},
	}

	registerLocationFlags(cmd, false)
	registerIntegrationFlags(cmd)
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write patterns to standard output instead of the destination")

	return cmd
}

func renderToStdout(cmd *cobra.Command, s *session, images []string) error {
	w := output.NewStdoutWriter(cmd.OutOrStdout())

	for _, image := range images {
		if !s.conv.Matches(image) {
			return &ExitError{Code: 1, Err: fmt.Errorf("%s: %w", image, pipeline.ErrSuffixMismatch)}
		}

		data, err := s.conv.Render(image)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}

		if err := w.Write(data); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	}

	return nil
}
