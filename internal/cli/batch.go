package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBatchCommand() *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert every pending image once and exit",
		Long: `Scan the source directory once, convert every image that has no pattern
in the destination directory yet and print a summary.

Images that already have a pattern are skipped, so running batch twice
writes nothing the second time.`,
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

			summary, err := s.runBatch(cmd.Context())
			if err != nil {
				return err
			}

			if n := len(summary.Failures()); failOnError && n > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d image(s) failed to convert", n)}
			}

			return nil
		},
	}

	registerPipelineFlags(cmd)
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit with code 1 when any image failed")

	return cmd
}
