package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/azint/internal/config"
)

// registerLocationFlags adds the directory and calibration flags.
func registerLocationFlags(cmd *cobra.Command, withSource bool) {
	f := cmd.Flags()

	if withSource {
		f.StringP("source", "s", "", "directory holding detector images (required)")
	}

	f.StringP("dest", "d", "", "directory receiving pattern files, created if absent (required)")
	f.StringP("calibration", "c", "", "PONI calibration file (required)")
	f.StringP("mask", "m", "", "mask image; non-zero pixels are excluded")
}

// registerIntegrationFlags adds the flags controlling the integration and
// the produced files.
func registerIntegrationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("image-suffix", config.DefaultImageSuffix, "suffix identifying detector images")
	f.String("pattern-suffix", config.DefaultPatternSuffix, "suffix of pattern files (.dat, .xy or .csv)")
	f.Int("bins", config.DefaultBins, "number of radial bins")
	f.Float64("polarization", config.DefaultPolarization, "polarization factor in [-1, 1]")
	f.String("unit", config.DefaultUnit, "radial unit: q_nm^-1, q_A^-1, 2th_deg, 2th_rad")
	f.Bool("preview", false, "also write a PNG plot beside every pattern")
}

// registerWatchFlags adds the live watcher flags.
func registerWatchFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("settle", 0,
		"wait until an image saw no writes for this long before converting it; "+
			"0 converts on creation, so set it when the detector writes files in place "+
			"(an image still being written then fails to decode and is not retried until the next run)")
}

// registerPipelineFlags registers every flag shared by the directory
// commands.
func registerPipelineFlags(cmd *cobra.Command) {
	registerLocationFlags(cmd, true)
	registerIntegrationFlags(cmd)
}
