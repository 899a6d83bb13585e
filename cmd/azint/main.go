// azint converts X-ray detector images into azimuthally integrated patterns.
package main

import (
	"os"

	"github.com/hupe1980/azint/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
