// Package imageio decodes detector images and masks into gonum matrices.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // register PNG for masks exported by other tools
	"os"

	_ "golang.org/x/image/tiff" // register TIFF, the usual detector format
	"gonum.org/v1/gonum/mat"
)

// Reader decodes the image at path into a rows x cols matrix.
type Reader interface {
	Read(path string) (*mat.Dense, error)
}

// FileReader decodes any format registered with the image package.
type FileReader struct{}

var _ Reader = FileReader{}

// Read implements Reader.
func (FileReader) Read(path string) (*mat.Dense, error) {
	f, err := os.Open(path) //nolint:gosec // detector file paths come from the watched directory
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	m := ToDense(img)
	if r, c := m.Dims(); r == 0 || c == 0 {
		return nil, fmt.Errorf("decoding %s image: empty", format)
	}

	return m, nil
}

// ToDense converts img into a matrix of pixel intensities. Grayscale images
// keep their native depth; colour images are reduced to 16-bit luminance.
func ToDense(img image.Image) *mat.Dense {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()

	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}

	data := make([]float64, rows*cols)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				data[y*cols+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				data[y*cols+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				data[y*cols+x] = float64(g.Y)
			}
		}
	}

	return mat.NewDense(rows, cols, data)
}

// LoadMask reads a mask image. Non-zero pixels are excluded from
// integration. An empty path means no mask and returns nil.
func LoadMask(r Reader, path string) (*mat.Dense, error) {
	if path == "" {
		return nil, nil
	}

	m, err := r.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading mask %s: %w", path, err)
	}

	return m, nil
}
