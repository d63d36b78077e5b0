// Package imgrec contains the folder layout and frame recorder used to save
// acquired images to disk.
package imgrec

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"
)

// Format is the on-disk encoding of a frame
type Format string

const (
	// PNG writes 8-bit grayscale PNG files
	PNG Format = "png"

	// FITS writes 8-bit FITS files with header cards
	FITS Format = "fits"
)

// ErrUnknownFormat is generated when a Recorder is asked for a format it cannot write
var ErrUnknownFormat = errors.New("unknown image format, expected png or fits")

// ParseFormat validates a format string
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case PNG, FITS:
		return f, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// FolderName is the name shared by the image folder and the timestamp
// workbook of one run.  Gain and exposure are truncated toward zero.
func FolderName(gain, exposure float64) string {
	return fmt.Sprintf("Gain_%d_Exposure_%d", int(gain), int(exposure))
}

// Provision creates path and any missing parents.  created is false when the
// folder already existed, which is not an error.
func Provision(path string) (created bool, err error) {
	fi, err := os.Stat(path)
	if err == nil {
		if !fi.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", path)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err = os.MkdirAll(path, 0777); err != nil {
		return false, err
	}
	return true, nil
}

// Recorder writes frames with the index in the filename into one folder.
// It is not thread safe.
type Recorder struct {
	// Root is the folder frames are written to
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Format is the encoding of the files
	Format Format
}

// New returns a Recorder writing <root>/frame_<n>.<format>
func New(root string, format Format) *Recorder {
	return &Recorder{Root: root, Prefix: "frame_", Format: format}
}

// Path is the file frame n is written to
func (r *Recorder) Path(n int) string {
	return filepath.Join(r.Root, fmt.Sprintf("%s%d.%s", r.Prefix, n, r.Format))
}

// Write encodes img to the file for frame n, replacing any file left there by
// an earlier run, and returns the path.  cards are added to the header of FITS
// files and ignored for PNG.  A file that failed to encode is removed.
func (r *Recorder) Write(n int, img *image.Gray, cards ...fitsio.Card) (string, error) {
	fn := r.Path(n)
	fid, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	switch r.Format {
	case PNG:
		err = png.Encode(fid, img)
	case FITS:
		err = WriteFits(fid, img, cards...)
	default:
		err = fmt.Errorf("%q: %w", r.Format, ErrUnknownFormat)
	}
	if cerr := fid.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fn)
		return "", err
	}
	return fn, nil
}

// WriteFits streams an 8-bit fits file to w
func WriteFits(w io.Writer, img *image.Gray, metadata ...fitsio.Card) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(8, []int{width, height})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	// the Gray may be a sub-image with a wider stride, fits wants it packed
	buf := img.Pix
	if img.Stride != width {
		buf = make([]byte, 0, width*height)
		for row := 0; row < height; row++ {
			off := row * img.Stride
			buf = append(buf, img.Pix[off:off+width]...)
		}
	}
	err = im.Write(buf)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
