package acquire

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"
	"github.com/sirupsen/logrus"
	"github.com/snksoft/crc"
	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/migcap/camera"
	"github.jpl.nasa.gov/bdube/migcap/tslog"
)

// EnterKey is the key code that ends a run from the display
const EnterKey = 13

// stages a frame can be dropped at
const (
	StageAcquire = "acquire"
	StageExtract = "extract"
	StageWrite   = "write"
	StageLog     = "log"
)

// Display shows frames and reports key presses
type Display interface {
	// Show draws a frame
	Show(*image.Gray) error

	// WaitKey pumps events for up to ms milliseconds and returns the key
	// pressed, or -1
	WaitKey(ms int) int

	// Close releases the display
	Close() error
}

// Record is a persisted frame
type Record struct {
	// Index is the frame index and workbook data row
	Index int

	// Path is the frame file
	Path string

	// Timestamp is the device timestamp, ns
	Timestamp uint64

	// Checksum is the CRC-32 of the pixels
	Checksum uint32

	// Image is the frame.  It must not be modified.
	Image *image.Gray
}

// Observer watches a run
type Observer interface {
	// Persisted is called once the frame file and its row are both written
	Persisted(Record)

	// Failed is called when an attempt is dropped at stage
	Failed(stage string, err error)
}

// Run captures frames until ctx is done, the Enter key is pressed in disp, or
// MaxFrames frames were persisted.  disp may be nil for a headless run; if
// not, the session takes ownership of it and closes it in Close.  Failed
// attempts are logged and skipped.  Run returns the number of persisted
// frames.
func (ss *Session) Run(ctx context.Context, disp Display) int {
	ss.disp = disp
	s := ss.Settings
	var lim *rate.Limiter
	if s.MaxFPS > 0 {
		lim = rate.NewLimiter(rate.Limit(s.MaxFPS), 1)
	}
	ss.log.WithFields(logrus.Fields{
		"folder":   ss.ImageFolder(),
		"workbook": ss.WorkbookPath()}).Info("acquisition started")

	n := 0
	for {
		if ctx.Err() != nil {
			ss.log.Info("acquisition interrupted")
			return n
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				ss.log.Info("acquisition interrupted")
				return n
			}
		}
		rec, ok := ss.capture(n)
		if !ok {
			continue
		}
		n++
		for _, o := range ss.Observers {
			o.Persisted(rec)
		}
		if disp != nil {
			if err := disp.Show(rec.Image); err != nil {
				ss.log.WithError(err).Warn("could not display frame")
			}
			if disp.WaitKey(1) == EnterKey {
				ss.log.WithField("frames", n).Info("Enter pressed, stopping")
				return n
			}
		}
		if s.MaxFrames > 0 && n >= s.MaxFrames {
			ss.log.WithField("frames", n).Info("frame limit reached")
			return n
		}
	}
}

func (ss *Session) failed(stage string, err error) {
	for _, o := range ss.Observers {
		o.Failed(stage, err)
	}
}

// capture makes one acquisition attempt and persists it as frame n
func (ss *Session) capture(n int) (Record, bool) {
	frame, err := ss.cam.AcquireSingleImage(ss.Settings.Timeout)
	if err != nil {
		if errors.Is(err, camera.ErrTimeout) {
			ss.log.WithError(err).Debug("no frame")
		} else {
			ss.log.WithError(err).Warn("acquisition failed")
		}
		ss.failed(StageAcquire, err)
		return Record{}, false
	}

	img, ts, err := ss.extract(frame)
	if err != nil {
		ss.failed(StageExtract, err)
		return Record{}, false
	}

	sum := uint32(crc.CalculateCRC(crc.CRC32, img.Pix))
	path, err := ss.rec.Write(n, img,
		fitsio.Card{Name: "TSTAMP", Value: int(ts), Comment: "device timestamp, ns"},
		fitsio.Card{Name: "FRAMEID", Value: n, Comment: "frame index"},
		fitsio.Card{Name: "EXPTIME", Value: ss.Features.Exposure / 1e6, Comment: "exposure time, s"},
		fitsio.Card{Name: "GAIN", Value: ss.Features.Gain})
	if err != nil {
		ss.log.WithError(err).WithField("frame", n).Error("could not write frame")
		ss.failed(StageWrite, err)
		return Record{}, false
	}

	row := tslog.Row{Index: n, Timestamp: ts, File: filepath.Base(path), Checksum: sum}
	if err = ss.book.Append(row); err != nil {
		ss.log.WithError(err).WithField("frame", n).Error("could not log timestamp")
		if rerr := os.Remove(path); rerr != nil {
			ss.log.WithError(rerr).WithField("path", path).Error("could not remove orphaned frame")
		}
		ss.failed(StageLog, err)
		return Record{}, false
	}
	ss.log.WithFields(logrus.Fields{"frame": n, "timestamp": ts}).Debug("frame saved")
	return Record{Index: n, Path: path, Timestamp: ts, Checksum: sum, Image: img}, true
}

// extract reads every accessor of f, logging each failure.  Any failure
// discards the whole frame; the returned error joins all of them.
func (ss *Session) extract(f camera.Frame) (*image.Gray, uint64, error) {
	var errs []error
	h, err := f.Height()
	if err != nil {
		ss.log.WithError(err).Warn("failed to get frame height")
		errs = append(errs, err)
	}
	w, err := f.Width()
	if err != nil {
		ss.log.WithError(err).Warn("failed to get frame width")
		errs = append(errs, err)
	}
	pix, err := f.Image()
	if err != nil {
		ss.log.WithError(err).Warn("failed to get frame image")
		errs = append(errs, err)
	}
	ts, err := f.Timestamp()
	if err != nil {
		ss.log.WithError(err).Warn("failed to get frame timestamp")
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, 0, errors.Join(errs...)
	}
	if len(pix) < w*h {
		err = fmt.Errorf("frame buffer holds %d bytes, %dx%d needs %d", len(pix), w, h, w*h)
		ss.log.WithError(err).Warn("failed to get frame image")
		return nil, 0, err
	}
	img := &image.Gray{
		Pix:    pix[:w*h],
		Stride: w,
		Rect:   image.Rect(0, 0, w, h)}
	return img, ts, nil
}
