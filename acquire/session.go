package acquire

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.jpl.nasa.gov/bdube/migcap/camera"
	"github.jpl.nasa.gov/bdube/migcap/imgrec"
	"github.jpl.nasa.gov/bdube/migcap/tslog"
)

// rowLog is the part of *tslog.Log a session writes through
type rowLog interface {
	Append(tslog.Row) error
	Path() string
	Rows() int
	Close() error
}

// Session is one run of the capture loop, from SDK startup to teardown
type Session struct {
	// Settings the session was opened with
	Settings Settings

	// Features is the camera configuration recorded at startup
	Features Features

	// Folder is the run name, used for the image folder and the workbook
	Folder string

	// Observers are told about every persisted and every skipped frame
	Observers []Observer

	sys     camera.System
	cam     camera.Device
	info    camera.Info
	rec     *imgrec.Recorder
	book    rowLog
	disp    Display
	log     logrus.FieldLogger
	started bool
}

// Open bootstraps a session: start the SDK, open the camera and its stream,
// configure the features, then create the output folders and the workbook.
// On failure everything already acquired is released before returning.
func Open(sys camera.System, s Settings, log logrus.FieldLogger) (*Session, error) {
	ss := &Session{Settings: s, sys: sys, log: log}
	if err := ss.bootstrap(); err != nil {
		ss.Close()
		return nil, err
	}
	ss.Features = Configure(ss.cam, s, log)
	if err := ss.prepare(); err != nil {
		ss.Close()
		return nil, err
	}
	return ss, nil
}

func (ss *Session) bootstrap() error {
	if err := ss.sys.Startup(); err != nil {
		return fmt.Errorf("could not start the camera API: %w", err)
	}
	ss.started = true
	ss.log.Debug("camera API started")

	cams, err := ss.sys.Cameras()
	if err != nil {
		return fmt.Errorf("could not list cameras: %w", err)
	}
	if len(cams) == 0 {
		return camera.ErrNoCamera
	}
	id := ss.Settings.CameraID
	if id == "" {
		id = cams[0].ID
	}

	cam, err := ss.open(id)
	if err != nil {
		return fmt.Errorf("could not open camera %s: %w", id, err)
	}
	ss.cam = cam
	ss.info = cam.Info()
	if err = cam.OpenStream(); err != nil {
		return fmt.Errorf("camera %s is not able to stream: %w", id, err)
	}
	ss.log.WithFields(logrus.Fields{
		"id":     ss.info.ID,
		"model":  ss.info.Model,
		"serial": ss.info.Serial}).Info("camera opened")
	return nil
}

// open makes one attempt, or keeps trying with exponential backoff for up
// to OpenRetry when the camera is still booting or held by another process
func (ss *Session) open(id string) (camera.Device, error) {
	if ss.Settings.OpenRetry <= 0 {
		return ss.sys.Open(id)
	}
	var dev camera.Device
	op := func() error {
		d, err := ss.sys.Open(id)
		if err != nil {
			ss.log.WithError(err).WithField("id", id).Warn("open failed, retrying")
			return err
		}
		dev = d
		return nil
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      ss.Settings.OpenRetry,
		Clock:               backoff.SystemClock}
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return dev, nil
}

func (ss *Session) prepare() error {
	s := ss.Settings
	ss.Folder = imgrec.FolderName(ss.Features.Gain, ss.Features.Exposure)
	imgDir := filepath.Join(s.ImageRoot, ss.Folder)
	for _, dir := range []string{s.ImageRoot, imgDir, s.TimestampRoot} {
		created, err := imgrec.Provision(dir)
		if err != nil {
			return fmt.Errorf("could not create folder: %w", err)
		}
		if created {
			ss.log.WithField("folder", dir).Info("folder created")
		} else {
			ss.log.WithField("folder", dir).Info("folder already exists")
		}
	}
	ss.rec = imgrec.New(imgDir, s.Format)

	book, err := tslog.Create(filepath.Join(s.TimestampRoot, ss.Folder+".xlsx"))
	if err != nil {
		return fmt.Errorf("could not create timestamp workbook: %w", err)
	}
	ss.book = book
	return nil
}

// Camera describes the opened camera
func (ss *Session) Camera() camera.Info {
	return ss.info
}

// ImageFolder is where frames are written
func (ss *Session) ImageFolder() string {
	return filepath.Join(ss.Settings.ImageRoot, ss.Folder)
}

// WorkbookPath is where the timestamp workbook is saved
func (ss *Session) WorkbookPath() string {
	return filepath.Join(ss.Settings.TimestampRoot, ss.Folder+".xlsx")
}

// Close tears the session down in reverse order of acquisition: the display,
// the camera, the SDK, and last the workbook, which is only complete once
// saved.  Every step is attempted; the errors are joined.  Close is
// idempotent.
func (ss *Session) Close() error {
	var errs []error
	if ss.disp != nil {
		if err := ss.disp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing display: %w", err))
		}
		ss.disp = nil
	}
	if ss.cam != nil {
		if err := ss.cam.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing camera: %w", err))
		}
		ss.cam = nil
	}
	if ss.started {
		if err := ss.sys.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutting down camera API: %w", err))
		}
		ss.started = false
	}
	if ss.book != nil {
		if err := ss.book.Close(); err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", ss.book.Path(), err))
		} else {
			ss.log.WithFields(logrus.Fields{
				"path": ss.book.Path(),
				"rows": ss.book.Rows()}).Info("timestamps saved")
		}
		ss.book = nil
	}
	return errors.Join(errs...)
}
