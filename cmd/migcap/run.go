package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/theckman/yacspin"
	"github.com/urfave/cli"

	"github.jpl.nasa.gov/bdube/migcap/acquire"
	"github.jpl.nasa.gov/bdube/migcap/camera"
	"github.jpl.nasa.gov/bdube/migcap/display"
	"github.jpl.nasa.gov/bdube/migcap/logger"
	"github.jpl.nasa.gov/bdube/migcap/monitor"
	"github.jpl.nasa.gov/bdube/migcap/sim"
	"github.jpl.nasa.gov/bdube/migcap/usbprobe"
	"github.jpl.nasa.gov/bdube/migcap/vimba"
)

func newSystem(cfg config, useSim bool) (camera.System, error) {
	sdk := cfg.SDK
	if useSim {
		sdk = "sim"
	}
	switch sdk {
	case "vimba":
		return vimba.NewSystem(), nil
	case "sim":
		sys := sim.New(cfg.Sim.Width, cfg.Sim.Height)
		sys.NCameras = cfg.Sim.Cameras
		return sys, nil
	default:
		return nil, fmt.Errorf("unknown SDK %q, expected vimba or sim", sdk)
	}
}

// spinWriter pauses the spinner around every log line
type spinWriter struct {
	spin *yacspin.Spinner
	w    io.Writer
}

func (s spinWriter) Write(b []byte) (int, error) {
	s.spin.Pause()
	defer s.spin.Unpause()
	return s.w.Write(b)
}

func newSpinner(msg string) (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Writer:            os.Stderr,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Message:           msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"}})
}

// counter renders persisted frames on a progress bar
type counter struct {
	bar *progressbar.ProgressBar
	log logrus.FieldLogger
}

func newCounter(max int, log logrus.FieldLogger) counter {
	if max == 0 {
		max = -1
	}
	return counter{bar: progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		})),
		log: log}
}

func (c counter) Persisted(acquire.Record) {
	if err := c.bar.Add(1); err != nil {
		c.log.WithError(err).Debug("could not render frame counter")
	}
}

func (c counter) Failed(stage string, err error) {}

func (c counter) Finish() {
	if err := c.bar.Finish(); err != nil {
		c.log.WithError(err).Debug("could not finish frame counter")
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log := logger.New(os.Stderr, cfg.LogLevel)
	s, err := cfg.settings()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	sys, err := newSystem(cfg, c.Bool("sim"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	spin, err := newSpinner("starting camera")
	if err == nil {
		log.SetOutput(spinWriter{spin: spin, w: os.Stderr})
		if err := spin.Start(); err != nil {
			log.SetOutput(os.Stderr)
			log.WithError(err).Debug("could not start spinner")
			spin = nil
		}
	} else {
		log.WithError(err).Debug("could not create spinner")
		spin = nil
	}
	ss, err := acquire.Open(sys, s, log)
	if spin != nil {
		var serr error
		if err != nil {
			serr = spin.StopFail()
		} else {
			serr = spin.Stop()
		}
		log.SetOutput(os.Stderr)
		if serr != nil {
			log.WithError(serr).Debug("could not stop spinner")
		}
	}
	if err != nil {
		log.WithError(err).Error("could not start acquisition")
		return cli.NewExitError(err, 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.Addr != "" {
		m := monitor.New(ss, log)
		ss.Observers = append(ss.Observers, m)
		go func() {
			if err := m.ListenAndServe(ctx, cfg.Monitor.Addr); err != nil {
				log.WithError(err).Error("monitor stopped")
			}
		}()
	}

	var disp acquire.Display
	if cfg.Display && !c.Bool("headless") {
		disp = display.NewWindow(cfg.WindowTitle)
	} else {
		cnt := newCounter(s.MaxFrames, log)
		ss.Observers = append(ss.Observers, cnt)
		defer cnt.Finish()
	}

	n := ss.Run(ctx, disp)
	err = ss.Close()
	log.WithFields(logrus.Fields{"frames": n, "folder": ss.ImageFolder()}).Info("acquisition finished")
	if err != nil {
		log.WithError(err).Error("teardown failed")
		return cli.NewExitError(err, 1)
	}
	return nil
}

func devices(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogLevel)
	sys, err := newSystem(cfg, c.Bool("sim"))
	if err != nil {
		return err
	}
	if err = sys.Startup(); err != nil {
		log.WithError(err).Warn("could not start the camera API")
	} else {
		cams, err := sys.Cameras()
		if err != nil {
			log.WithError(err).Warn("could not list cameras")
		}
		for _, ci := range cams {
			fmt.Printf("sdk  %s %s %s %s\n", ci.ID, ci.Model, ci.Serial, ci.Name)
		}
		sys.Shutdown()
	}

	devs, err := usbprobe.List(usbprobe.VendorAlliedVision)
	if err != nil {
		log.WithError(err).Warn("could not walk the USB bus")
	}
	for _, d := range devs {
		fmt.Printf("usb  %s\n", d)
	}
	return nil
}
