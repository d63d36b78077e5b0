/*Package sim provides a simulated camera SDK.

It satisfies camera.System and camera.Device without hardware, produces a
deterministic moving gradient, and can be scripted to fail at any step of
bootstrap or on any acquisition attempt.  It is used for offline dry runs of
migcap and throughout the tests.
*/
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/migcap/camera"
)

var (
	// DefaultFeatures are the features every simulated camera starts with
	DefaultFeatures = map[string]float64{
		"ExposureTimeAbs":           15000,
		"Gain":                      4,
		"BlackLevel":                4,
		"Gamma":                     1,
		"AcquisitionFrameRateAbs":   30,
		"AcquisitionFrameRateLimit": 61.3,
	}

	// ReadOnly features reject SetFloat
	ReadOnly = map[string]bool{
		"AcquisitionFrameRateLimit": true,
	}
)

// Fault scripts a failure for a single acquisition attempt
type Fault struct {
	// Acquire fails AcquireSingleImage itself, e.g. with camera.ErrTimeout
	Acquire error

	// Image makes the frame's Image accessor fail
	Image error

	// Timestamp makes the frame's Timestamp accessor fail
	Timestamp error

	// Short truncates the pixel buffer to half its length
	Short bool
}

// System is a simulated SDK session.  The zero value has no cameras.
type System struct {
	sync.Mutex

	// NCameras is the number of cameras enumerated
	NCameras int

	// Width and Height are the frame dimensions
	Width, Height int

	// Period is how far the device clock advances per frame
	Period time.Duration

	// Faults is keyed by acquisition attempt, starting at 1
	Faults map[int]Fault

	// Missing lists features the cameras do not expose
	Missing []string

	// StartupErr, OpenErr and StreamErr fail the matching bootstrap step
	StartupErr, OpenErr, StreamErr error

	started   bool
	shutdowns int
	cams      []*Camera
}

// New returns a System with one camera producing frames of the given size
func New(width, height int) *System {
	return &System{
		NCameras: 1,
		Width:    width,
		Height:   height,
		Period:   time.Second / 30,
		Faults:   map[int]Fault{}}
}

// Startup satisfies camera.System
func (s *System) Startup() error {
	s.Lock()
	defer s.Unlock()
	if s.StartupErr != nil {
		return s.StartupErr
	}
	s.started = true
	return nil
}

// Shutdown satisfies camera.System
func (s *System) Shutdown() error {
	s.Lock()
	defer s.Unlock()
	if !s.started {
		return camera.ErrNotStarted
	}
	s.started = false
	s.shutdowns++
	return nil
}

// Started reports if the session is currently started
func (s *System) Started() bool {
	s.Lock()
	defer s.Unlock()
	return s.started
}

// Shutdowns is the number of successful Shutdown calls
func (s *System) Shutdowns() int {
	s.Lock()
	defer s.Unlock()
	return s.shutdowns
}

// Opened returns every camera opened from this System, in order
func (s *System) Opened() []*Camera {
	s.Lock()
	defer s.Unlock()
	return append([]*Camera{}, s.cams...)
}

// Cameras satisfies camera.System
func (s *System) Cameras() ([]camera.Info, error) {
	s.Lock()
	defer s.Unlock()
	if !s.started {
		return nil, camera.ErrNotStarted
	}
	out := make([]camera.Info, s.NCameras)
	for i := range out {
		out[i] = camera.Info{
			ID:     fmt.Sprintf("SIM-%02d", i),
			Name:   "Simulated Camera",
			Model:  "SIM-GIGE-8",
			Serial: fmt.Sprintf("000000%02d", i)}
	}
	return out, nil
}

// Open satisfies camera.System
func (s *System) Open(id string) (camera.Device, error) {
	cams, err := s.Cameras()
	if err != nil {
		return nil, err
	}
	s.Lock()
	defer s.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	for _, info := range cams {
		if info.ID != id {
			continue
		}
		c := &Camera{sys: s, info: info, features: make(map[string]float64)}
		for k, v := range DefaultFeatures {
			c.features[k] = v
		}
		for _, k := range s.Missing {
			delete(c.features, k)
		}
		s.cams = append(s.cams, c)
		return c, nil
	}
	return nil, fmt.Errorf("camera %s: %w", id, camera.ErrNoCamera)
}

// Camera is a simulated device
type Camera struct {
	sync.Mutex
	sys      *System
	info     camera.Info
	features map[string]float64
	streamed bool
	closed   bool
	attempts int
	frames   uint64
	clock    uint64
}

// Info satisfies camera.Device
func (c *Camera) Info() camera.Info {
	return c.info
}

// OpenStream satisfies camera.Device
func (c *Camera) OpenStream() error {
	c.Lock()
	defer c.Unlock()
	if c.sys.StreamErr != nil {
		return c.sys.StreamErr
	}
	c.streamed = true
	return nil
}

// GetFloat satisfies camera.Device
func (c *Camera) GetFloat(feature string) (float64, error) {
	c.Lock()
	defer c.Unlock()
	v, ok := c.features[feature]
	if !ok {
		return 0, fmt.Errorf("%s: %w", feature, camera.ErrFeatureNotFound)
	}
	return v, nil
}

// SetFloat satisfies camera.Device
func (c *Camera) SetFloat(feature string, value float64) error {
	c.Lock()
	defer c.Unlock()
	if _, ok := c.features[feature]; !ok {
		return fmt.Errorf("%s: %w", feature, camera.ErrFeatureNotFound)
	}
	if ReadOnly[feature] {
		return fmt.Errorf("%s is read only", feature)
	}
	c.features[feature] = value
	return nil
}

// Attempts is the number of AcquireSingleImage calls so far
func (c *Camera) Attempts() int {
	c.Lock()
	defer c.Unlock()
	return c.attempts
}

// Closed reports if Close was called
func (c *Camera) Closed() bool {
	c.Lock()
	defer c.Unlock()
	return c.closed
}

// AcquireSingleImage satisfies camera.Device.  It never blocks; the device
// clock advances by Period per attempt whether or not the attempt succeeds.
func (c *Camera) AcquireSingleImage(timeout time.Duration) (camera.Frame, error) {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return nil, fmt.Errorf("camera %s is closed", c.info.ID)
	}
	if !c.streamed {
		return nil, camera.ErrNoStream
	}
	c.attempts++
	c.clock += uint64(c.sys.Period.Nanoseconds())
	fault := c.sys.Faults[c.attempts]
	if fault.Acquire != nil {
		return nil, fault.Acquire
	}
	w, h := c.sys.Width, c.sys.Height
	pix := Gradient(w, h, int(c.frames))
	if fault.Short {
		pix = pix[:len(pix)/2]
	}
	c.frames++
	return &camera.Still{
		Rows:     h,
		Cols:     w,
		Pix:      pix,
		Stamp:    c.clock,
		ID:       c.frames,
		PixErr:   fault.Image,
		StampErr: fault.Timestamp}, nil
}

// Close satisfies camera.Device
func (c *Camera) Close() error {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		return fmt.Errorf("camera %s already closed", c.info.ID)
	}
	c.closed = true
	return nil
}

// Gradient renders a diagonal ramp shifted by 4 gray levels per frame
func Gradient(width, height, frame int) []byte {
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*width+x] = byte(x + y + 4*frame)
		}
	}
	return pix
}
