/*Package camera describes a standard set of interfaces for control of
machine vision cameras through a vendor SDK.

A System is the SDK session.  It is started once, enumerates the attached
cameras, and opens one of them as a Device.  A Device exposes named features
and acquires one Frame at a time.  Nothing here is concurrent safe; a session
is owned by exactly one goroutine.
*/
package camera

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is generated when a frame is not filled before the
	// acquisition timeout elapses
	ErrTimeout = errors.New("timed out waiting for frame")

	// ErrNoCamera is generated when the SDK enumerates zero cameras
	ErrNoCamera = errors.New("no cameras found")

	// ErrNotStarted is generated when a System is used before Startup
	ErrNotStarted = errors.New("SDK session not started")

	// ErrFeatureNotFound is generated when a device does not expose a feature
	ErrFeatureNotFound = errors.New("feature not found")

	// ErrNoStream is generated when a device exposes no stream to acquire from
	ErrNoStream = errors.New("camera exposes no stream")
)

// Info identifies an attached camera as enumerated by the SDK
type Info struct {
	// ID is the SDK's identifier, used to open the camera
	ID string `json:"id"`

	// Name is the human friendly name of the camera
	Name string `json:"name"`

	// Model is the model string
	Model string `json:"model"`

	// Serial is the serial number
	Serial string `json:"serial"`
}

// System is an SDK session.  A process holds at most one.
type System interface {
	// Startup starts the SDK.  It must be called before anything else.
	Startup() error

	// Cameras lists the attached cameras
	Cameras() ([]Info, error)

	// Open opens the camera with the given ID with full (exclusive) access
	Open(id string) (Device, error)

	// Shutdown stops the SDK.  Devices opened from the System must be closed first.
	Shutdown() error
}

// Device is an opened camera
type Device interface {
	// Info returns the enumeration info of the camera
	Info() Info

	// OpenStream obtains the stream frames are acquired from
	OpenStream() error

	// GetFloat reads the current value of a numeric feature.  Every call
	// queries the device.
	GetFloat(feature string) (float64, error)

	// SetFloat writes a numeric feature
	SetFloat(feature string, value float64) error

	// AcquireSingleImage acquires one frame, waiting at most timeout for it
	// to be filled.  A timeout satisfies errors.Is(err, ErrTimeout).
	AcquireSingleImage(timeout time.Duration) (Frame, error)

	// Close closes the camera
	Close() error
}

// Frame is one acquired image and its metadata.  Each accessor is a separate
// query and may fail independently of the others.
type Frame interface {
	// Height is the number of rows in the image
	Height() (int, error)

	// Width is the number of columns in the image
	Width() (int, error)

	// Image is the 8-bit monochrome pixel buffer, row major, without padding
	Image() ([]byte, error)

	// Timestamp is the hardware timestamp from the device clock, in ns
	Timestamp() (uint64, error)
}
