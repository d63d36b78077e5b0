//go:build vimba

package vimba

/*
#include <stdlib.h>
#include <string.h>
#include <VmbC/VmbC.h>
*/
import "C"
import (
	"fmt"
	"time"
	"unsafe"

	"github.jpl.nasa.gov/bdube/migcap/camera"
)

const (
	// WRAPVER is the vimba wrapper code version.
	// Incremement this when pkg vimba is updated.
	WRAPVER = 1

	// PixelFormatMono8 is VmbPixelFormatMono8, the only format this wrapper decodes
	PixelFormatMono8 = 0x01080001
)

// System is the Vimba API session
type System struct {
	started bool
}

// NewSystem returns an unstarted System
func NewSystem() *System {
	return &System{}
}

// Startup starts the API
func (s *System) Startup() error {
	err := Startup()
	if err == nil {
		s.started = true
	}
	return err
}

// Shutdown stops the API
func (s *System) Shutdown() error {
	if !s.started {
		return camera.ErrNotStarted
	}
	Shutdown()
	s.started = false
	return nil
}

// Cameras lists the cameras known to the transport layers
func (s *System) Cameras() ([]camera.Info, error) {
	if !s.started {
		return nil, camera.ErrNotStarted
	}
	var n C.VmbUint32_t
	err := status(C.VmbCamerasList(nil, 0, &n, C.VmbUint32_t(C.sizeof_VmbCameraInfo_t)))
	if err != nil {
		return nil, enrich(err, "VmbCamerasList")
	}
	if n == 0 {
		return []camera.Info{}, nil
	}
	list := make([]C.VmbCameraInfo_t, int(n))
	var found C.VmbUint32_t
	err = status(C.VmbCamerasList(&list[0], n, &found, C.VmbUint32_t(C.sizeof_VmbCameraInfo_t)))
	if err != nil {
		return nil, enrich(err, "VmbCamerasList")
	}
	out := make([]camera.Info, 0, int(found))
	for i := 0; i < int(found) && i < len(list); i++ {
		out = append(out, infoFromC(&list[i]))
	}
	return out, nil
}

// Open opens a camera with full access
func (s *System) Open(id string) (camera.Device, error) {
	if !s.started {
		return nil, camera.ErrNotStarted
	}
	cstr := C.CString(id)
	defer C.free(unsafe.Pointer(cstr))
	c := &Camera{}
	err := status(C.VmbCameraOpen(cstr, C.VmbAccessMode_t(C.VmbAccessModeFull), &c.handle))
	if err != nil {
		return nil, enrich(err, "VmbCameraOpen")
	}
	var info C.VmbCameraInfo_t
	err = status(C.VmbCameraInfoQueryByHandle(c.handle, &info, C.VmbUint32_t(C.sizeof_VmbCameraInfo_t)))
	if err != nil {
		C.VmbCameraClose(c.handle)
		return nil, enrich(err, "VmbCameraInfoQueryByHandle")
	}
	c.info = infoFromC(&info)
	if info.streamCount > 0 && info.streamHandles != nil {
		c.stream = *info.streamHandles
		c.nstreams = int(info.streamCount)
	}
	return c, nil
}

func infoFromC(ci *C.VmbCameraInfo_t) camera.Info {
	return camera.Info{
		ID:     C.GoString(ci.cameraIdString),
		Name:   C.GoString(ci.cameraName),
		Model:  C.GoString(ci.modelName),
		Serial: C.GoString(ci.serialString),
	}
}

// Camera is an opened Vimba camera
type Camera struct {
	// handle is the remote device handle, features are read and written here
	handle C.VmbHandle_t

	// stream is the first stream of the camera, frames are announced here
	stream C.VmbHandle_t

	nstreams int

	info camera.Info

	// frame and its buffer live in C memory since the SDK retains them
	// between queue and wait
	frame *C.VmbFrame_t

	// announced is true once frame is known to the stream
	announced bool
}

// Info returns the enumeration info of the camera
func (c *Camera) Info() camera.Info {
	return c.info
}

// OpenStream makes sure the camera has a stream to acquire from
func (c *Camera) OpenStream() error {
	if c.nstreams == 0 || c.stream == nil {
		return camera.ErrNoStream
	}
	return nil
}

// GetFloat reads a numeric feature from the remote device
func (c *Camera) GetFloat(feature string) (float64, error) {
	return getFloat(c.handle, feature)
}

// SetFloat writes a numeric feature on the remote device
func (c *Camera) SetFloat(feature string, value float64) error {
	return setFloat(c.handle, feature, value)
}

// allocate (re)creates the frame buffer if the payload size changed
func (c *Camera) allocate() error {
	size, err := payloadSize(c.stream)
	if err != nil {
		return err
	}
	if c.frame != nil && int(c.frame.bufferSize) == size {
		return nil
	}
	c.free()
	c.frame = (*C.VmbFrame_t)(C.calloc(1, C.size_t(C.sizeof_VmbFrame_t)))
	c.frame.buffer = C.malloc(C.size_t(size))
	c.frame.bufferSize = C.VmbUint32_t(size)
	err = status(C.VmbFrameAnnounce(c.stream, c.frame, C.VmbUint32_t(C.sizeof_VmbFrame_t)))
	if err != nil {
		c.free()
		return enrich(err, "VmbFrameAnnounce")
	}
	c.announced = true
	return nil
}

func (c *Camera) free() {
	if c.announced {
		C.VmbFrameRevokeAll(c.stream)
		c.announced = false
	}
	if c.frame != nil {
		C.free(c.frame.buffer)
		C.free(unsafe.Pointer(c.frame))
		c.frame = nil
	}
}

// AcquireSingleImage queues the frame buffer, starts acquisition, waits for
// the buffer to be filled and stops acquisition again.  The pixel data is
// copied into Go memory before returning, so the Frame stays valid after the
// next acquisition.
func (c *Camera) AcquireSingleImage(timeout time.Duration) (camera.Frame, error) {
	if err := c.OpenStream(); err != nil {
		return nil, err
	}
	if err := c.allocate(); err != nil {
		return nil, err
	}
	err := status(C.VmbCaptureStart(c.stream))
	if err != nil {
		return nil, enrich(err, "VmbCaptureStart")
	}
	defer func() {
		C.VmbCaptureEnd(c.stream)
		C.VmbCaptureQueueFlush(c.stream)
	}()

	err = status(C.VmbCaptureFrameQueue(c.stream, c.frame, nil))
	if err != nil {
		return nil, enrich(err, "VmbCaptureFrameQueue")
	}
	err = issueCommand(c.handle, "AcquisitionStart")
	if err != nil {
		return nil, err
	}
	tout := C.VmbUint32_t(timeout.Milliseconds())
	waitErr := status(C.VmbCaptureFrameWait(c.stream, c.frame, tout))
	issueCommand(c.handle, "AcquisitionStop") // gobble any errors from this
	if waitErr != nil {
		return nil, enrich(waitErr, "VmbCaptureFrameWait")
	}
	return c.still(), nil
}

// still copies the filled frame out of C memory.  Incomplete frames and
// unsupported pixel formats are reported through the Frame's Image method,
// so the caller can still see the dimensions and timestamp.
func (c *Camera) still() *camera.Still {
	f := c.frame
	s := &camera.Still{
		Rows:  int(f.height),
		Cols:  int(f.width),
		Stamp: uint64(f.timestamp),
		ID:    uint64(f.frameID),
	}
	if int(f.receiveStatus) != int(C.VmbFrameStatusComplete) {
		s.PixErr = FrameError{ID: s.ID, Status: int(f.receiveStatus)}
		return s
	}
	if uint32(f.pixelFormat) != PixelFormatMono8 {
		s.PixErr = fmt.Errorf("unsupported pixel format 0x%08x, only Mono8 is supported", uint32(f.pixelFormat))
		return s
	}
	n := s.Rows * s.Cols
	if n <= 0 || n > int(f.bufferSize) {
		s.PixErr = fmt.Errorf("frame %d: %dx%d does not fit in a %d byte buffer", s.ID, s.Cols, s.Rows, int(f.bufferSize))
		return s
	}
	src := unsafe.Pointer(f.imageData)
	if src == nil {
		src = f.buffer
	}
	s.Pix = C.GoBytes(src, C.int(n))
	return s
}

// Close revokes the frame buffer and closes the camera
func (c *Camera) Close() error {
	c.free()
	return enrich(status(C.VmbCameraClose(c.handle)), "VmbCameraClose")
}
