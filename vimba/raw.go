//go:build vimba

package vimba

/*
#cgo CFLAGS: -I/opt/VimbaX/api/include
#cgo LDFLAGS: -L/opt/VimbaX/api/lib -Wl,-rpath=/opt/VimbaX/api/lib -lVmbC
#include <stdlib.h>
#include <VmbC/VmbC.h>
*/
import "C"
import (
	"errors"
	"unsafe"
)

// status converts a VmbError_t to a Go error
func status(code C.VmbError_t) error {
	return Error(int(code))
}

// Startup calls VmbStartup with the default transport layer search path
func Startup() error {
	return enrich(status(C.VmbStartup(nil)), "VmbStartup")
}

// Shutdown calls VmbShutdown
func Shutdown() {
	C.VmbShutdown()
}

// getFloat reads a float feature.  Integer features are read as a fallback,
// since some cameras expose e.g. Gain or BlackLevel as integers.
func getFloat(handle C.VmbHandle_t, feature string) (float64, error) {
	cstr := C.CString(feature)
	defer C.free(unsafe.Pointer(cstr))

	var out C.double
	err := status(C.VmbFeatureFloatGet(handle, cstr, &out))
	if err == nil {
		return float64(out), nil
	}
	var verr VmbError
	if !errors.As(err, &verr) || verr != codeWrongType {
		return 0, enrich(err, feature)
	}
	var i C.VmbInt64_t
	err = status(C.VmbFeatureIntGet(handle, cstr, &i))
	return float64(i), enrich(err, feature)
}

// setFloat writes a float feature, falling back to an integer write the same
// way getFloat falls back to an integer read
func setFloat(handle C.VmbHandle_t, feature string, value float64) error {
	cstr := C.CString(feature)
	defer C.free(unsafe.Pointer(cstr))

	err := status(C.VmbFeatureFloatSet(handle, cstr, C.double(value)))
	if err == nil {
		return nil
	}
	var verr VmbError
	if !errors.As(err, &verr) || verr != codeWrongType {
		return enrich(err, feature)
	}
	return enrich(status(C.VmbFeatureIntSet(handle, cstr, C.VmbInt64_t(value))), feature)
}

// issueCommand runs a command feature
func issueCommand(handle C.VmbHandle_t, feature string) error {
	cstr := C.CString(feature)
	defer C.free(unsafe.Pointer(cstr))
	return enrich(status(C.VmbFeatureCommandRun(handle, cstr)), feature)
}

// payloadSize returns the size of one frame buffer in bytes
func payloadSize(handle C.VmbHandle_t) (int, error) {
	var size C.VmbUint32_t
	err := status(C.VmbPayloadSizeGet(handle, &size))
	return int(size), enrich(err, "VmbPayloadSizeGet")
}
