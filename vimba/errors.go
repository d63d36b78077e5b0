package vimba

import (
	"errors"
	"fmt"

	"github.jpl.nasa.gov/bdube/migcap/camera"
)

var (
	// ErrNotCompiled is generated when the binary was built without the vimba
	// build tag and therefore cannot talk to the SDK
	ErrNotCompiled = errors.New("migcap was built without Vimba support, rebuild with -tags vimba")

	// ErrCodes is a map of VmbError_t codes to their names in VmbCommonTypes.h
	ErrCodes = map[VmbError]string{
		0:   "VmbErrorSuccess",
		-1:  "VmbErrorInternalFault",
		-2:  "VmbErrorApiNotStarted",
		-3:  "VmbErrorNotFound",
		-4:  "VmbErrorBadHandle",
		-5:  "VmbErrorDeviceNotOpen",
		-6:  "VmbErrorInvalidAccess",
		-7:  "VmbErrorBadParameter",
		-8:  "VmbErrorStructSize",
		-9:  "VmbErrorMoreData",
		-10: "VmbErrorWrongType",
		-11: "VmbErrorInvalidValue",
		-12: "VmbErrorTimeout",
		-13: "VmbErrorOther",
		-14: "VmbErrorResources",
		-15: "VmbErrorInvalidCall",
		-16: "VmbErrorNoTL",
		-17: "VmbErrorNotImplemented",
		-18: "VmbErrorNotSupported",
		-19: "VmbErrorIncomplete",
		-20: "VmbErrorIO",
		-21: "VmbErrorValidValueSetNotPresent",
		-22: "VmbErrorGenTLUnspecified",
		-23: "VmbErrorUnspecified",
		-24: "VmbErrorBusy",
		-25: "VmbErrorNoData",
		-26: "VmbErrorParsingChunkData",
		-27: "VmbErrorInUse",
		-28: "VmbErrorUnknown",
		-29: "VmbErrorXml",
		-30: "VmbErrorNotAvailable",
		-31: "VmbErrorNotInitialized",
		-32: "VmbErrorInvalidAddress",
		-33: "VmbErrorAlreadyFound",
		-34: "VmbErrorNoChunkData",
		-35: "VmbErrorUserCallbackException",
		-36: "VmbErrorFeaturesUnavailable",
		-37: "VmbErrorTLNotFound",
		-39: "VmbErrorAmbiguous",
		-40: "VmbErrorRetriesExceeded",
		-41: "VmbErrorInsufficientBufferCount",
	}

	// FrameStatus maps VmbFrameStatus_t values to their names
	FrameStatus = map[int]string{
		0:  "VmbFrameStatusComplete",
		-1: "VmbFrameStatusIncomplete",
		-2: "VmbFrameStatusTooSmall",
		-3: "VmbFrameStatusInvalid",
	}
)

const (
	codeNotStarted = -2
	codeNotFound   = -3
	codeWrongType  = -10
	codeTimeout    = -12
)

// VmbError is a status code returned by the Vimba C API
type VmbError int

func (e VmbError) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", int(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", int(e))
}

// Is lets SDK codes match the sentinels of package camera
func (e VmbError) Is(target error) bool {
	switch e {
	case codeTimeout:
		return target == camera.ErrTimeout
	case codeNotStarted:
		return target == camera.ErrNotStarted
	case codeNotFound:
		return target == camera.ErrFeatureNotFound
	}
	return false
}

// Error returns nil on VmbErrorSuccess or returns an error object on any other code
func Error(code int) error {
	if code == 0 {
		return nil
	}
	return VmbError(code)
}

// enrich prefixes an SDK error with the call that produced it
func enrich(err error, call string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", call, err)
}

// FrameError is generated when a frame is returned by the SDK but not complete
type FrameError struct {
	// ID is the device frame ID
	ID uint64

	// Status is the VmbFrameStatus_t
	Status int
}

func (e FrameError) Error() string {
	s, ok := FrameStatus[e.Status]
	if !ok {
		s = "unknown frame status"
	}
	return fmt.Sprintf("frame %d not complete: %d - %s", e.ID, e.Status, s)
}
