//go:build !vimba

package vimba

import "github.jpl.nasa.gov/bdube/migcap/camera"

// System stands in for the Vimba API session when built without the vimba tag
type System struct{}

// NewSystem returns a System whose Startup always fails with ErrNotCompiled
func NewSystem() *System {
	return &System{}
}

// Startup satisfies camera.System
func (s *System) Startup() error {
	return ErrNotCompiled
}

// Shutdown satisfies camera.System
func (s *System) Shutdown() error {
	return camera.ErrNotStarted
}

// Cameras satisfies camera.System
func (s *System) Cameras() ([]camera.Info, error) {
	return nil, camera.ErrNotStarted
}

// Open satisfies camera.System
func (s *System) Open(id string) (camera.Device, error) {
	return nil, camera.ErrNotStarted
}
