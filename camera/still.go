package camera

import "fmt"

// Still is a Frame whose data has already been copied out of the SDK.
// The zero-valued error fields mean the matching accessor succeeds.
type Still struct {
	// Rows is the height of the image in pixels
	Rows int

	// Cols is the width of the image in pixels
	Cols int

	// Pix holds the pixel data, owned by Go
	Pix []byte

	// Stamp is the device timestamp in ns
	Stamp uint64

	// ID is the frame ID assigned by the device
	ID uint64

	// PixErr is returned by Image when not nil, e.g. for an incomplete frame
	PixErr error

	// StampErr is returned by Timestamp when not nil
	StampErr error
}

// Height satisfies Frame
func (s *Still) Height() (int, error) {
	if s.Rows <= 0 {
		return 0, fmt.Errorf("invalid frame height %d", s.Rows)
	}
	return s.Rows, nil
}

// Width satisfies Frame
func (s *Still) Width() (int, error) {
	if s.Cols <= 0 {
		return 0, fmt.Errorf("invalid frame width %d", s.Cols)
	}
	return s.Cols, nil
}

// Image satisfies Frame
func (s *Still) Image() ([]byte, error) {
	if s.PixErr != nil {
		return nil, s.PixErr
	}
	if len(s.Pix) == 0 {
		return nil, fmt.Errorf("frame %d has no image data", s.ID)
	}
	return s.Pix, nil
}

// Timestamp satisfies Frame
func (s *Still) Timestamp() (uint64, error) {
	return s.Stamp, s.StampErr
}
