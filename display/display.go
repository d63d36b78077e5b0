// Package display shows frames in a live window and polls the keyboard.
package display

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Window is an OpenCV HighGUI window
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window with the given title
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show draws img in the window.  The image is copied.
func (w *Window) Show(img *image.Gray) error {
	b := img.Bounds()
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC1, img.Pix[:b.Dx()*b.Dy()])
	if err != nil {
		return fmt.Errorf("converting frame for display: %w", err)
	}
	defer mat.Close()
	w.win.IMShow(mat)
	return nil
}

// WaitKey pumps the window's event loop for up to ms milliseconds and
// returns the code of the key pressed, or -1
func (w *Window) WaitKey(ms int) int {
	return w.win.WaitKey(ms)
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}
