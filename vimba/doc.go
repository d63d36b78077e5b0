/*Package vimba exposes control of Allied Vision cameras in Go via the Vimba X
C API (VmbC).

Build with -tags vimba and the SDK installed under /opt/VimbaX.  Without the tag
the package compiles to a stub whose Startup returns ErrNotCompiled.

Only the single-frame acquisition path is wrapped; one frame buffer is
announced per camera and requeued for every acquisition.
*/
package vimba
