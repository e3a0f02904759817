//go:build !windows

package frame

import (
	"image"

	"github.com/vova616/screenshot"
)

// grab captures rect (or the full screen when rect is nil) and returns a
// newly allocated RGBA image.
func grab(rect *image.Rectangle) (*image.RGBA, error) {
	if rect != nil {
		return screenshot.CaptureRect(*rect)
	}
	return screenshot.CaptureScreen()
}
