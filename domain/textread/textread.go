// Package textread extracts text from frame regions. The default reader is a
// pure Go glyph-run scanner; a Tesseract-backed reader is available behind
// the "tesseract" build tag.
package textread

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/table-calib-go/config"
)

// Reader extracts human-readable text from a region of a frame.
type Reader interface {
	// Read returns the text found inside rect of img along with a
	// confidence in [0,1]. A featureless region yields "" and zero
	// confidence. Read never panics on odd rectangles; it clamps.
	Read(img *image.RGBA, rect image.Rectangle) (string, float64)
	// Close releases any native resources held by the reader.
	Close() error
}

// New builds the reader selected by cfg.TextReader.
func New(cfg *config.Config, logger *slog.Logger) (Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.TextReader {
	case "", "heuristic":
		return NewHeuristicReader(logger), nil
	case "tesseract":
		return newTesseractReader(cfg.TextLanguage, logger)
	default:
		return nil, fmt.Errorf("unknown text reader %q", cfg.TextReader)
	}
}

// clampRect confines rect to the bounds of img. The returned rectangle may
// be empty.
func clampRect(img *image.RGBA, rect image.Rectangle) image.Rectangle {
	if img == nil {
		return image.Rectangle{}
	}
	return rect.Canon().Intersect(img.Bounds())
}
