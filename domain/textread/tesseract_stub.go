//go:build !tesseract

package textread

import (
	"errors"
	"log/slog"
)

// Builds without the tesseract tag have no native OCR; selecting it is a
// configuration error rather than a silent fallback.
func newTesseractReader(language string, logger *slog.Logger) (Reader, error) {
	_ = language
	_ = logger
	return nil, errors.New("binary built without tesseract support")
}
