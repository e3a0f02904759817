//go:build tesseract

package textread

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// tesseractReader runs real OCR through the native Tesseract bindings. Each
// Read uses its own client, so the reader is safe for concurrent use.
type tesseractReader struct {
	language string
	logger   *slog.Logger
}

func newTesseractReader(language string, logger *slog.Logger) (Reader, error) {
	if language == "" {
		language = "eng"
	}
	probe := gosseract.NewClient()
	version := probe.Version()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("tesseract probe: %w", err)
	}
	logger.Info("tesseract reader ready", slog.String("version", version), slog.String("language", language))
	return &tesseractReader{language: language, logger: logger}, nil
}

func (t *tesseractReader) Read(img *image.RGBA, rect image.Rectangle) (string, float64) {
	r := clampRect(img, rect)
	if r.Dx() < minReadWidth || r.Dy() < minReadHeight {
		return "", 0
	}
	cropped := imaging.Crop(img, r)

	// Tesseract wants a file path.
	tmp, err := os.CreateTemp("", "textread-*.png")
	if err != nil {
		t.logger.Error("textread temp file", slog.Any("error", err))
		return "", 0
	}
	path := tmp.Name()
	defer os.Remove(path)
	if err := imaging.Encode(tmp, cropped, imaging.PNG); err != nil {
		tmp.Close()
		t.logger.Error("textread encode", slog.Any("error", err))
		return "", 0
	}
	if err := tmp.Close(); err != nil {
		return "", 0
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.language); err != nil {
		t.logger.Error("textread set language", slog.Any("error", err))
		return "", 0
	}
	if err := client.SetImage(path); err != nil {
		t.logger.Error("textread set image", slog.Any("error", err))
		return "", 0
	}
	text, err := client.Text()
	if err != nil {
		t.logger.Error("textread ocr", slog.Any("error", err))
		return "", 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0
	}

	// Word confidences average into the region confidence; when boxes are
	// unavailable the text alone is still useful at a conservative score.
	conf := 0.5
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		total := 0.0
		n := 0
		for _, box := range boxes {
			if box.Word == "" {
				continue
			}
			total += float64(box.Confidence) / 100.0
			n++
		}
		if n > 0 {
			conf = total / float64(n)
		}
	}
	if conf > 1 {
		conf = 1
	}
	return text, conf
}

func (t *tesseractReader) Close() error { return nil }
