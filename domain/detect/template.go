package detect

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/soocke/table-calib-go/config"
)

// TemplateScorer scores card crops against a reference card patch using
// multi-scale normalized cross-correlation.
type TemplateScorer struct {
	search *scaleSearch
	logger *slog.Logger
}

// NewTemplateScorer loads the reference patch named by the config. An empty
// path yields (nil, nil); a nil scorer is valid, scores zero, and callers
// fall back to geometry scoring.
func NewTemplateScorer(cfg *config.Config, logger *slog.Logger) (*TemplateScorer, error) {
	if cfg.CardTemplatePath == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	img, err := imaging.Open(cfg.CardTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("open card template: %w", err)
	}
	base := newPatchPlane(img)
	if base == nil {
		return nil, errors.New("card template is degenerate")
	}
	logger.Info("card template loaded",
		slog.String("path", cfg.CardTemplatePath),
		slog.Int("width", base.w),
		slog.Int("height", base.h))
	return &TemplateScorer{search: newScaleSearch(base, cfg), logger: logger}, nil
}

// Score returns the best correlation of the reference patch anywhere inside
// img, clamped to [0,1]. Nil scorers and degenerate frames score zero.
func (t *TemplateScorer) Score(img *image.RGBA) float64 {
	if t == nil || img == nil || img.Bounds().Empty() {
		return 0
	}
	res := t.search.run(img)
	if res.score < 0 {
		return 0
	}
	return ClampConfidence(res.score)
}
