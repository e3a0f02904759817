package detect

import (
	"image"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/soocke/table-calib-go/domain/textread"
)

// Confidence proxies per kind. Text carrying kinds scale with how much text
// the reader finds; kinds without a model fall back to local contrast.
const (
	textScoreFloor  = 0.1
	textScoreCap    = 0.9
	textLenDivisor  = 10.0
	detailCap       = 0.8
	detailDivisor   = 50.0
	cardBrightFloor = 96.0
	cardRingIdeal   = 0.25
	cardRingWidth   = 3
)

// RegionScorer produces a fresh confidence estimate for a region crop. Cards
// prefer the template scorer when one is loaded and fall back to geometry;
// text carrying kinds go through the reader.
type RegionScorer struct {
	reader   textread.Reader
	template *TemplateScorer
	logger   *slog.Logger
}

// NewRegionScorer wires a reader and an optional template scorer together.
func NewRegionScorer(reader textread.Reader, template *TemplateScorer, logger *slog.Logger) *RegionScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegionScorer{reader: reader, template: template, logger: logger}
}

// Score estimates how well the crop still matches its kind. It never panics
// and always returns a value in [0,1].
func (s *RegionScorer) Score(img *image.RGBA, kind Kind) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("region scorer panicked",
				slog.String("kind", string(kind)),
				slog.Any("recover", r),
				slog.String("stack", string(debug.Stack())))
			score = 0
		}
	}()
	if img == nil || img.Bounds().Empty() {
		return 0
	}
	switch kind {
	case KindCard:
		if s.template != nil {
			return s.template.Score(img)
		}
		return cardLikeness(img)
	case KindText, KindButton, KindPot:
		if s.reader == nil {
			return 0
		}
		text, _ := s.reader.Read(img, img.Bounds())
		n := len(strings.TrimSpace(text))
		if n == 0 {
			return textScoreFloor
		}
		v := float64(n) / textLenDivisor
		if v > textScoreCap {
			v = textScoreCap
		}
		return v
	default:
		return detailScore(img)
	}
}

// cardLikeness is the fallback card model: a bright interior framed by a
// strong edge ring reads as a face-up card.
func cardLikeness(img *image.RGBA) float64 {
	b := img.Bounds()
	if b.Dx() < 8 || b.Dy() < 8 {
		return 0
	}
	inset := b.Dx() / 5
	if v := b.Dy() / 5; v < inset {
		inset = v
	}
	inner, ok := img.SubImage(b.Inset(inset)).(*image.RGBA)
	if !ok || inner.Bounds().Empty() {
		return 0
	}
	mean, _ := lumaStats(inner)
	bright := (mean - cardBrightFloor) / (255 - cardBrightFloor)
	if bright < 0 {
		bright = 0
	}
	if bright > 1 {
		bright = 1
	}
	ring := ringDensity(binaryEdges(img, sobelLevel), cardRingWidth) / cardRingIdeal
	if ring > 1 {
		ring = 1
	}
	return ClampConfidence(0.6*bright + 0.4*ring)
}

// detailScore maps local contrast to confidence for kinds without a
// dedicated model.
func detailScore(img *image.RGBA) float64 {
	_, std := lumaStats(img)
	v := std / detailDivisor
	if v > detailCap {
		v = detailCap
	}
	return ClampConfidence(v)
}

// ringDensity is the fraction of set pixels inside the outer band of the
// mask.
func ringDensity(mask *image.Gray, width int) float64 {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 2*width || h <= 2*width {
		return 0
	}
	on, total := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= width && x < w-width && y >= width && y < h-width {
				continue
			}
			total++
			if maskOn(mask, b.Min.X+x, b.Min.Y+y) {
				on++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(on) / float64(total)
}
