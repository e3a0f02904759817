package detect

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/soocke/table-calib-go/config"
)

type fakeReader struct {
	text string
	conf float64
}

func (f fakeReader) Read(*image.RGBA, image.Rectangle) (string, float64) {
	return f.text, f.conf
}

func (fakeReader) Close() error { return nil }

type panicReader struct{}

func (panicReader) Read(*image.RGBA, image.Rectangle) (string, float64) {
	panic("reader exploded")
}

func (panicReader) Close() error { return nil }

func TestRegionScorerTextLengthProxy(t *testing.T) {
	img := solidImage(60, 24, cardWhite)
	cases := []struct {
		name string
		text string
		kind Kind
		want float64
	}{
		{"keyword button", "FOLD", KindButton, 0.4},
		{"long pot label", "POT $123,456", KindPot, 0.9},
		{"empty read", "", KindText, textScoreFloor},
		{"whitespace read", "   ", KindText, textScoreFloor},
	}
	for _, tc := range cases {
		s := NewRegionScorer(fakeReader{text: tc.text, conf: 0.8}, nil, discardLogger())
		if got := s.Score(img, tc.kind); got != tc.want {
			t.Errorf("%s: score = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRegionScorerCardGeometryFallback(t *testing.T) {
	s := NewRegionScorer(fakeReader{}, nil, discardLogger())

	// A bright interior with a dark border scores like a card.
	card := solidImage(60, 84, color.RGBA{R: 30, G: 30, B: 30, A: 0xFF})
	fillRect(card, image.Rect(3, 3, 57, 81), cardWhite)
	if got := s.Score(card, KindCard); got < 0.5 {
		t.Fatalf("card-like crop score = %v, want >= 0.5", got)
	}

	// A flat dark crop does not.
	if got := s.Score(solidImage(60, 84, color.RGBA{R: 30, G: 30, B: 30, A: 0xFF}), KindCard); got > 0.2 {
		t.Fatalf("flat crop score = %v, want near 0", got)
	}
}

func TestRegionScorerDetailFallback(t *testing.T) {
	s := NewRegionScorer(fakeReader{}, nil, discardLogger())

	if got := s.Score(solidImage(40, 40, darkTable), KindSeatMarker); got != 0 {
		t.Fatalf("flat crop detail = %v, want 0", got)
	}

	checker := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 0xFF
			}
			checker.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xFF})
		}
	}
	if got := s.Score(checker, KindSeatMarker); got != detailCap {
		t.Fatalf("checker detail = %v, want capped at %v", got, detailCap)
	}
}

func TestRegionScorerPrefersTemplateForCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	if err := imaging.Save(wavePatch(24, 24, 0.8), path); err != nil {
		t.Fatalf("save template: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.CardTemplatePath = path
	cfg.MinScale, cfg.MaxScale, cfg.ScaleStep = 1.0, 1.0, 0.5
	cfg.Stride = 1
	ts, err := NewTemplateScorer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("new template scorer: %v", err)
	}

	crop := solidImage(60, 60, darkTable)
	embedPatch(crop, wavePatch(24, 24, 0.8), 18, 18)

	s := NewRegionScorer(fakeReader{}, ts, discardLogger())
	// The geometry fallback would give this dim crop a low score; a high
	// one proves the template correlation was used.
	if got := s.Score(crop, KindCard); got < 0.9 {
		t.Fatalf("template card score = %v, want > 0.9", got)
	}
}

func TestRegionScorerRecoversFromPanic(t *testing.T) {
	s := NewRegionScorer(panicReader{}, nil, discardLogger())
	if got := s.Score(solidImage(40, 20, cardWhite), KindText); got != 0 {
		t.Fatalf("score after panic = %v, want 0", got)
	}
}

func TestRegionScorerNilImage(t *testing.T) {
	s := NewRegionScorer(fakeReader{text: "x"}, nil, discardLogger())
	if got := s.Score(nil, KindText); got != 0 {
		t.Fatalf("nil image score = %v, want 0", got)
	}
}
