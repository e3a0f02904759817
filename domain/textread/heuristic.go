package textread

import (
	"image"
	"log/slog"
	"strings"
)

// Glyph-run scanner tuning. Ink is whichever side of the luma split covers
// less area, so dark-on-light and light-on-dark text both count.
const (
	inkDelta          = 48   // min luma distance from background
	minInkFraction    = 0.01 // below this the region is flat
	maxInkFraction    = 0.55 // above this the region is texture, not text
	minGlyphWidth     = 2    // columns
	nominalGlyphWidth = 9    // wide runs split into this many columns per glyph
	minReadWidth      = 8
	minReadHeight     = 6
	glyphConfidence   = 0.1 // per glyph, capped below
	maxReadConfidence = 0.9
)

// heuristicReader estimates text presence without character recognition. It
// reports one placeholder glyph per ink run so downstream length-based
// confidence proxies behave, but it can never match keywords or currency
// markers; role assignment falls back to positional priors in that case.
type heuristicReader struct {
	logger *slog.Logger
}

// NewHeuristicReader returns the pure Go glyph-run reader.
func NewHeuristicReader(logger *slog.Logger) Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &heuristicReader{logger: logger}
}

func (h *heuristicReader) Read(img *image.RGBA, rect image.Rectangle) (string, float64) {
	r := clampRect(img, rect)
	w, ht := r.Dx(), r.Dy()
	if w < minReadWidth || ht < minReadHeight {
		return "", 0
	}

	luma := make([]int, w*ht)
	sum := 0
	dark := 0
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(r.Min.X+x, r.Min.Y+y)
			l := (77*int(c.R) + 150*int(c.G) + 29*int(c.B)) >> 8
			luma[y*w+x] = l
			sum += l
		}
	}
	background := sum / (w * ht)
	for _, l := range luma {
		if l < background {
			dark++
		}
	}

	// Text is the minority side of the split: dark glyphs on a light
	// background or the other way around.
	inkIsDark := dark*2 <= w*ht
	cols := make([]int, w)
	ink := 0
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			l := luma[y*w+x]
			var isInk bool
			if inkIsDark {
				isInk = l <= background-inkDelta
			} else {
				isInk = l >= background+inkDelta
			}
			if isInk {
				cols[x]++
				ink++
			}
		}
	}
	frac := float64(ink) / float64(w*ht)
	if frac < minInkFraction || frac > maxInkFraction {
		return "", 0
	}

	// A column carries ink when a meaningful part of its height does;
	// consecutive inked columns form one glyph run.
	minColumnInk := ht / 8
	if minColumnInk < 1 {
		minColumnInk = 1
	}
	glyphs := 0
	run := 0
	for x := 0; x < w; x++ {
		if cols[x] >= minColumnInk {
			run++
			continue
		}
		glyphs += glyphsInRun(run)
		run = 0
	}
	glyphs += glyphsInRun(run)
	if glyphs == 0 {
		return "", 0
	}

	conf := glyphConfidence * float64(glyphs)
	if conf > maxReadConfidence {
		conf = maxReadConfidence
	}
	return strings.Repeat("#", glyphs), conf
}

func (h *heuristicReader) Close() error { return nil }

func glyphsInRun(run int) int {
	if run < minGlyphWidth {
		return 0
	}
	n := run / nominalGlyphWidth
	if n < 1 {
		n = 1
	}
	return n
}
