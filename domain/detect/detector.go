// Package detect proposes candidate regions on raw table frames. Each
// extractor looks for one visual signature (felt color, card contours, button
// boxes, circular seat markers, text texture) and the detector merges their
// proposals into a deduplicated candidate list.
package detect

import (
	"image"
	"log/slog"
	"runtime/debug"
)

// duplicateOverlap is the fraction of the smaller region above which two
// candidates are considered the same thing.
const duplicateOverlap = 0.5

// extractor proposes candidate regions from a prepared scene.
type extractor interface {
	name() string
	extract(sc *scene) []Region
}

// Detector runs every candidate extractor over a frame and merges the
// results. A panicking extractor is logged and skipped; the others still
// contribute.
type Detector struct {
	extractors []extractor
	logger     *slog.Logger
}

// NewDetector builds a detector with the full extractor set.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		extractors: []extractor{
			feltExtractor{},
			cardExtractor{},
			buttonExtractor{},
			seatExtractor{},
			textZoneExtractor{},
		},
		logger: logger,
	}
}

// Detect returns deduplicated candidate regions found on the frame, ordered
// by descending confidence. A nil or empty frame yields nothing.
func (d *Detector) Detect(img *image.RGBA) []Region {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	sc := newScene(img)
	var all []Region
	for _, ex := range d.extractors {
		found := d.run(ex, sc)
		if len(found) > 0 {
			d.logger.Debug("extractor results",
				slog.String("extractor", ex.name()),
				slog.Int("regions", len(found)))
		}
		all = append(all, found...)
	}
	return Dedup(all)
}

func (d *Detector) run(ex extractor, sc *scene) (regions []Region) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("extractor panicked",
				slog.String("extractor", ex.name()),
				slog.Any("recover", r),
				slog.String("stack", string(debug.Stack())))
			regions = nil
		}
	}()
	regions = ex.extract(sc)
	for i := range regions {
		regions[i].Confidence = ClampConfidence(regions[i].Confidence)
	}
	return regions
}
