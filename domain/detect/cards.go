package detect

import "math"

// Card geometry filters. Aspect is width over height of a standard playing
// card render.
const (
	cardMinWidth   = 30
	cardMaxWidth   = 120
	cardMinHeight  = 40
	cardMaxHeight  = 160
	cardAspect     = 0.695
	cardAspectTol  = 0.15
	cardMinPixels  = 40
	cardMaxRegions = 64
)

// cardExtractor proposes card candidates from edge components whose bounding
// boxes have card-like dimensions. Confidence grows with aspect fit.
type cardExtractor struct{}

func (cardExtractor) name() string { return "card_contour" }

func (cardExtractor) extract(sc *scene) []Region {
	var out []Region
	for _, c := range findComponents(sc.edges(), cardMinPixels, cardMaxRegions) {
		w, h := c.rect.Dx(), c.rect.Dy()
		if w < cardMinWidth || w > cardMaxWidth || h < cardMinHeight || h > cardMaxHeight {
			continue
		}
		aspect := float64(w) / float64(h)
		dev := math.Abs(aspect - cardAspect)
		if dev > cardAspectTol {
			continue
		}
		conf := 0.6 + 0.3*(1-dev/cardAspectTol)
		out = append(out, NewRegion(c.rect, KindCard, conf))
	}
	return out
}
