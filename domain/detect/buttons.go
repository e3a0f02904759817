package detect

import "math"

// Action button geometry filters. Buttons are wide, short boxes along the
// lower edge of the client.
const (
	buttonMinWidth   = 60
	buttonMaxWidth   = 200
	buttonMinHeight  = 25
	buttonMaxHeight  = 60
	buttonMinAspect  = 1.5
	buttonMaxAspect  = 4.0
	buttonMinPixels  = 60
	buttonMaxRegions = 64
	buttonBaseConf   = 0.4
)

// buttonExtractor proposes action button candidates from edge components.
// The base confidence is deliberately modest; role assignment raises it when
// the label text matches an action keyword.
type buttonExtractor struct{}

func (buttonExtractor) name() string { return "button_contour" }

func (buttonExtractor) extract(sc *scene) []Region {
	midAspect := (buttonMinAspect + buttonMaxAspect) / 2
	halfSpan := (buttonMaxAspect - buttonMinAspect) / 2
	var out []Region
	for _, c := range findComponents(sc.edges(), buttonMinPixels, buttonMaxRegions) {
		w, h := c.rect.Dx(), c.rect.Dy()
		if w < buttonMinWidth || w > buttonMaxWidth || h < buttonMinHeight || h > buttonMaxHeight {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect < buttonMinAspect || aspect > buttonMaxAspect {
			continue
		}
		conf := buttonBaseConf + 0.2*(1-math.Abs(aspect-midAspect)/halfSpan)
		out = append(out, NewRegion(c.rect, KindButton, conf))
	}
	return out
}
