package detect

import (
	"image"
	"math"
	"sort"
)

// Circle search parameters for seat markers (dealer button, avatar rings).
// Centers are scanned on a coarse grid and each candidate circle is sampled
// at fixed angles against the edge mask.
const (
	seatMinRadius    = 15
	seatMaxRadius    = 80
	seatRadiusStep   = 5
	seatCenterStride = 4
	seatSamples      = 36
	seatMinVoteFrac  = 0.6
	seatBaseConf     = 0.7
	seatMaxRegions   = 16
)

type seatExtractor struct{}

func (seatExtractor) name() string { return "seat_circles" }

func (seatExtractor) extract(sc *scene) []Region {
	mask := sc.edges()
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2*seatMinRadius || h < 2*seatMinRadius {
		return nil
	}

	// A frame without enough edge pixels for even the smallest circle is
	// not worth the center scan.
	integ := maskIntegral(mask)
	voteFrac := float64(seatMinVoteFrac)
	minVotes := int(voteFrac * seatSamples)
	if integ[len(integ)-1] < minVotes {
		return nil
	}

	type hit struct {
		cx, cy, r int
		frac      float64
	}
	var hits []hit
	for r := seatMinRadius; r <= seatMaxRadius && 2*r < w && 2*r < h; r += seatRadiusStep {
		offs := circleOffsets(r, seatSamples)
		for cy := r; cy < h-r; cy += seatCenterStride {
			for cx := r; cx < w-r; cx += seatCenterStride {
				votes := 0
				for _, o := range offs {
					if maskOn(mask, b.Min.X+cx+o.X, b.Min.Y+cy+o.Y) {
						votes++
					}
				}
				if votes < minVotes {
					continue
				}
				hits = append(hits, hit{cx: cx, cy: cy, r: r, frac: float64(votes) / float64(len(offs))})
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	// Strongest circle wins inside any overlapping neighborhood.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].frac > hits[j].frac })
	type accepted struct{ cx, cy, r int }
	var keep []accepted
	var out []Region
	for _, ht := range hits {
		dup := false
		for _, k := range keep {
			dx := float64(ht.cx - k.cx)
			dy := float64(ht.cy - k.cy)
			if math.Hypot(dx, dy) < float64(ht.r+k.r)/2 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		keep = append(keep, accepted{cx: ht.cx, cy: ht.cy, r: ht.r})
		rect := image.Rect(
			b.Min.X+ht.cx-ht.r, b.Min.Y+ht.cy-ht.r,
			b.Min.X+ht.cx+ht.r, b.Min.Y+ht.cy+ht.r,
		)
		out = append(out, NewRegion(rect, KindSeatMarker, seatBaseConf*ht.frac))
		if len(out) >= seatMaxRegions {
			break
		}
	}
	return out
}

// circleOffsets returns integer offsets of evenly spaced points on a circle
// of the given radius.
func circleOffsets(r, samples int) []image.Point {
	offs := make([]image.Point, 0, samples)
	for i := 0; i < samples; i++ {
		a := 2 * math.Pi * float64(i) / float64(samples)
		offs = append(offs, image.Pt(
			int(math.Round(float64(r)*math.Cos(a))),
			int(math.Round(float64(r)*math.Sin(a))),
		))
	}
	return offs
}
