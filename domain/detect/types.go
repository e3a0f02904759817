package detect

import (
	"image"
	"math"
	"sort"
)

// Kind labels what a candidate region appears to contain.
type Kind string

const (
	KindCard       Kind = "card"
	KindButton     Kind = "button"
	KindText       Kind = "text"
	KindPot        Kind = "pot"
	KindSeatMarker Kind = "seat_marker"
)

// Region is a rectangular candidate located on a frame. Coordinates are
// absolute frame pixels; Confidence is always within [0,1].
type Region struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	Kind       Kind    `json:"kind"`
	Validated  bool    `json:"validated"`
}

// NewRegion builds a Region from a rectangle with a clamped confidence.
func NewRegion(r image.Rectangle, kind Kind, confidence float64) Region {
	r = r.Canon()
	return Region{
		X:          r.Min.X,
		Y:          r.Min.Y,
		Width:      r.Dx(),
		Height:     r.Dy(),
		Confidence: ClampConfidence(confidence),
		Kind:       kind,
	}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns the pixel area of the region.
func (r Region) Area() int { return r.Width * r.Height }

// Center returns the region midpoint.
func (r Region) Center() image.Point {
	return image.Pt(r.X+r.Width/2, r.Y+r.Height/2)
}

// ClampConfidence forces v into [0,1]. NaN maps to 0.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// overlapRatio returns the intersection area divided by the area of the
// smaller of the two regions. Degenerate regions score zero.
func overlapRatio(a, b Region) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	small := a.Area()
	if ba := b.Area(); ba < small {
		small = ba
	}
	if small <= 0 {
		return 0
	}
	return float64(inter.Dx()*inter.Dy()) / float64(small)
}

// Dedup drops duplicate candidates. Two regions duplicate each other when the
// intersection covers more than half of the smaller one; the higher
// confidence region survives. The result is ordered by descending confidence.
func Dedup(regions []Region) []Region {
	if len(regions) < 2 {
		return regions
	}
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	kept := make([]Region, 0, len(sorted))
	for _, r := range sorted {
		dup := false
		for _, k := range kept {
			if overlapRatio(r, k) > duplicateOverlap {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, r)
		}
	}
	return kept
}
