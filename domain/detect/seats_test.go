package detect

import (
	"math"
	"testing"
)

func TestSeatExtractorFindsCircle(t *testing.T) {
	img := solidImage(200, 200, darkTable)
	drawRing(img, 100, 100, 30, 4, cardWhite)

	got := seatExtractor{}.extract(newScene(img))
	if len(got) == 0 {
		t.Fatal("no seat marker candidates")
	}
	r := got[0]
	if r.Kind != KindSeatMarker {
		t.Fatalf("kind = %q, want %q", r.Kind, KindSeatMarker)
	}
	c := r.Center()
	if d := math.Hypot(float64(c.X-100), float64(c.Y-100)); d > 12 {
		t.Fatalf("center %v is %.1fpx from the ring center", c, d)
	}
	if r.Width < 40 || r.Width > 80 {
		t.Errorf("width = %d, want near the ring diameter", r.Width)
	}
	if r.Confidence <= 0 || r.Confidence > seatBaseConf {
		t.Errorf("confidence = %v, want in (0, %v]", r.Confidence, seatBaseConf)
	}
}

func TestSeatExtractorEmptyMask(t *testing.T) {
	img := solidImage(200, 200, darkTable)
	if got := (seatExtractor{}).extract(newScene(img)); len(got) != 0 {
		t.Fatalf("flat frame produced %d seat candidates", len(got))
	}
}
