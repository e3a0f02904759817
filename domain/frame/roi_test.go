package frame

import (
	"image"
	"testing"
)

func TestExtractRegion_ClampsToBounds(t *testing.T) {
	f := image.NewRGBA(image.Rect(0, 0, 100, 100))
	roi, rect, err := ExtractRegion(f, image.Rect(80, 80, 140, 140))
	if err != nil || roi == nil {
		t.Fatalf("expected region, got err=%v", err)
	}
	if rect.Max.X > 100 || rect.Max.Y > 100 {
		t.Fatalf("rect exceeds frame bounds: %v", rect)
	}
	if rect.Dx() != 20 || rect.Dy() != 20 {
		t.Fatalf("expected 20x20, got %dx%d", rect.Dx(), rect.Dy())
	}
}

func TestExtractRegion_DegenerateRequestYieldsPixel(t *testing.T) {
	f := image.NewRGBA(image.Rect(0, 0, 10, 10))
	roi, rect, err := ExtractRegion(f, image.Rect(50, 50, 60, 60))
	if err != nil || roi == nil {
		t.Fatalf("region error: %v", err)
	}
	if rect.Dx() != 1 || rect.Dy() != 1 {
		t.Fatalf("expected 1x1 fallback, got %dx%d", rect.Dx(), rect.Dy())
	}
}

func TestExtractRegion_NilFrame(t *testing.T) {
	if _, _, err := ExtractRegion(nil, image.Rect(0, 0, 5, 5)); err == nil {
		t.Fatalf("expected error for nil frame")
	}
}

func TestExtractROI_CentersAndClamps(t *testing.T) {
	f := image.NewRGBA(image.Rect(0, 0, 100, 100))
	roi, rect, err := ExtractROI(f, 50, 50, 40)
	if err != nil || roi == nil {
		t.Fatalf("expected ROI, got err=%v", err)
	}
	if rect.Dx() != 40 || rect.Dy() != 40 {
		t.Fatalf("expected 40x40, got %dx%d", rect.Dx(), rect.Dy())
	}
	if rect.Min.X != 30 || rect.Min.Y != 30 {
		t.Fatalf("unexpected rect origin %v", rect.Min)
	}
}

func TestExtractROI_MinSize(t *testing.T) {
	f := image.NewRGBA(image.Rect(0, 0, 10, 10))
	roi, rect, _ := ExtractROI(f, 0, 0, 0)
	if roi == nil {
		t.Fatalf("nil roi")
	}
	if rect.Dx() != 1 || rect.Dy() != 1 {
		t.Fatalf("expected 1x1 got %dx%d", rect.Dx(), rect.Dy())
	}
}
