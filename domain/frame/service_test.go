package frame

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(grabFn func(*image.Rectangle) (*image.RGBA, error)) *service {
	s := NewService(discardLogger, nil, time.Millisecond).(*service)
	s.grabFn = grabFn
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestService_PublishesLatestFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	s := newTestService(func(*image.Rectangle) (*image.RGBA, error) { return img, nil })
	s.Start()
	defer s.Stop()
	waitFor(t, time.Second, func() bool { return s.LatestFrame().Image != nil })
	snap := s.LatestFrame()
	if snap.Sequence == 0 {
		t.Fatalf("expected non-zero sequence")
	}
	if snap.CapturedAt.IsZero() {
		t.Fatalf("expected capture timestamp")
	}
}

func TestService_FailedGrabLeavesSentinel(t *testing.T) {
	s := newTestService(func(*image.Rectangle) (*image.RGBA, error) { return nil, errors.New("boom") })
	s.Start()
	defer s.Stop()
	waitFor(t, time.Second, func() bool { return s.Stats().Skipped > 0 })
	if !s.LatestFrame().Empty() {
		t.Fatalf("expected empty sentinel while grabs fail")
	}
}

func TestService_StartStopIdempotent(t *testing.T) {
	s := newTestService(func(*image.Rectangle) (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
	})
	s.Start()
	s.Start()
	if !s.Running() {
		t.Fatalf("service should be running")
	}
	s.Stop()
	s.Stop()
	waitFor(t, time.Second, func() bool { return !s.Running() })
}

func TestService_TableRectForwarded(t *testing.T) {
	want := image.Rect(10, 10, 50, 40)
	var mu sync.Mutex
	var got *image.Rectangle
	s := newTestService(func(r *image.Rectangle) (*image.RGBA, error) {
		mu.Lock()
		got = r
		mu.Unlock()
		return image.NewRGBA(image.Rect(0, 0, want.Dx(), want.Dy())), nil
	})
	s.SetTableRectProvider(func() *image.Rectangle { return &want })
	s.Start()
	defer s.Stop()
	waitFor(t, time.Second, func() bool { return s.Stats().Captures > 0 })
	mu.Lock()
	defer mu.Unlock()
	if got == nil || *got != want {
		t.Fatalf("grab did not receive table rect: %v", got)
	}
}
