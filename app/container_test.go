package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/soocke/table-calib-go/config"
)

func TestBuildContainer_WiresEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := BuildContainer(cfg, logger)
	if err != nil {
		t.Fatalf("BuildContainer failed: %v", err)
	}
	defer c.Close()

	if c.Frames == nil || c.Reader == nil || c.Detector == nil || c.Scorer == nil {
		t.Fatal("detection pipeline not wired")
	}
	if c.Orchestrator == nil || c.Hierarchy == nil || c.Tracker == nil {
		t.Fatal("calibration components not wired")
	}
	if c.Breaker == nil || c.Guard == nil || c.Dedup == nil {
		t.Fatal("reliability components not wired")
	}
	if c.Store != nil {
		t.Fatal("store must stay nil without a configured path")
	}
}

func TestBuildContainer_InMemoryStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StorePath = ":memory:"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := BuildContainer(cfg, logger)
	if err != nil {
		t.Fatalf("BuildContainer failed: %v", err)
	}
	defer c.Close()
	if c.Store == nil {
		t.Fatal("expected an opened calibration store")
	}
}

func TestTableRectFn(t *testing.T) {
	cfg := config.DefaultConfig()
	fn := tableRectFn(cfg)
	if fn() != nil {
		t.Fatal("zero table rectangle must capture the full screen")
	}
	cfg.TableX, cfg.TableY, cfg.TableW, cfg.TableH = 10, 20, 300, 200
	r := fn()
	if r == nil || r.Dx() != 300 || r.Dy() != 200 || r.Min.X != 10 || r.Min.Y != 20 {
		t.Fatalf("unexpected rect %v", r)
	}
}
