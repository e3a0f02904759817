package detect

import (
	"image"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/soocke/table-calib-go/config"
)

// scaleSearch evaluates the reference patch against frames at several scales
// in parallel. Rescaled patch planes are cached between runs, so repeated
// scoring of similar crops only pays the interpolation cost once.
type scaleSearch struct {
	minScale    float64
	maxScale    float64
	step        float64
	stopOnScore float64
	match       matchOptions

	base   *patchPlane
	mu     sync.Mutex
	scaled map[int]*patchPlane
}

// scaleResult reports the best match across all evaluated scales.
type scaleResult struct {
	x, y      int
	score     float64
	scale     float64
	found     bool
	evaluated int
}

func newScaleSearch(base *patchPlane, cfg *config.Config) *scaleSearch {
	return &scaleSearch{
		minScale:    cfg.MinScale,
		maxScale:    cfg.MaxScale,
		step:        cfg.ScaleStep,
		stopOnScore: cfg.StopOnScore,
		match: matchOptions{
			threshold:      cfg.Threshold,
			stride:         cfg.Stride,
			refine:         cfg.Refine,
			returnBestEven: cfg.ReturnBestEven,
		},
		base:   base,
		scaled: make(map[int]*patchPlane),
	}
}

// factors expands the configured scale range. The count is capped so a tiny
// step cannot explode the search.
func (s *scaleSearch) factors() []float64 {
	const maxSteps = 200
	if s.minScale <= 0 || s.maxScale < s.minScale || s.step <= 0 {
		return []float64{1}
	}
	out := make([]float64, 0, 16)
	for f := s.minScale; f <= s.maxScale+1e-9 && len(out) < maxSteps; f += s.step {
		out = append(out, f)
	}
	return out
}

// plane returns the patch plane for a scale factor, building and caching it
// on first use. Factors are keyed at millesimal precision.
func (s *scaleSearch) plane(factor float64) *patchPlane {
	if factor == 1 {
		return s.base
	}
	key := int(math.Round(factor * 1000))
	s.mu.Lock()
	pp, ok := s.scaled[key]
	s.mu.Unlock()
	if ok {
		return pp
	}
	pp = s.base.rescale(factor)
	s.mu.Lock()
	if existing, ok := s.scaled[key]; ok {
		pp = existing
	} else {
		s.scaled[key] = pp
	}
	s.mu.Unlock()
	return pp
}

// run scores the patch against the frame at every factor, one worker per CPU.
// Workers skip remaining factors once any scale reaches stopOnScore.
func (s *scaleSearch) run(frame *image.RGBA) scaleResult {
	if frame == nil || s.base == nil {
		return scaleResult{score: -1}
	}
	fp := newFramePlane(frame)
	if fp == nil {
		return scaleResult{score: -1}
	}
	factors := s.factors()

	var stop atomic.Bool
	var evaluated atomic.Uint64
	results := make(chan scaleResult, len(factors))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for _, f := range factors {
		factor := f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if stop.Load() {
				return
			}
			pp := s.plane(factor)
			if pp == nil {
				return
			}
			res := matchPatch(fp, pp, s.match)
			evaluated.Add(1)
			if s.stopOnScore > 0 && res.score >= s.stopOnScore {
				stop.Store(true)
			}
			results <- scaleResult{x: res.x, y: res.y, score: res.score, scale: factor, found: res.found}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	best := scaleResult{score: -1}
	for r := range results {
		if r.score > best.score {
			best = r
		}
	}
	best.evaluated = int(evaluated.Load())
	return best
}
