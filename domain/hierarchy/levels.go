package hierarchy

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/soocke/table-calib-go/domain/calibrate"
	"github.com/soocke/table-calib-go/domain/detect"
	"github.com/soocke/table-calib-go/domain/frame"
)

// Level tuning. A sub-check is skipped once the level has burned the soft
// fraction of its budget, keeping the decisive early signal over the bonus
// one.
const (
	softBudgetFraction = 0.8

	fastThumbW       = 160
	fastThumbH       = 120
	fastSampleStride = 2
	feltFullFraction = 0.30 // felt fraction at which the signal saturates
	edgeFullDensity  = 0.08
	fastFeltWeight   = 0.7

	candidatesForFull  = 6.0
	moderateCandWeight = 0.5
	moderateTextWeight = 0.3
	moderateCardWeight = 0.2

	deepAccuracyWeight    = 0.5
	deepTableWeight       = 0.3
	deepConsistencyWeight = 0.2
)

// levelFast samples felt coverage on a thumbnail and adds a coarse edge
// signal. It is the only level cheap enough to run on every gate attempt.
func (d *Detector) levelFast(snap frame.Snapshot, soft time.Time) float64 {
	d.level1Calls.Add(1)
	if snap.Empty() {
		return 0
	}
	thumb := frame.ScaleToFit(snap.Image, fastThumbW, fastThumbH)
	defer func() {
		if thumb != snap.Image {
			frame.RecycleFrame(thumb)
		}
	}()
	feltConf := min(1, detect.FeltFraction(thumb, fastSampleStride)/feltFullFraction)
	if time.Now().After(soft) {
		d.logger.Debug("sub-check skipped",
			slog.Int("level", 1), slog.String("check", "edge_density"))
		return fastFeltWeight * feltConf
	}
	edgeConf := min(1, detect.EdgeDensity(thumb)/edgeFullDensity)
	return fastFeltWeight*feltConf + (1-fastFeltWeight)*edgeConf
}

// levelModerate runs full candidate detection and scores what came back:
// raw candidate volume plus presence of the kinds a table must show.
func (d *Detector) levelModerate(snap frame.Snapshot, soft time.Time) float64 {
	d.level2Calls.Add(1)
	if snap.Empty() {
		return 0
	}
	cands := d.source.Detect(snap.Image)
	conf := moderateCandWeight * min(1, float64(len(cands))/candidatesForFull)
	if time.Now().After(soft) {
		d.logger.Debug("sub-check skipped",
			slog.Int("level", 2), slog.String("check", "kind_presence"))
		return conf
	}
	var hasText, hasCard bool
	for _, c := range cands {
		switch c.Kind {
		case detect.KindText, detect.KindButton:
			hasText = true
		case detect.KindCard:
			hasCard = true
		}
	}
	if hasText {
		conf += moderateTextWeight
	}
	if hasCard {
		conf += moderateCardWeight
	}
	return conf
}

// levelDeep runs a complete calibration and blends its accuracy with the
// table bit and a geometric consistency score over the assigned roles.
func (d *Detector) levelDeep(snap frame.Snapshot) float64 {
	d.level3Calls.Add(1)
	res := d.calib.Calibrate(snap)
	conf := deepAccuracyWeight * res.AccuracyScore
	if res.TableDetected {
		conf += deepTableWeight
	}
	conf += deepConsistencyWeight * consistencyScore(res, snap)
	return conf
}

// consistencyScore checks that the assigned layout is geometrically
// plausible. Only checks with enough regions to judge count; a layout with
// nothing to contradict scores full marks.
func consistencyScore(res calibrate.Result, snap frame.Snapshot) float64 {
	applicable, passed := 0, 0

	hero1, ok1 := res.Regions[calibrate.RoleHeroCard1]
	hero2, ok2 := res.Regions[calibrate.RoleHeroCard2]
	if ok1 && ok2 {
		applicable++
		if !hero1.Rect().Overlaps(hero2.Rect()) && sizesComparable(hero1, hero2) {
			passed++
		}
	}

	var board []detect.Region
	for i := 1; i <= 5; i++ {
		r, ok := res.Regions[calibrate.RoleCommunityPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		board = append(board, r)
	}
	if len(board) >= 2 {
		applicable++
		ordered := true
		for i := 1; i < len(board); i++ {
			if board[i].X <= board[i-1].X {
				ordered = false
				break
			}
		}
		if ordered {
			passed++
		}
	}

	if pot, ok := res.Regions[calibrate.RolePot]; ok && ok1 {
		applicable++
		if pot.Y < hero1.Y {
			passed++
		}
	}

	if !snap.Empty() {
		applicable++
		inBounds := true
		b := snap.Image.Bounds()
		for _, r := range res.Regions {
			if !r.Rect().In(b) {
				inBounds = false
				break
			}
		}
		if inBounds {
			passed++
		}
	}

	if applicable == 0 {
		return 1
	}
	return float64(passed) / float64(applicable)
}

// sizesComparable rejects hero card pairs where one rectangle dwarfs the
// other, which happens when a contour swallowed both cards at once.
func sizesComparable(a, b detect.Region) bool {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return false
	}
	if areaA > areaB {
		areaA, areaB = areaB, areaA
	}
	return float64(areaB)/float64(areaA) <= 2.0
}
