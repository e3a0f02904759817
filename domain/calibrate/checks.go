package calibrate

import (
	"strings"

	"github.com/soocke/table-calib-go/domain/detect"
)

// Validation battery check names. Accuracy is the passed fraction over all
// five, so every result lands on a 0.2 grid.
const (
	checkHeroCards      = "hero_cards_detected"
	checkActionButtons  = "action_buttons_detected"
	checkTextReading    = "text_extraction_working"
	checkRegionCount    = "sufficient_regions"
	checkHighConfidence = "high_confidence_regions"
)

var checkNames = []string{
	checkHeroCards,
	checkActionButtons,
	checkTextReading,
	checkRegionCount,
	checkHighConfidence,
}

// validate runs the battery over a completed assignment. The battery sees
// only real assignments; fallback regions are synthesized afterwards and
// never inflate the score.
func (o *Orchestrator) validate(asn assignment) map[string]bool {
	tests := make(map[string]bool, len(checkNames))

	_, hero1 := asn.roles[RoleHeroCard1]
	_, hero2 := asn.roles[RoleHeroCard2]
	tests[checkHeroCards] = hero1 || hero2

	buttons := false
	for role := range asn.roles {
		if strings.HasPrefix(role, RoleButtonPrefix) {
			buttons = true
			break
		}
	}
	tests[checkActionButtons] = buttons

	tests[checkTextReading] = asn.textSeen
	tests[checkRegionCount] = len(asn.roles) >= o.cfg.MinRegionCount
	tests[checkHighConfidence] = o.confidentEnough(asn.roles)

	return tests
}

// confidentEnough reports whether enough assigned regions clear the
// confidence floor.
func (o *Orchestrator) confidentEnough(roles map[string]detect.Region) bool {
	if len(roles) == 0 {
		return false
	}
	confident := 0
	for _, r := range roles {
		if r.Confidence > o.cfg.ConfidenceFloor {
			confident++
		}
	}
	ratio := float64(confident) / float64(len(roles))
	return ratio >= o.cfg.ConfidentRatio
}

// accuracyScore folds the battery into a single fraction.
func accuracyScore(tests map[string]bool) float64 {
	if len(tests) == 0 {
		return 0
	}
	passed := 0
	for _, ok := range tests {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(len(tests))
}

// failedChecks lists the failing check names for log output.
func failedChecks(tests map[string]bool) []string {
	var failed []string
	for _, name := range checkNames {
		if !tests[name] {
			failed = append(failed, name)
		}
	}
	return failed
}
