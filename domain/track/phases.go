// Package track runs the long-lived monitoring loop: it derives the current
// game phase from the visible table elements, maintains per-region confidence
// history, and recalibrates when the tracked layout degrades.
package track

import (
	"strconv"
	"strings"

	"github.com/soocke/table-calib-go/domain/calibrate"
)

// Phase is the current stage of the hand, inferred from visible element
// counts. No phase is terminal; the machine free-runs for the session.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhasePreflop
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
	PhaseBetweenHands
)

func (p Phase) String() string {
	switch p {
	case PhasePreflop:
		return "preflop"
	case PhaseFlop:
		return "flop"
	case PhaseTurn:
		return "turn"
	case PhaseRiver:
		return "river"
	case PhaseShowdown:
		return "showdown"
	case PhaseBetweenHands:
		return "between_hands"
	default:
		return "unknown"
	}
}

// GameState is one tick's view of the table. The previous value is retained
// only to detect phase transitions.
type GameState struct {
	Phase           Phase
	VisibleElements map[string]bool
	HeroInHand      bool
	HeroTurn        bool
	BettingActive   bool
	CommunityCount  int
}

// DerivePhase maps the visible community-card count and hero presence to a
// phase. Counts that match no street read as showdown while the hero still
// holds cards, otherwise as between hands.
func DerivePhase(communityCount int, heroInHand bool) Phase {
	switch {
	case communityCount == 0 && heroInHand:
		return PhasePreflop
	case communityCount == 0:
		return PhaseBetweenHands
	case communityCount == 3:
		return PhaseFlop
	case communityCount == 4:
		return PhaseTurn
	case communityCount == 5:
		return PhaseRiver
	case heroInHand:
		return PhaseShowdown
	default:
		return PhaseBetweenHands
	}
}

// PhaseListener observes phase transitions. Invoked from the loop goroutine.
type PhaseListener func(prev, next Phase)

// requirement says when a role's region is expected on screen. Always wins
// over the phase set; heroTurnOnly additionally gates on it being the hero's
// turn to act.
type requirement struct {
	always       bool
	phases       map[Phase]bool
	heroTurnOnly bool
}

func phaseSet(phases ...Phase) map[Phase]bool {
	m := make(map[Phase]bool, len(phases))
	for _, p := range phases {
		m[p] = true
	}
	return m
}

var inHandPhases = phaseSet(PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver, PhaseShowdown)
var bettingPhases = phaseSet(PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver)

// roleRequirement returns the fixed requirement for a calibrated role name.
// Hero cards are expected through the whole hand; community card i only from
// the street where it first appears; action buttons only while the hero acts;
// everything else (pot, seats, labels) is expected always.
func roleRequirement(role string) requirement {
	switch {
	case role == calibrate.RoleHeroCard1 || role == calibrate.RoleHeroCard2:
		return requirement{phases: inHandPhases}
	case strings.HasPrefix(role, calibrate.RoleCommunityPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(role, calibrate.RoleCommunityPrefix))
		if err != nil || n < 1 {
			return requirement{always: true}
		}
		switch {
		case n <= 3:
			return requirement{phases: phaseSet(PhaseFlop, PhaseTurn, PhaseRiver, PhaseShowdown)}
		case n == 4:
			return requirement{phases: phaseSet(PhaseTurn, PhaseRiver, PhaseShowdown)}
		default:
			return requirement{phases: phaseSet(PhaseRiver, PhaseShowdown)}
		}
	case strings.HasPrefix(role, calibrate.RoleButtonPrefix):
		return requirement{phases: bettingPhases, heroTurnOnly: true}
	default:
		return requirement{always: true}
	}
}

// expectedIn reports whether a region with this requirement should be
// visible in the given state.
func (r requirement) expectedIn(state GameState) bool {
	if r.always {
		return true
	}
	if !r.phases[state.Phase] {
		return false
	}
	if r.heroTurnOnly {
		return state.HeroTurn
	}
	return true
}
