package calibrate

import (
	"image"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/soocke/table-calib-go/domain/detect"
)

// Positional windows as fractions of the frame, tuned for the common
// bottom-seat table layout.
const (
	heroWindowLeft   = 0.25
	heroWindowRight  = 0.75
	heroWindowTop    = 0.55
	boardBandLeft    = 0.15
	boardBandRight   = 0.85
	boardBandTop     = 0.25
	boardBandBottom  = 0.55
	buttonBandTop    = 0.60
	seatLabelPairing = 1.5

	maxHeroCards      = 2
	maxCommunityCards = 5
	maxNumberedButton = 4
	matchedButtonConf = 0.8
)

// buttonKeywords are the action labels recognised on read button text,
// paired with the canonical role suffix so spelling variants collapse into
// one role.
var buttonKeywords = []struct{ match, role string }{
	{"fold", "fold"},
	{"call", "call"},
	{"raise", "raise"},
	{"check", "check"},
	{"bet", "bet"},
	{"all-in", "all_in"},
	{"allin", "all_in"},
}

// currencyPattern matches pot style text: a currency amount, a chip count,
// or an explicit pot label.
var currencyPattern = regexp.MustCompile(`(?i)pot|[$€£]\s?\d[\d,.]*|\d[\d,.]*\s?(?:chips|bb)`)

// assignment is the outcome of one role assignment pass over candidates.
type assignment struct {
	roles    map[string]detect.Region
	textSeen bool
}

// assignRoles names candidate regions by position, read text and kind.
// Candidates arrive ordered by descending confidence, which makes every
// first-match rule below prefer the stronger region.
func (o *Orchestrator) assignRoles(img *image.RGBA, cands []detect.Region) assignment {
	asn := assignment{roles: make(map[string]detect.Region)}
	if img == nil || len(cands) == 0 {
		return asn
	}
	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return asn
	}

	used := make([]bool, len(cands))
	texts := o.readCandidateTexts(img, cands)
	for _, t := range texts {
		if t != "" {
			asn.textSeen = true
			break
		}
	}

	o.assignHeroCards(&asn, cands, used, w, h)
	o.assignCommunityCards(&asn, cands, used, w, h)
	o.assignButtons(&asn, cands, used, texts, h)
	o.assignPot(&asn, cands, used, texts)
	o.assignSeats(&asn, cands, used)
	return asn
}

// readCandidateTexts runs the reader once per text-bearing candidate.
func (o *Orchestrator) readCandidateTexts(img *image.RGBA, cands []detect.Region) map[int]string {
	texts := make(map[int]string)
	for i, c := range cands {
		switch c.Kind {
		case detect.KindText, detect.KindButton, detect.KindPot:
			s, _ := o.reader.Read(img, c.Rect())
			texts[i] = strings.TrimSpace(s)
		}
	}
	return texts
}

func (o *Orchestrator) assignHeroCards(asn *assignment, cands []detect.Region, used []bool, w, h float64) {
	var idx []int
	for i, c := range cands {
		if used[i] || c.Kind != detect.KindCard {
			continue
		}
		ct := c.Center()
		cx, cy := float64(ct.X), float64(ct.Y)
		if cx >= heroWindowLeft*w && cx <= heroWindowRight*w && cy >= heroWindowTop*h {
			idx = append(idx, i)
		}
	}
	sortByPosition(cands, idx)
	for n, i := range idx {
		if n >= maxHeroCards {
			break
		}
		role := RoleHeroCard1
		if n == 1 {
			role = RoleHeroCard2
		}
		o.claim(asn, role, cands[i], used, i)
	}
}

func (o *Orchestrator) assignCommunityCards(asn *assignment, cands []detect.Region, used []bool, w, h float64) {
	var idx []int
	for i, c := range cands {
		if used[i] || c.Kind != detect.KindCard {
			continue
		}
		ct := c.Center()
		cx, cy := float64(ct.X), float64(ct.Y)
		if cx >= boardBandLeft*w && cx <= boardBandRight*w &&
			cy >= boardBandTop*h && cy < boardBandBottom*h {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return cands[idx[a]].X < cands[idx[b]].X })
	for n, i := range idx {
		if n >= maxCommunityCards {
			break
		}
		o.claim(asn, communityRole(n+1), cands[i], used, i)
	}
}

// assignButtons matches read text against the keyword set first. Cross-kind
// dedup can fold a button into a text region, so both kinds are eligible.
// Button-kind regions without a keyword fall back to numbered roles when
// they sit low enough on the table.
func (o *Orchestrator) assignButtons(asn *assignment, cands []detect.Region, used []bool, texts map[int]string, h float64) {
	for i, c := range cands {
		if used[i] || (c.Kind != detect.KindButton && c.Kind != detect.KindText) {
			continue
		}
		kw := matchButtonKeyword(texts[i])
		if kw == "" {
			continue
		}
		role := RoleButtonPrefix + kw
		if _, taken := asn.roles[role]; taken {
			continue
		}
		if c.Confidence < matchedButtonConf {
			c.Confidence = matchedButtonConf
		}
		o.claim(asn, role, c, used, i)
	}

	numbered := 0
	for i, c := range cands {
		if used[i] || c.Kind != detect.KindButton || numbered >= maxNumberedButton {
			continue
		}
		if float64(c.Center().Y) < buttonBandTop*h {
			continue
		}
		numbered++
		o.claim(asn, buttonRole(numbered), c, used, i)
	}
}

// assignPot prefers text that reads like a currency amount and falls back
// to the felt pot anchor.
func (o *Orchestrator) assignPot(asn *assignment, cands []detect.Region, used []bool, texts map[int]string) {
	for i, c := range cands {
		if used[i] || (c.Kind != detect.KindText && c.Kind != detect.KindPot) {
			continue
		}
		if currencyPattern.MatchString(texts[i]) {
			o.claim(asn, RolePot, c, used, i)
			return
		}
	}
	for i, c := range cands {
		if !used[i] && c.Kind == detect.KindPot {
			o.claim(asn, RolePot, c, used, i)
			return
		}
	}
}

// assignSeats numbers seat markers top to bottom and pairs each with the
// nearest unclaimed text region when one sits close enough.
func (o *Orchestrator) assignSeats(asn *assignment, cands []detect.Region, used []bool) {
	var idx []int
	for i, c := range cands {
		if !used[i] && c.Kind == detect.KindSeatMarker {
			idx = append(idx, i)
		}
	}
	sortByPosition(cands, idx)
	for n, i := range idx {
		seat := seatRole(n + 1)
		o.claim(asn, seat, cands[i], used, i)
		if j, ok := nearestText(cands, used, cands[i]); ok {
			o.claim(asn, seat+RoleSeatLabelSuffix, cands[j], used, j)
		}
	}
}

// claim records one role, marking the candidate consumed. Validated mirrors
// whether the region clears the trust floor.
func (o *Orchestrator) claim(asn *assignment, role string, c detect.Region, used []bool, i int) {
	c.Validated = c.Confidence > o.cfg.ConfidenceFloor
	asn.roles[role] = c
	used[i] = true
}

func nearestText(cands []detect.Region, used []bool, marker detect.Region) (int, bool) {
	mc := marker.Center()
	limit := seatLabelPairing * float64(max(marker.Width, marker.Height))
	best, bestDist := -1, math.MaxFloat64
	for i, c := range cands {
		if used[i] || c.Kind != detect.KindText {
			continue
		}
		cc := c.Center()
		d := math.Hypot(float64(cc.X-mc.X), float64(cc.Y-mc.Y))
		if d <= limit && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func matchButtonKeyword(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, kw := range buttonKeywords {
		if strings.Contains(lower, kw.match) {
			return kw.role
		}
	}
	return ""
}

// sortByPosition orders candidate indexes top to bottom, then left to right.
func sortByPosition(cands []detect.Region, idx []int) {
	sort.Slice(idx, func(a, b int) bool {
		ra, rb := cands[idx[a]], cands[idx[b]]
		if ra.Y != rb.Y {
			return ra.Y < rb.Y
		}
		return ra.X < rb.X
	})
}

func communityRole(n int) string { return RoleCommunityPrefix + strconv.Itoa(n) }
func buttonRole(n int) string    { return RoleButtonPrefix + strconv.Itoa(n) }
func seatRole(n int) string      { return RoleSeatPrefix + strconv.Itoa(n) }
