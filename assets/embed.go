package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// LayoutDefaultsJSON contains the raw JSON bytes of the fallback layout
// priors used when calibration finds no candidates at all.
//
//go:embed layout_defaults.json
var LayoutDefaultsJSON []byte

// RegionPrior describes one fallback region as fractions of the frame size.
type RegionPrior struct {
	Role       string  `json:"role"`
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
}

// LayoutPriors decodes the embedded fallback priors.
func LayoutPriors() ([]RegionPrior, error) {
	if len(LayoutDefaultsJSON) == 0 {
		return nil, fmt.Errorf("embedded layout_defaults.json is empty")
	}
	var doc struct {
		Priors []RegionPrior `json:"priors"`
	}
	if err := json.Unmarshal(LayoutDefaultsJSON, &doc); err != nil {
		return nil, err
	}
	if len(doc.Priors) == 0 {
		return nil, fmt.Errorf("layout_defaults.json contains no priors")
	}
	return doc.Priors, nil
}
