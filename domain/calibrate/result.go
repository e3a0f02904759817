// Package calibrate turns raw candidate regions into a named table layout:
// role assignment, a validation battery, tiered caching and persistence.
package calibrate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/soocke/table-calib-go/domain/detect"
)

// Role names assigned by the orchestrator. Numbered roles use the exported
// prefixes, e.g. community_card_3, button_fold, seat_2, seat_2_label.
const (
	RoleHeroCard1 = "hero_card_1"
	RoleHeroCard2 = "hero_card_2"
	RolePot       = "pot_display"

	RoleCommunityPrefix = "community_card_"
	RoleButtonPrefix    = "button_"
	RoleSeatPrefix      = "seat_"
	RoleSeatLabelSuffix = "_label"
)

// Result is one complete calibration outcome. Regions always carries at
// least the fallback layout, never nil.
type Result struct {
	Regions         map[string]detect.Region `json:"regions"`
	AccuracyScore   float64                  `json:"accuracy_score"`
	ValidationTests map[string]bool          `json:"validation_tests"`
	TableDetected   bool                     `json:"table_detected"`
	Timestamp       time.Time                `json:"timestamp"`
}

// Tier buckets a result by its accuracy score.
func (r Result) Tier(excellent, acceptable float64) string {
	switch {
	case r.AccuracyScore >= excellent:
		return "excellent"
	case r.AccuracyScore >= acceptable:
		return "acceptable"
	default:
		return "poor"
	}
}

const recordSchemaVersion = 1

// Record is the persisted calibration shape. The JSON round trip restores
// Regions, AccuracyScore, ValidationTests and TableDetected exactly.
type Record struct {
	SchemaVersion int       `json:"schema_version"`
	UIHash        string    `json:"ui_hash"`
	SavedAt       time.Time `json:"saved_at"`
	Result        Result    `json:"result"`
}

// NewRecord stamps a result for persistence.
func NewRecord(uiHash string, res Result) Record {
	return Record{
		SchemaVersion: recordSchemaVersion,
		UIHash:        uiHash,
		SavedAt:       time.Now().UTC(),
		Result:        res,
	}
}

// SaveRecord writes the record to path as indented JSON.
func SaveRecord(path string, rec Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create calibration record: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode calibration record: %w", err)
	}
	return nil
}

// LoadRecord reads a record previously written by SaveRecord.
func LoadRecord(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read calibration record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode calibration record: %w", err)
	}
	return rec, nil
}
