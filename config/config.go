package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for calibration, tracking and app
// behavior. Fields may be loaded from a JSON or YAML file; every threshold
// is a tunable with an empirically chosen default.
type Config struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Frame acquisition
	CaptureIntervalMillis int `json:"capture_interval_millis" yaml:"capture_interval_millis"`
	// Table window rectangle; all zero means capture the full screen.
	TableX int `json:"table_x" yaml:"table_x"`
	TableY int `json:"table_y" yaml:"table_y"`
	TableW int `json:"table_w" yaml:"table_w"`
	TableH int `json:"table_h" yaml:"table_h"`

	// Tracker loop
	TickMillis          int     `json:"tick_millis" yaml:"tick_millis"`
	HistorySize         int     `json:"history_size" yaml:"history_size"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	StaleAfterSeconds   int     `json:"stale_after_seconds" yaml:"stale_after_seconds"`
	StaleFractionLimit  float64 `json:"stale_fraction_limit" yaml:"stale_fraction_limit"`
	HealthFloor         float64 `json:"health_floor" yaml:"health_floor"`

	// Reliability
	FailureThreshold       int `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `json:"recovery_timeout_seconds" yaml:"recovery_timeout_seconds"`
	SuccessThreshold       int `json:"success_threshold" yaml:"success_threshold"`
	MaxIdenticalFrames     int `json:"max_identical_frames" yaml:"max_identical_frames"`

	// Hierarchical detection
	Level1BudgetMillis    int     `json:"level1_budget_millis" yaml:"level1_budget_millis"`
	Level2BudgetMillis    int     `json:"level2_budget_millis" yaml:"level2_budget_millis"`
	Level3BudgetMillis    int     `json:"level3_budget_millis" yaml:"level3_budget_millis"`
	PromisingThreshold    float64 `json:"promising_threshold" yaml:"promising_threshold"`
	DefinitiveThreshold   float64 `json:"definitive_threshold" yaml:"definitive_threshold"`
	DecisionThreshold     float64 `json:"decision_threshold" yaml:"decision_threshold"`
	DetectCacheTTLSeconds int     `json:"detect_cache_ttl_seconds" yaml:"detect_cache_ttl_seconds"`
	DetectCacheSize       int     `json:"detect_cache_size" yaml:"detect_cache_size"`

	// Calibration
	ExcellentScore  float64 `json:"excellent_score" yaml:"excellent_score"`
	AcceptableScore float64 `json:"acceptable_score" yaml:"acceptable_score"`
	MinRegionCount  int     `json:"min_region_count" yaml:"min_region_count"`
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidence_floor"`
	ConfidentRatio  float64 `json:"confident_ratio" yaml:"confident_ratio"`
	CalibCacheSize  int     `json:"calib_cache_size" yaml:"calib_cache_size"`
	StorePath       string  `json:"store_path" yaml:"store_path"`
	RecordPath      string  `json:"record_path" yaml:"record_path"`
	ArchiveDir      string  `json:"archive_dir" yaml:"archive_dir"`

	// Region scoring
	CardTemplatePath string `json:"card_template_path" yaml:"card_template_path"`
	TextReader       string `json:"text_reader" yaml:"text_reader"`
	TextLanguage     string `json:"text_language" yaml:"text_language"`

	// Template matching parameters for the card template scorer.
	MinScale       float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale       float64 `json:"max_scale" yaml:"max_scale"`
	ScaleStep      float64 `json:"scale_step" yaml:"scale_step"`
	Threshold      float64 `json:"threshold" yaml:"threshold"`
	Stride         int     `json:"stride" yaml:"stride"`
	Refine         bool    `json:"refine" yaml:"refine"`
	StopOnScore    float64 `json:"stop_on_score" yaml:"stop_on_score"`
	ReturnBestEven bool    `json:"return_best_even" yaml:"return_best_even"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                 false,
		CaptureIntervalMillis: 50,

		TickMillis:          500,
		HistorySize:         10,
		ConfidenceThreshold: 0.60,
		StaleAfterSeconds:   30,
		StaleFractionLimit:  0.30,
		HealthFloor:         0.50,

		FailureThreshold:       3,
		RecoveryTimeoutSeconds: 30,
		SuccessThreshold:       1,
		MaxIdenticalFrames:     5,

		Level1BudgetMillis:    100,
		Level2BudgetMillis:    500,
		Level3BudgetMillis:    2000,
		PromisingThreshold:    0.30,
		DefinitiveThreshold:   0.80,
		DecisionThreshold:     0.60,
		DetectCacheTTLSeconds: 300,
		DetectCacheSize:       32,

		ExcellentScore:  0.95,
		AcceptableScore: 0.60,
		MinRegionCount:  3,
		ConfidenceFloor: 0.50,
		ConfidentRatio:  0.40,
		CalibCacheSize:  16,

		TextReader:   "heuristic",
		TextLanguage: "eng",

		MinScale:       0.60,
		MaxScale:       1.40,
		ScaleStep:      0.05,
		Threshold:      0.80,
		Stride:         4,
		Refine:         true,
		StopOnScore:    0.95,
		ReturnBestEven: true,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.CaptureIntervalMillis <= 0 {
		c.CaptureIntervalMillis = 50
	}
	if c.TickMillis <= 0 {
		c.TickMillis = 500
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 10
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = 0.60
	}
	if c.StaleAfterSeconds <= 0 {
		c.StaleAfterSeconds = 30
	}
	if c.StaleFractionLimit <= 0 || c.StaleFractionLimit > 1 {
		c.StaleFractionLimit = 0.30
	}
	if c.HealthFloor <= 0 || c.HealthFloor > 1 {
		c.HealthFloor = 0.50
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryTimeoutSeconds <= 0 {
		c.RecoveryTimeoutSeconds = 30
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.MaxIdenticalFrames <= 0 {
		c.MaxIdenticalFrames = 5
	}
	if c.Level1BudgetMillis <= 0 {
		c.Level1BudgetMillis = 100
	}
	if c.Level2BudgetMillis <= 0 {
		c.Level2BudgetMillis = 500
	}
	if c.Level3BudgetMillis <= 0 {
		c.Level3BudgetMillis = 2000
	}
	if c.PromisingThreshold <= 0 || c.PromisingThreshold > 1 {
		c.PromisingThreshold = 0.30
	}
	if c.DefinitiveThreshold <= 0 || c.DefinitiveThreshold > 1 {
		c.DefinitiveThreshold = 0.80
	}
	if c.DefinitiveThreshold < c.PromisingThreshold {
		c.DefinitiveThreshold = c.PromisingThreshold
	}
	if c.DecisionThreshold <= 0 || c.DecisionThreshold > 1 {
		c.DecisionThreshold = 0.60
	}
	if c.DetectCacheTTLSeconds <= 0 {
		c.DetectCacheTTLSeconds = 300
	}
	if c.DetectCacheSize <= 0 {
		c.DetectCacheSize = 32
	}
	if c.ExcellentScore <= 0 || c.ExcellentScore > 1 {
		c.ExcellentScore = 0.95
	}
	if c.AcceptableScore <= 0 || c.AcceptableScore > c.ExcellentScore {
		c.AcceptableScore = 0.60
	}
	if c.MinRegionCount <= 0 {
		c.MinRegionCount = 3
	}
	if c.ConfidenceFloor <= 0 || c.ConfidenceFloor > 1 {
		c.ConfidenceFloor = 0.50
	}
	if c.ConfidentRatio <= 0 || c.ConfidentRatio > 1 {
		c.ConfidentRatio = 0.40
	}
	if c.CalibCacheSize <= 0 {
		c.CalibCacheSize = 16
	}
	if c.TextReader == "" {
		c.TextReader = "heuristic"
	}
	if c.TextLanguage == "" {
		c.TextLanguage = "eng"
	}
	if c.MinScale <= 0 {
		c.MinScale = 0.60
	}
	if c.MaxScale <= 0 || c.MaxScale < c.MinScale {
		c.MaxScale = c.MinScale + 0.80
	}
	if c.ScaleStep <= 0 {
		c.ScaleStep = 0.05
	}
	if c.ScaleStep > (c.MaxScale - c.MinScale) {
		c.ScaleStep = (c.MaxScale - c.MinScale) / 4
	}
	if c.ScaleStep <= 0 {
		c.ScaleStep = 0.05
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = 0.80
	}
	if c.Stride <= 0 {
		c.Stride = 4
	}
	if c.StopOnScore < 0 || c.StopOnScore > 1 {
		c.StopOnScore = 0.95
	}
	return nil
}

// Load attempts to read configuration from the given file path. Files ending
// in .yaml/.yml are parsed as YAML, anything else as JSON. If the file does
// not exist it returns DefaultConfig(). On a decode error it returns defaults
// with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return cfg, err
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return cfg, err
		}
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
