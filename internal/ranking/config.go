package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// RiskWeights are the additive boosts for each risk flag.
type RiskWeights struct {
	LongStay         float64 `json:"long_stay"`         // default: 0.30
	Senior           float64 `json:"senior"`            // default: 0.20
	Medical          float64 `json:"medical"`           // default: 0.20
	OverlookedGroup  float64 `json:"overlooked_group"`  // default: 0.15
	RecentlyReturned float64 `json:"recently_returned"` // default: 0.25
}

// ProfileWeights are the soft boosts for adopter profile matches.
type ProfileWeights struct {
	ActivityMatch   float64 `json:"activity_match"`   // default: 0.10
	HomeMatch       float64 `json:"home_match"`       // default: 0.08
	ExperienceMatch float64 `json:"experience_match"` // default: 0.07
}

// Weights holds all scoring weight configuration.
type Weights struct {
	Risk RiskWeights `json:"risk"`

	// RiskCap bounds the summed risk boost (default: 0.40).
	RiskCap float64 `json:"risk_cap"`

	Profile ProfileWeights `json:"profile"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default scoring weights.
//
// The base score is days since the Unix epoch, so a boost of 0.30 is worth
// roughly seven hours of listing recency. The cap keeps a candidate with
// every risk flag from outranking listings more than ~10 hours newer.
func DefaultWeights() *Weights {
	return &Weights{
		Risk: RiskWeights{
			LongStay:         0.30,
			Senior:           0.20,
			Medical:          0.20,
			OverlookedGroup:  0.15,
			RecentlyReturned: 0.25,
		},
		RiskCap: 0.40,
		Profile: ProfileWeights{
			ActivityMatch:   0.10,
			HomeMatch:       0.08,
			ExperienceMatch: 0.07,
		},
	}
}

// LoadCalibration loads weights from a JSON calibration file.
// An empty path returns defaults. On read or parse errors the defaults are
// returned alongside the error so callers can log and continue.
// Partial configurations are merged over defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration returns base with every non-zero override applied.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	for _, f := range weightFields(&result) {
		if v := *f.get(override); v != 0 {
			*f.ptr = v
		}
	}
	return &result
}

type weightField struct {
	name string
	ptr  *float64
	get  func(*Weights) *float64
}

// weightFields enumerates every tunable weight of w by its JSON path.
func weightFields(w *Weights) []weightField {
	return []weightField{
		{"risk.long_stay", &w.Risk.LongStay, func(o *Weights) *float64 { return &o.Risk.LongStay }},
		{"risk.senior", &w.Risk.Senior, func(o *Weights) *float64 { return &o.Risk.Senior }},
		{"risk.medical", &w.Risk.Medical, func(o *Weights) *float64 { return &o.Risk.Medical }},
		{"risk.overlooked_group", &w.Risk.OverlookedGroup, func(o *Weights) *float64 { return &o.Risk.OverlookedGroup }},
		{"risk.recently_returned", &w.Risk.RecentlyReturned, func(o *Weights) *float64 { return &o.Risk.RecentlyReturned }},
		{"risk_cap", &w.RiskCap, func(o *Weights) *float64 { return &o.RiskCap }},
		{"profile.activity_match", &w.Profile.ActivityMatch, func(o *Weights) *float64 { return &o.Profile.ActivityMatch }},
		{"profile.home_match", &w.Profile.HomeMatch, func(o *Weights) *float64 { return &o.Profile.HomeMatch }},
		{"profile.experience_match", &w.Profile.ExperienceMatch, func(o *Weights) *float64 { return &o.Profile.ExperienceMatch }},
	}
}

// logCalibrationOverrides logs which weights differ from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string
	for _, f := range weightFields(loaded) {
		if d := *f.get(defaults); d != *f.ptr {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, d, *f.ptr))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
