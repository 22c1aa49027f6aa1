package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params holds the governance heuristics. Every field has a documented default and
// may be overridden from a YAML file.
type Params struct {
	Scenario   ScenarioParams   `yaml:"scenario"`
	SafetyLock SafetyLockParams `yaml:"safety_lock"`
	Parabolic  ParabolicParams  `yaml:"parabolic"`
	Bounds     BoundsParams     `yaml:"bounds"`
	Skeleton   SkeletonParams   `yaml:"skeleton"`
}

// ScenarioParams tunes similarity search over the scenario log
type ScenarioParams struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// SafetyLockParams tunes the historical-failure exposure throttle
type SafetyLockParams struct {
	MaxAnalogues       int     `yaml:"max_analogues"`
	MortalityThreshold float64 `yaml:"mortality_threshold"`
	ExposureBase       float64 `yaml:"exposure_base"`
	ExposureSlope      float64 `yaml:"exposure_slope"`
	ExposureFloor      float64 `yaml:"exposure_floor"`
	ExemplarCount      int     `yaml:"exemplar_count"`
}

// ParabolicParams tunes the parabolic exhaustion override
type ParabolicParams struct {
	MA20Multiplier   float64 `yaml:"ma20_multiplier"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
	SellPercent      float64 `yaml:"sell_percent"`
}

// BoundsParams holds the mathematical bounds and default caps
type BoundsParams struct {
	WeightTolerance         float64 `yaml:"weight_tolerance"`
	PositionCapMin          float64 `yaml:"position_cap_min"`
	PositionCapMax          float64 `yaml:"position_cap_max"`
	DefaultMaxU             float64 `yaml:"default_max_u"`
	DefaultPositionCap      float64 `yaml:"default_position_cap"`
	LadderCeilingMultiplier float64 `yaml:"ladder_ceiling_multiplier"`
	SafetyLockDefaultCap    float64 `yaml:"safety_lock_default_cap"`
}

// SkeletonParams bounds the AI parameter adjustment vector
type SkeletonParams struct {
	BiasLimit       float64 `yaml:"bias_limit"`
	AdjustmentLimit float64 `yaml:"adjustment_limit"`
}

// DefaultParams returns the production defaults
func DefaultParams() *Params {
	return &Params{
		Scenario: ScenarioParams{
			SimilarityThreshold: 0.3,
		},
		SafetyLock: SafetyLockParams{
			MaxAnalogues:       20,
			MortalityThreshold: 0.5,
			ExposureBase:       0.30,
			ExposureSlope:      0.40,
			ExposureFloor:      0.10,
			ExemplarCount:      5,
		},
		Parabolic: ParabolicParams{
			MA20Multiplier:   1.3,
			VolumeMultiplier: 2.0,
			SellPercent:      0.40,
		},
		Bounds: BoundsParams{
			WeightTolerance:         0.01,
			PositionCapMin:          0.01,
			PositionCapMax:          0.20,
			DefaultMaxU:             1.0,
			DefaultPositionCap:      0.15,
			LadderCeilingMultiplier: 1.05,
			SafetyLockDefaultCap:    0.30,
		},
		Skeleton: SkeletonParams{
			BiasLimit:       1.0,
			AdjustmentLimit: 0.5,
		},
	}
}

// LoadParams reads governance parameters from path over the defaults.
// An empty path returns the defaults.
func LoadParams(path string) (*Params, error) {
	params := DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params file %s: %w", path, err)
	}

	return params, nil
}

// Validate checks the parameters for internal consistency
func (p *Params) Validate() error {
	if p.Scenario.SimilarityThreshold < 0 || p.Scenario.SimilarityThreshold > 1 {
		return fmt.Errorf("scenario.similarity_threshold must be within [0, 1], got %v", p.Scenario.SimilarityThreshold)
	}

	sl := p.SafetyLock
	if sl.MaxAnalogues <= 0 {
		return fmt.Errorf("safety_lock.max_analogues must be positive")
	}
	if sl.MortalityThreshold <= 0 || sl.MortalityThreshold > 1 {
		return fmt.Errorf("safety_lock.mortality_threshold must be within (0, 1], got %v", sl.MortalityThreshold)
	}
	if sl.ExposureFloor <= 0 || sl.ExposureFloor > sl.ExposureBase {
		return fmt.Errorf("safety_lock.exposure_floor must be within (0, exposure_base]")
	}
	if sl.ExposureSlope < 0 {
		return fmt.Errorf("safety_lock.exposure_slope must not be negative")
	}
	if sl.ExemplarCount < 0 {
		return fmt.Errorf("safety_lock.exemplar_count must not be negative")
	}

	pb := p.Parabolic
	if pb.SellPercent < 0.30 || pb.SellPercent > 0.50 {
		return fmt.Errorf("parabolic.sell_percent must be within [0.30, 0.50], got %v", pb.SellPercent)
	}
	if pb.MA20Multiplier <= 1 || pb.VolumeMultiplier <= 1 {
		return fmt.Errorf("parabolic multipliers must be greater than 1")
	}

	b := p.Bounds
	if b.PositionCapMin <= 0 || b.PositionCapMin >= b.PositionCapMax || b.PositionCapMax > 1 {
		return fmt.Errorf("bounds.position_cap range is invalid: [%v, %v]", b.PositionCapMin, b.PositionCapMax)
	}
	if b.WeightTolerance <= 0 {
		return fmt.Errorf("bounds.weight_tolerance must be positive")
	}
	if b.DefaultMaxU <= 0 || b.DefaultMaxU > 1 {
		return fmt.Errorf("bounds.default_max_u must be within (0, 1]")
	}
	if b.DefaultPositionCap <= 0 || b.LadderCeilingMultiplier <= 0 || b.SafetyLockDefaultCap <= 0 {
		return fmt.Errorf("bounds defaults must be positive")
	}

	if p.Skeleton.BiasLimit <= 0 || p.Skeleton.AdjustmentLimit <= 0 {
		return fmt.Errorf("skeleton limits must be positive")
	}

	return nil
}
