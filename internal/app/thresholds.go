package app

import (
	"fmt"
	"math"
)

// Thresholds are the tunable knobs of the listing evaluator. The defaults come
// from the first version of the moderation screen and have no deeper rationale,
// so every one of them can be overridden from config.
type Thresholds struct {
	AccuracyThreshold  int     `yaml:"accuracy_threshold"`
	ClarityThreshold   float64 `yaml:"clarity_threshold"`
	ApproveScore       int     `yaml:"approve_score"`
	RejectScore        int     `yaml:"reject_score"`
	RejectAmenityScore int     `yaml:"reject_amenity_score"`
	MinImages          int     `yaml:"min_images"`
	Weights            Weights `yaml:"weights"`
}

type Weights struct {
	Amenities    float64 `yaml:"amenities"`
	ImageQuality float64 `yaml:"image_quality"`
	Confidence   float64 `yaml:"confidence"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AccuracyThreshold:  70,
		ClarityThreshold:   0.6,
		ApproveScore:       80,
		RejectScore:        50,
		RejectAmenityScore: 30,
		MinImages:          3,
		Weights: Weights{
			Amenities:    0.4,
			ImageQuality: 0.3,
			Confidence:   0.3,
		},
	}
}

func (t Thresholds) Validate() error {
	pct := func(name string, v int) error {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100, got %d", name, v)
		}
		return nil
	}
	for _, c := range []struct {
		name string
		v    int
	}{
		{"accuracy_threshold", t.AccuracyThreshold},
		{"approve_score", t.ApproveScore},
		{"reject_score", t.RejectScore},
		{"reject_amenity_score", t.RejectAmenityScore},
	} {
		if err := pct(c.name, c.v); err != nil {
			return err
		}
	}
	if t.RejectScore > t.ApproveScore {
		return fmt.Errorf("reject_score (%d) above approve_score (%d)", t.RejectScore, t.ApproveScore)
	}
	if t.ClarityThreshold < 0 || t.ClarityThreshold > 1 {
		return fmt.Errorf("clarity_threshold must be within 0..1, got %v", t.ClarityThreshold)
	}
	if t.MinImages < 0 {
		return fmt.Errorf("min_images must not be negative, got %d", t.MinImages)
	}
	w := t.Weights
	if w.Amenities < 0 || w.ImageQuality < 0 || w.Confidence < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if sum := w.Amenities + w.ImageQuality + w.Confidence; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return nil
}
