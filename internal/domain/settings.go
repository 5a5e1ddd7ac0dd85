package domain

import (
	"errors"
	"fmt"
)

const (
	DefaultThresholdSeconds = 900
	MinThresholdSeconds     = 30
	MaxThresholdSeconds     = 1800
)

// ErrThresholdOutOfRange is returned when a threshold falls outside 30..1800 seconds.
var ErrThresholdOutOfRange = errors.New("threshold out of range")

// Settings is the user-facing configuration consulted on every tick.
type Settings struct {
	ThresholdSeconds int  `json:"threshold_seconds"`
	Enabled          bool `json:"enabled"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		ThresholdSeconds: DefaultThresholdSeconds,
		Enabled:          true,
	}
}

// ValidateThreshold checks seconds against the allowed range.
func ValidateThreshold(seconds int) error {
	if seconds < MinThresholdSeconds || seconds > MaxThresholdSeconds {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrThresholdOutOfRange, seconds, MinThresholdSeconds, MaxThresholdSeconds)
	}
	return nil
}

// Validate reports whether s can be stored as-is.
func (s Settings) Validate() error {
	return ValidateThreshold(s.ThresholdSeconds)
}

// Normalize clamps a threshold loaded from storage into range.
// A zero threshold means "never written" and becomes the default.
func (s Settings) Normalize() Settings {
	switch {
	case s.ThresholdSeconds == 0:
		s.ThresholdSeconds = DefaultThresholdSeconds
	case s.ThresholdSeconds < MinThresholdSeconds:
		s.ThresholdSeconds = MinThresholdSeconds
	case s.ThresholdSeconds > MaxThresholdSeconds:
		s.ThresholdSeconds = MaxThresholdSeconds
	}
	return s
}
