package valueobjects

import (
	"encoding/json"
	"math"

	pkgerrors "synergy-backend/pkg/errors"
)

// Score is a synergy score in [0, 1].
type Score struct {
	value float64
}

// NewScore validates and wraps a raw score
func NewScore(value float64) (Score, error) {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return Score{}, pkgerrors.NewInvalidScoreError(value)
	}
	return Score{value: value}, nil
}

// MustScore is NewScore for literals known to be valid.
func MustScore(value float64) Score {
	s, err := NewScore(value)
	if err != nil {
		panic(err)
	}
	return s
}

// Float64 returns the raw score
func (s Score) Float64() float64 {
	return s.value
}

// Meets reports whether the score reaches threshold (inclusive).
func (s Score) Meets(threshold float64) bool {
	return s.value >= threshold
}

// GreaterThan reports whether s is strictly greater than other.
func (s Score) GreaterThan(other Score) bool {
	return s.value > other.value
}

// Equals checks if two scores are equal
func (s Score) Equals(other Score) bool {
	return s.value == other.value
}

// MarshalJSON implements json.Marshaler
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewScore(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
