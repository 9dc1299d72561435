package models

import (
	"fmt"
	"time"
)

// TimeInterval is a half-open instant range [Start, End).
type TimeInterval struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
}

// Validate checks the Start < End invariant.
func (iv TimeInterval) Validate() error {
	if !iv.Start.Before(iv.End) {
		return fmt.Errorf("invalid interval: start %s is not before end %s", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls inside the interval.
func (iv TimeInterval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Duration returns the interval length.
func (iv TimeInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}
