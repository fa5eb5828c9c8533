package models

import (
	"fmt"
	"time"
)

// Granularity is the native time resolution of the source: one curve per hour.
const Granularity = time.Hour

// CurveLevel is a single step of a supply or demand curve.
type CurveLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// CurvePoint is the supply/demand curve snapshot for one hourly timestamp.
// Levels are ordered by ascending price. Points are immutable once fetched.
type CurvePoint struct {
	Timestamp time.Time    `json:"timestamp"`
	Demand    []CurveLevel `json:"demand"`
	Supply    []CurveLevel `json:"supply"`
}

// Clone returns a deep copy of the point.
func (p CurvePoint) Clone() CurvePoint {
	out := CurvePoint{
		Timestamp: p.Timestamp,
		Demand:    make([]CurveLevel, len(p.Demand)),
		Supply:    make([]CurveLevel, len(p.Supply)),
	}
	copy(out.Demand, p.Demand)
	copy(out.Supply, p.Supply)
	return out
}

// CurveRange is an ordered collection of curve points covering every hourly
// timestamp in [Start, End]. It is a transient transfer object produced by
// the reader and consumed by the index and the archive writer.
type CurveRange struct {
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
	Points []CurvePoint `json:"points"`
}

// Validate checks the range invariant: timestamps strictly increasing at
// hourly steps and covering [Start, End] inclusive.
func (r CurveRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, r.Start, r.End)
	}
	if !r.Start.Equal(r.Start.Truncate(Granularity)) {
		return fmt.Errorf("%w: start %s is not aligned to %s", ErrInvalidRange, r.Start, Granularity)
	}
	if !r.End.Equal(r.End.Truncate(Granularity)) {
		return fmt.Errorf("%w: end %s is not aligned to %s", ErrInvalidRange, r.End, Granularity)
	}
	expected := int(r.End.Sub(r.Start)/Granularity) + 1
	if len(r.Points) != expected {
		return fmt.Errorf("%w: expected %d points between %s and %s, got %d",
			ErrInvalidRange, expected, r.Start, r.End, len(r.Points))
	}
	for i, p := range r.Points {
		want := r.Start.Add(time.Duration(i) * Granularity)
		if !p.Timestamp.Equal(want) {
			return fmt.Errorf("%w: point %d has timestamp %s, expected %s",
				ErrInvalidRange, i, p.Timestamp, want)
		}
	}
	return nil
}

// Clone returns a deep copy of the range so the index can own its backing
// data without aliasing caller-held slices.
func (r CurveRange) Clone() CurveRange {
	out := CurveRange{Start: r.Start, End: r.End, Points: make([]CurvePoint, len(r.Points))}
	for i, p := range r.Points {
		out.Points[i] = p.Clone()
	}
	return out
}
