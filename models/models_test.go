package models

import (
	"errors"
	"testing"
	"time"
)

func hourlyRange(start time.Time, hours int) CurveRange {
	points := make([]CurvePoint, hours)
	for i := range points {
		points[i] = CurvePoint{
			Timestamp: start.Add(time.Duration(i) * Granularity),
			Demand:    []CurveLevel{{Price: 50, Volume: 400}},
			Supply:    []CurveLevel{{Price: 10, Volume: 150}},
		}
	}
	return CurveRange{
		Start:  start,
		End:    start.Add(time.Duration(hours-1) * Granularity),
		Points: points,
	}
}

func TestCurveRangeValidate(t *testing.T) {
	start := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)

	r := hourlyRange(start, 49)
	if err := r.Validate(); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}

	gap := hourlyRange(start, 49)
	gap.Points = append(gap.Points[:10], gap.Points[11:]...)
	if err := gap.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for gap, got %v", err)
	}

	swapped := hourlyRange(start, 3)
	swapped.Points[0], swapped.Points[1] = swapped.Points[1], swapped.Points[0]
	if err := swapped.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for out-of-order points, got %v", err)
	}

	backwards := CurveRange{Start: start.Add(Granularity), End: start}
	if err := backwards.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for backwards bounds, got %v", err)
	}

	misaligned := hourlyRange(start.Add(30*time.Minute), 3)
	if err := misaligned.Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for non-hour-aligned bounds, got %v", err)
	}
}

func TestCurveRangeClone(t *testing.T) {
	start := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	original := hourlyRange(start, 2)

	clone := original.Clone()
	clone.Points[0].Demand[0].Price = 9999

	if original.Points[0].Demand[0].Price == 9999 {
		t.Fatal("clone aliases the original demand levels")
	}
}

func TestMalformedReportMatchesSourceUnavailable(t *testing.T) {
	if !errors.Is(ErrMalformedReport, ErrSourceUnavailable) {
		t.Fatal("ErrMalformedReport must wrap ErrSourceUnavailable")
	}
}
