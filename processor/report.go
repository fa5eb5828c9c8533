// Package processor decodes raw daily market reports into curve points.
// Decoding is strict: payloads that do not match the expected schema fail
// with models.ErrMalformedReport instead of being coerced.
package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"curveflow/logger"
	"curveflow/models"
)

// valuedateLayout is the timestamp format used inside report payloads,
// e.g. "01.08.2022 12:00:00".
const valuedateLayout = "02.01.2006 15:04:05"

// jsonReport is the schema of the primary JSON report payload. One document
// covers a single day and carries the hourly buy (demand) and sell (supply)
// curves.
type jsonReport struct {
	Market string     `json:"market"`
	Date   string     `json:"date"`
	Hours  []jsonHour `json:"hours"`
}

type jsonHour struct {
	Valuedate string           `json:"valuedate"`
	Demand    []jsonCurveLevel `json:"demand"`
	Supply    []jsonCurveLevel `json:"supply"`
}

type jsonCurveLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// DecodeReport turns a raw daily report into its hourly curve points,
// ordered by ascending timestamp.
func DecodeReport(raw models.RawReport) ([]models.CurvePoint, error) {
	var points []models.CurvePoint
	var err error

	switch raw.Format {
	case models.ReportFormatJSON:
		points, err = decodeJSONReport(raw.Data)
	case models.ReportFormatHTML:
		points, err = decodeHTMLReport(raw.Data)
	default:
		return nil, fmt.Errorf("%w: unknown report format '%s'", models.ErrMalformedReport, raw.Format)
	}
	if err != nil {
		return nil, err
	}

	if err := checkPoints(points); err != nil {
		return nil, err
	}

	logger.IncrementCurvesParsed(len(points))
	return points, nil
}

func decodeJSONReport(data []byte) ([]models.CurvePoint, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var report jsonReport
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedReport, err)
	}

	points := make([]models.CurvePoint, 0, len(report.Hours))
	for i, hour := range report.Hours {
		ts, err := parseValuedate(hour.Valuedate)
		if err != nil {
			return nil, fmt.Errorf("%w: hour %d: %v", models.ErrMalformedReport, i, err)
		}
		point := models.CurvePoint{
			Timestamp: ts,
			Demand:    convertLevels(hour.Demand),
			Supply:    convertLevels(hour.Supply),
		}
		points = append(points, point)
	}
	return points, nil
}

func convertLevels(in []jsonCurveLevel) []models.CurveLevel {
	out := make([]models.CurveLevel, len(in))
	for i, l := range in {
		out[i] = models.CurveLevel{Price: l.Price, Volume: l.Volume}
	}
	sortLevels(out)
	return out
}

// sortLevels orders curve steps by ascending price so lookups and renders
// see a deterministic step function regardless of payload order.
func sortLevels(levels []models.CurveLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price < levels[j].Price
	})
}

func parseValuedate(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(valuedateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid valuedate %q: %v", s, err)
	}
	return ts, nil
}

// checkPoints enforces the per-report invariant: at least one hour, every
// hour carries both curves, timestamps strictly increasing. Reports around
// a time change may carry 23 or 25 hours, so only ordering is enforced
// here; range coverage is checked by the reader once the whole span is
// assembled.
func checkPoints(points []models.CurvePoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: report contains no hourly curves", models.ErrMalformedReport)
	}
	for i, p := range points {
		if len(p.Demand) == 0 || len(p.Supply) == 0 {
			return fmt.Errorf("%w: hour %s is missing a demand or supply curve",
				models.ErrMalformedReport, p.Timestamp)
		}
		if i > 0 && !points[i-1].Timestamp.Before(p.Timestamp) {
			return fmt.Errorf("%w: hour timestamps not strictly increasing at %s",
				models.ErrMalformedReport, p.Timestamp)
		}
	}
	return nil
}
