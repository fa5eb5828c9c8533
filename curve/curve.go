// Package curve indexes a fetched curve range by timestamp for exact-match
// lookup and plot rendering.
package curve

import (
	"fmt"
	"time"

	"curveflow/logger"
	"curveflow/models"
	"curveflow/writer"
)

// Curve wraps a curve range with a timestamp index. It owns a deep copy of
// the range, is immutable after construction and safe for concurrent
// readers.
type Curve struct {
	data    models.CurveRange
	byStamp map[int64]int
	log     *logger.Log
}

// New builds an index over the given range. The range is validated and
// deep-copied; duplicate timestamps are a construction error.
func New(data models.CurveRange) (*Curve, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	owned := data.Clone()
	byStamp := make(map[int64]int, len(owned.Points))
	for i, p := range owned.Points {
		key := p.Timestamp.Unix()
		if _, dup := byStamp[key]; dup {
			return nil, fmt.Errorf("%w: duplicate timestamp %s", models.ErrInvalidRange, p.Timestamp)
		}
		byStamp[key] = i
	}

	log := logger.GetLogger()
	log.WithComponent("curve").WithFields(logger.Fields{
		"start":  owned.Start.Format(time.RFC3339),
		"end":    owned.End.Format(time.RFC3339),
		"points": len(owned.Points),
	}).Debug("curve index built")

	return &Curve{data: owned, byStamp: byStamp, log: log}, nil
}

// Load rebuilds an index from a local archive directory previously written
// by the archive writer.
func Load(dir string) (*Curve, error) {
	curveRange, err := writer.ReadRange(dir)
	if err != nil {
		return nil, err
	}
	return New(curveRange)
}

// Lookup returns the curve point for the exact timestamp (truncated to the
// hour). There is no nearest-neighbour fallback; absent timestamps fail
// with models.ErrNotFound.
func (c *Curve) Lookup(ts time.Time) (models.CurvePoint, error) {
	idx, ok := c.byStamp[ts.Truncate(models.Granularity).Unix()]
	if !ok {
		return models.CurvePoint{}, fmt.Errorf("%w: no curve for %s",
			models.ErrNotFound, ts.Format(time.RFC3339))
	}
	return c.data.Points[idx], nil
}

// Render looks up the curve at ts and delegates it to the renderer.
func (c *Curve) Render(ts time.Time, r Renderer) ([]byte, error) {
	point, err := c.Lookup(ts)
	if err != nil {
		return nil, err
	}
	return r.Render(point)
}

// Timestamps returns the indexed timestamps in ascending order.
func (c *Curve) Timestamps() []time.Time {
	out := make([]time.Time, len(c.data.Points))
	for i, p := range c.data.Points {
		out[i] = p.Timestamp
	}
	return out
}

// Range returns a deep copy of the backing range.
func (c *Curve) Range() models.CurveRange {
	return c.data.Clone()
}
