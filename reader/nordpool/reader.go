// Package nordpool fetches daily supply/demand curve reports from the
// Nord Pool download center and assembles them into hourly curve ranges.
package nordpool

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"curveflow/config"
	"curveflow/logger"
	"curveflow/models"
	"curveflow/processor"
)

// Reader downloads curve reports for a date range. The zero value is not
// usable; construct with NewReader. A Reader is safe for concurrent use up
// to the parallelism bound passed to LoadCurveRange.
type Reader struct {
	config  *config.Config
	client  *resty.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewReader creates a Reader from the source and reader sections of the
// configuration.
func NewReader(cfg *config.Config) *Reader {
	log := logger.GetLogger()

	pool := cfg.Source.Nordpool.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout.Std(),
	}

	client := resty.New().
		SetBaseURL(cfg.Source.Nordpool.BaseURL).
		SetTimeout(cfg.Reader.Timeout.Std()).
		SetTransport(transport)

	if cfg.Reader.Retry.MaxAttempts > 1 {
		client.
			SetRetryCount(cfg.Reader.Retry.MaxAttempts - 1).
			SetRetryWaitTime(cfg.Reader.Retry.BaseDelay.Std()).
			SetRetryMaxWaitTime(cfg.Reader.Retry.MaxDelay.Std()).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				// 404 means the report does not exist in this format;
				// that is handled by the format fallback, not by retrying.
				return r.StatusCode() >= http.StatusInternalServerError
			})
	}

	var limiter *rate.Limiter
	rl := cfg.Reader.RateLimit
	if rl.RequestsPerSecond > 0 {
		burst := rl.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}

	log.WithComponent("nordpool_reader").WithFields(logger.Fields{
		"base_url":    cfg.Source.Nordpool.BaseURL,
		"timeout":     cfg.Reader.Timeout.Std(),
		"max_workers": cfg.Reader.MaxWorkers,
	}).Info("nordpool reader initialized")

	return &Reader{
		config:  cfg,
		client:  client,
		limiter: limiter,
		log:     log,
	}
}

// LoadCurveRange fetches every hourly curve in [start, end]. Bounds are
// truncated to the hour. The retrieval unit is the source's daily report;
// fetched hours outside the requested bounds are trimmed. parallelism bounds
// the number of concurrent report downloads; 1 means strictly sequential.
//
// The returned range is always sorted by ascending timestamp regardless of
// download completion order. Any report that cannot be fetched or decoded
// fails the whole range (fail-fast).
func (r *Reader) LoadCurveRange(ctx context.Context, start, end time.Time, parallelism int) (models.CurveRange, error) {
	start = start.Truncate(models.Granularity)
	end = end.Truncate(models.Granularity)
	if start.After(end) {
		return models.CurveRange{}, fmt.Errorf("%w: start %s after end %s",
			models.ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	log := r.log.WithComponent("nordpool_reader").WithFields(logger.Fields{
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"parallelism": parallelism,
	})

	if parallelism < 1 {
		log.Warn("parallelism below 1, falling back to sequential fetching")
		parallelism = 1
	}

	days := reportDates(start, end)
	if parallelism > len(days) {
		parallelism = len(days)
	}
	log.WithFields(logger.Fields{"days": len(days), "workers": parallelism}).Info("loading curve range")

	results, err := r.fetchDays(ctx, days, parallelism)
	if err != nil {
		return models.CurveRange{}, err
	}

	points := make([]models.CurvePoint, 0, len(days)*24)
	for _, dayPoints := range results {
		for _, p := range dayPoints {
			if p.Timestamp.Before(start) || p.Timestamp.After(end) {
				continue
			}
			points = append(points, p)
		}
	}

	curveRange := models.CurveRange{Start: start, End: end, Points: points}
	if err := curveRange.Validate(); err != nil {
		return models.CurveRange{}, fmt.Errorf("%w: assembled range has gaps: %v",
			models.ErrSourceUnavailable, err)
	}

	log.WithFields(logger.Fields{"points": len(points)}).Info("curve range loaded")
	return curveRange, nil
}

// fetchDays downloads one report per day using a bounded worker pool.
// Results are slotted by day index so completion order never leaks into the
// output.
func (r *Reader) fetchDays(ctx context.Context, days []time.Time, workers int) ([][]models.CurvePoint, error) {
	results := make([][]models.CurvePoint, len(days))
	jobs := make(chan int)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				points, err := r.loadCurveDate(fetchCtx, days[idx])
				if err != nil {
					fail(err)
					return
				}
				results[idx] = points
			}
		}()
	}

feed:
	for idx := range days {
		select {
		case jobs <- idx:
		case <-fetchCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// loadCurveDate fetches the daily report for one date, trying each
// configured payload format in order. A 404 moves on to the next format,
// mirroring the download center's xls/xlsx split for older dates.
func (r *Reader) loadCurveDate(ctx context.Context, date time.Time) ([]models.CurvePoint, error) {
	log := r.log.WithComponent("nordpool_reader").WithFields(logger.Fields{
		"date":      date.Format("2006-01-02"),
		"operation": "load_curve_date",
	})

	started := time.Now()
	for _, format := range r.config.Source.Nordpool.Formats {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := r.client.R().SetContext(ctx).Get(reportPath(r.config.Source.Nordpool.ReportPrefix, date, format))
		if err != nil {
			return nil, fmt.Errorf("%w: fetch report for %s: %v",
				models.ErrSourceUnavailable, date.Format("2006-01-02"), err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			log.WithFields(logger.Fields{"format": format}).Warn("report not found, trying fallback format")
			continue
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: report for %s returned status %d",
				models.ErrSourceUnavailable, date.Format("2006-01-02"), resp.StatusCode())
		}

		raw := models.RawReport{
			Date:      date,
			Format:    format,
			Data:      resp.Body(),
			FetchedAt: time.Now(),
		}
		logger.IncrementReportFetched(len(raw.Data))

		points, err := processor.DecodeReport(raw)
		if err != nil {
			return nil, fmt.Errorf("report for %s: %w", date.Format("2006-01-02"), err)
		}

		logger.LogPerformanceEntry(log, "nordpool_reader", "load_curve_date", time.Since(started), logger.Fields{
			"format": format,
			"points": len(points),
			"bytes":  len(raw.Data),
		})
		return points, nil
	}

	return nil, fmt.Errorf("%w: no report found for %s in any configured format",
		models.ErrSourceUnavailable, date.Format("2006-01-02"))
}

// reportPath builds the report file name for a date, e.g.
// "mcp_data_report_01-08-2022-00_00_00.json".
func reportPath(prefix string, date time.Time, format string) string {
	return fmt.Sprintf("%s%s-00_00_00.%s", prefix, date.Format("02-01-2006"), format)
}

// reportDates lists the midnights of every day whose report overlaps
// [start, end].
func reportDates(start, end time.Time) []time.Time {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	var days []time.Time
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
