// Package writer archives fetched curve ranges as parquet files, locally
// and optionally in S3, and loads archived ranges back.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "curveflow/config"
	"curveflow/logger"
	"curveflow/models"
)

// ArchiveWriter persists curve ranges. One parquet object is written per
// calendar day, keyed date=YYYY-MM-DD/nordpool_curves_<date>_<crawl>.parquet.
type ArchiveWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

// NewArchiveWriter creates an archive writer for the configured storage
// backends. The S3 client is only set up when S3 storage is enabled.
func NewArchiveWriter(cfg *appconfig.Config) (*ArchiveWriter, error) {
	log := logger.GetLogger()

	w := &ArchiveWriter{config: cfg, log: log}

	if cfg.Storage.Local.Enabled {
		if err := os.MkdirAll(cfg.Storage.Local.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	if cfg.Storage.S3.Enabled {
		ctx := context.Background()

		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Storage.S3.Region),
		}
		if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Storage.S3.AccessKeyID,
					cfg.Storage.S3.SecretAccessKey,
					"",
				),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			log.WithComponent("archive_writer").WithError(err).Warn("failed to load AWS configuration")
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		creds, err := awsCfg.Credentials.Retrieve(ctx)
		if err != nil || !creds.HasKeys() {
			return nil, fmt.Errorf("aws credentials not found")
		}

		w.s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Storage.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
			}
			o.UsePathStyle = cfg.Storage.S3.PathStyle
		})

		log.WithComponent("archive_writer").WithFields(logger.Fields{
			"bucket":     cfg.Storage.S3.Bucket,
			"region":     cfg.Storage.S3.Region,
			"endpoint":   cfg.Storage.S3.Endpoint,
			"path_style": cfg.Storage.S3.PathStyle,
		}).Info("s3 archive initialized")
	}

	return w, nil
}

// dayBatch is the unit of archival: all curve points of one calendar day.
type dayBatch struct {
	date   time.Time
	points []models.CurvePoint
}

// WriteRange archives the whole range, one object per day, using a bounded
// worker pool. The first failure aborts remaining work.
func (w *ArchiveWriter) WriteRange(ctx context.Context, curveRange models.CurveRange) error {
	if !w.config.Storage.Local.Enabled && w.s3Client == nil {
		return fmt.Errorf("no storage backend enabled")
	}
	if err := curveRange.Validate(); err != nil {
		return err
	}

	crawlID := uuid.New().String()
	batches := splitByDay(curveRange.Points)

	log := w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"crawl_id": crawlID,
		"days":     len(batches),
		"points":   len(curveRange.Points),
	})
	log.Info("archiving curve range")

	workers := w.config.Writer.MaxWorkers
	if w.s3Client != nil && w.config.Storage.S3.UploadConcurrency > workers {
		workers = w.config.Storage.S3.UploadConcurrency
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan dayBatch)
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				if err := w.writeDay(writeCtx, crawlID, batch); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
			}
		}()
	}

feed:
	for _, batch := range batches {
		select {
		case jobs <- batch:
		case <-writeCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info("curve range archived")
	return nil
}

func (w *ArchiveWriter) writeDay(ctx context.Context, crawlID string, batch dayBatch) error {
	log := w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"crawl_id": crawlID,
		"date":     batch.date.Format("2006-01-02"),
		"points":   len(batch.points),
	})

	data, err := encodeParquet(recordsFromPoints(batch.points), w.config.Writer.Compression)
	if err != nil {
		log.WithError(err).Error("failed to encode parquet file")
		return err
	}

	key := archiveKey(crawlID, batch.date)

	if w.config.Storage.Local.Enabled {
		path := filepath.Join(w.config.Storage.Local.Dir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create partition directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.WithError(err).Error("failed to write local archive file")
			return fmt.Errorf("failed to write archive file: %w", err)
		}
		logger.IncrementParquetWrite(int64(len(data)))
		log.WithFields(logger.Fields{"path": path, "file_size": len(data)}).Info("archive file written")
	}

	if w.s3Client != nil {
		if err := w.uploadToS3(ctx, key, data); err != nil {
			log.WithError(err).
				WithEnv("S3_BUCKET").
				WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket, "s3_key": key}).
				Error("failed to upload to S3")
			return err
		}
		logger.IncrementS3Upload(int64(len(data)))
		log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("archive object uploaded")
	}

	return nil
}

func (w *ArchiveWriter) uploadToS3(ctx context.Context, key string, data []byte) error {
	_, err := w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3 object: %w", err)
	}
	return nil
}

// archiveKey builds the hive-style partition path for one day's curves.
func archiveKey(crawlID string, date time.Time) string {
	return fmt.Sprintf("date=%s/nordpool_curves_%s_%s.parquet",
		date.Format("2006-01-02"), date.Format("20060102"), crawlID)
}

// splitByDay groups points by calendar day, preserving timestamp order.
func splitByDay(points []models.CurvePoint) []dayBatch {
	var batches []dayBatch
	for _, p := range points {
		day := time.Date(p.Timestamp.Year(), p.Timestamp.Month(), p.Timestamp.Day(),
			0, 0, 0, 0, p.Timestamp.Location())
		if len(batches) == 0 || !batches[len(batches)-1].date.Equal(day) {
			batches = append(batches, dayBatch{date: day})
		}
		batches[len(batches)-1].points = append(batches[len(batches)-1].points, p)
	}
	return batches
}
