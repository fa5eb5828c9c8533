package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"curveflow/config"
	"curveflow/curve"
	"curveflow/logger"
	"curveflow/reader/nordpool"
	"curveflow/writer"
)

const dateLayout = "2006-01-02"

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	startArg := flag.String("start", "", "First hour of the range (YYYY-MM-DD or RFC3339)")
	endArg := flag.String("end", "", "Last hour of the range (YYYY-MM-DD or RFC3339)")
	jobs := flag.Int("jobs", 0, "Number of concurrent fetch workers (0 uses reader.max_workers)")
	plotArg := flag.String("plot", "", "Timestamp within the range to render (RFC3339)")
	plotOut := flag.String("plot-out", "curve.png", "Output file for the rendered plot")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Curveflow.Name,
		"version": cfg.Curveflow.Version,
	}).Info("starting curveflow")

	start, err := parseTimeArg(*startArg)
	if err != nil {
		log.WithError(err).Error("invalid -start")
		os.Exit(1)
	}
	end, err := parseTimeArg(*endArg)
	if err != nil {
		log.WithError(err).Error("invalid -end")
		os.Exit(1)
	}

	parallelism := *jobs
	if parallelism <= 0 {
		parallelism = cfg.Reader.MaxWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		if cfg.Storage.S3.Enabled {
			logger.InitCloudWatch(cfg.Storage.S3.Region, "CurveFlow", cfg.Logging.DashboardName)
		}
		logger.StartReport(ctx, log, 30*time.Second)
	}

	// Cancel the crawl on SIGINT/SIGTERM instead of killing it mid-write.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	reader := nordpool.NewReader(cfg)

	crawlStart := time.Now()
	curveRange, err := reader.LoadCurveRange(ctx, start, end, parallelism)
	if err != nil {
		log.WithError(err).Error("crawl failed")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"start":    curveRange.Start.Format(time.RFC3339),
		"end":      curveRange.End.Format(time.RFC3339),
		"points":   len(curveRange.Points),
		"duration": time.Since(crawlStart).String(),
	}).Info("crawl completed")

	if cfg.Storage.Local.Enabled || cfg.Storage.S3.Enabled {
		archive, err := writer.NewArchiveWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive writer")
			os.Exit(1)
		}
		if err := archive.WriteRange(ctx, curveRange); err != nil {
			log.WithError(err).Error("failed to archive curves")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("storage disabled; skipping archive")
	}

	if *plotArg != "" {
		ts, err := time.Parse(time.RFC3339, *plotArg)
		if err != nil {
			log.WithError(err).Error("invalid -plot")
			os.Exit(1)
		}
		c, err := curve.New(curveRange)
		if err != nil {
			log.WithError(err).Error("failed to index curves")
			os.Exit(1)
		}
		png, err := c.Render(ts, curve.NewPlotRenderer())
		if err != nil {
			log.WithError(err).Error("failed to render curve")
			os.Exit(1)
		}
		if err := os.WriteFile(*plotOut, png, 0o644); err != nil {
			log.WithError(err).Error("failed to write plot file")
			os.Exit(1)
		}
		log.WithFields(logger.Fields{"file": *plotOut}).Info("plot written")
	}

	log.Info("curveflow finished")
}

// parseTimeArg accepts either a plain date or a full RFC3339 timestamp and
// normalizes the result to UTC.
func parseTimeArg(arg string) (time.Time, error) {
	if arg == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	if t, err := time.Parse(dateLayout, arg); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %s or RFC3339, got %q: %w", dateLayout, arg, err)
	}
	return t.UTC(), nil
}
