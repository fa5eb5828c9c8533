package logger

import (
	"os"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestDashboardMetricWidget(t *testing.T) {
	w := dashboardMetricWidget(6, "CurveFlow Crawl", "Maximum", []string{
		"CurveFlow-ReportsFetched",
		"CurveFlow-CurvesParsed",
	})
	if w.Type != "metric" || w.Y != 6 {
		t.Fatalf("unexpected widget layout: %+v", w)
	}
	if w.Properties.Stat != "Maximum" || w.Properties.Title != "CurveFlow Crawl" {
		t.Fatalf("unexpected widget properties: %+v", w.Properties)
	}
	if len(w.Properties.Metrics) != 2 || w.Properties.Metrics[0][1] != "CurveFlow-ReportsFetched" {
		t.Fatalf("unexpected widget metrics: %v", w.Properties.Metrics)
	}
	for _, m := range w.Properties.Metrics {
		if m[0] != cwNamespace {
			t.Fatalf("metric %v not bound to namespace %s", m, cwNamespace)
		}
	}
}
