package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalYAML = `curveflow:
  name: "TestApp"
  version: "1.0"
reader:
  max_workers: 2
  timeout: 5s
source:
  nordpool:
    base_url: "https://example.com/reports/"
storage:
  s3:
    enabled: false
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Curveflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Curveflow.Name)
	}
	if cfg.Reader.MaxWorkers != 2 {
		t.Errorf("unexpected max workers: %d", cfg.Reader.MaxWorkers)
	}
	if cfg.Reader.Timeout.Std() != 5*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Reader.Timeout.Std())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.Nordpool.ReportPrefix != "mcp_data_report_" {
		t.Errorf("unexpected report prefix: %s", cfg.Source.Nordpool.ReportPrefix)
	}
	if len(cfg.Source.Nordpool.Formats) != 2 || cfg.Source.Nordpool.Formats[0] != "json" {
		t.Errorf("unexpected formats: %v", cfg.Source.Nordpool.Formats)
	}
	if cfg.Reader.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry attempts: %d", cfg.Reader.Retry.MaxAttempts)
	}
	if cfg.Writer.Compression != "snappy" {
		t.Errorf("unexpected compression: %s", cfg.Writer.Compression)
	}
}

func TestLoadConfigMissingBaseURL(t *testing.T) {
	path := writeTempConfig(t, `curveflow:
  name: "TestApp"
  version: "1.0"
reader:
  max_workers: 1
  timeout: 5s
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing base_url")
	} else if !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigBadCompression(t *testing.T) {
	path := writeTempConfig(t, minimalYAML+`writer:
  max_workers: 1
  compression: "zstd"
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported compression")
	}
}

func TestLoadConfigS3Validation(t *testing.T) {
	path := writeTempConfig(t, minimalYAML+`  local:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.S3.Enabled {
		t.Fatal("expected s3 to stay disabled")
	}

	bad := strings.Replace(minimalYAML, "enabled: false", `enabled: true
    bucket: "Bad..Bucket"
    region: "eu-west-1"
    access_key_id: "k"
    secret_access_key: "s"`, 1)
	path = writeTempConfig(t, bad)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid bucket name")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := map[string]bool{
		"curve-archive":       true,
		"ab":                  false,
		"UPPER":               false,
		"double..dot":         false,
		".leading":            false,
		"trailing.":           false,
		"curve.archive.eu-w1": true,
	}
	for name, want := range cases {
		if got := isValidS3Bucket(name); got != want {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", name, got, want)
		}
	}
}
