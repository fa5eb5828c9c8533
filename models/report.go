package models

import "time"

// Report formats served by the download center. JSON is the primary payload,
// HTML the legacy fallback kept for older report dates.
const (
	ReportFormatJSON = "json"
	ReportFormatHTML = "html"
)

// RawReport is the undecoded daily report payload as fetched from the
// download center, before the processor turns it into curve points.
type RawReport struct {
	Date      time.Time
	Format    string
	Data      []byte
	FetchedAt time.Time
}
