package processor

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"curveflow/models"
)

func jsonReportFixture(hours int) []byte {
	var b strings.Builder
	b.WriteString(`{"market":"nordpool","date":"01.08.2022","hours":[`)
	for h := 0; h < hours; h++ {
		if h > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"valuedate":"01.08.2022 %02d:00:00",`, h)
		b.WriteString(`"demand":[{"price":200,"volume":100},{"price":50,"volume":400}],`)
		b.WriteString(`"supply":[{"price":10,"volume":150},{"price":120,"volume":500}]}`)
	}
	b.WriteString("]}")
	return []byte(b.String())
}

func htmlReportFixture(hours int) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for h := 0; h < hours; h++ {
		fmt.Fprintf(&b, `<table class="curve" data-valuedate="01.08.2022 %02d:00:00">`, h)
		b.WriteString(`<tr data-side="demand"><td class="price">200,5</td><td class="volume">100</td></tr>`)
		b.WriteString(`<tr data-side="demand"><td class="price">50</td><td class="volume">400</td></tr>`)
		b.WriteString(`<tr data-side="supply"><td class="price">10</td><td class="volume">150</td></tr>`)
		b.WriteString(`<tr data-side="supply"><td class="price">120</td><td class="volume">500</td></tr>`)
		b.WriteString("</table>")
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func TestDecodeJSONReport(t *testing.T) {
	raw := models.RawReport{
		Date:   time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC),
		Format: models.ReportFormatJSON,
		Data:   jsonReportFixture(24),
	}
	points, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("expected 24 points, got %d", len(points))
	}

	noon := points[12]
	want := time.Date(2022, 8, 1, 12, 0, 0, 0, time.UTC)
	if !noon.Timestamp.Equal(want) {
		t.Errorf("unexpected timestamp: %s", noon.Timestamp)
	}
	// Levels must come back sorted by ascending price.
	if noon.Demand[0].Price != 50 || noon.Demand[1].Price != 200 {
		t.Errorf("demand levels not sorted: %+v", noon.Demand)
	}
	if noon.Supply[0].Price != 10 || noon.Supply[1].Price != 120 {
		t.Errorf("supply levels not sorted: %+v", noon.Supply)
	}
}

func TestDecodeHTMLReport(t *testing.T) {
	raw := models.RawReport{
		Date:   time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC),
		Format: models.ReportFormatHTML,
		Data:   htmlReportFixture(24),
	}
	points, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("expected 24 points, got %d", len(points))
	}
	// Comma decimal separator handled.
	if points[0].Demand[1].Price != 200.5 {
		t.Errorf("unexpected price: %v", points[0].Demand[1].Price)
	}
}

func TestDecodeReportUnknownFormat(t *testing.T) {
	_, err := DecodeReport(models.RawReport{Format: "xls", Data: []byte("x")})
	if !errors.Is(err, models.ErrMalformedReport) {
		t.Fatalf("expected ErrMalformedReport, got %v", err)
	}
}

func TestDecodeJSONReportStrict(t *testing.T) {
	cases := map[string]string{
		"unknown field":   `{"date":"01.08.2022","hourz":[]}`,
		"empty hours":     `{"date":"01.08.2022","hours":[]}`,
		"bad valuedate":   `{"hours":[{"valuedate":"2022-08-01T00:00:00Z","demand":[{"price":1,"volume":1}],"supply":[{"price":1,"volume":1}]}]}`,
		"missing supply":  `{"hours":[{"valuedate":"01.08.2022 00:00:00","demand":[{"price":1,"volume":1}],"supply":[]}]}`,
		"not json at all": `<html></html>`,
	}
	for name, payload := range cases {
		_, err := DecodeReport(models.RawReport{Format: models.ReportFormatJSON, Data: []byte(payload)})
		if !errors.Is(err, models.ErrMalformedReport) {
			t.Errorf("%s: expected ErrMalformedReport, got %v", name, err)
		}
		if !errors.Is(err, models.ErrSourceUnavailable) {
			t.Errorf("%s: malformed report should match ErrSourceUnavailable", name)
		}
	}
}

func TestDecodeJSONReportOutOfOrderHours(t *testing.T) {
	payload := `{"hours":[
	{"valuedate":"01.08.2022 01:00:00","demand":[{"price":1,"volume":1}],"supply":[{"price":1,"volume":1}]},
	{"valuedate":"01.08.2022 00:00:00","demand":[{"price":1,"volume":1}],"supply":[{"price":1,"volume":1}]}
	]}`
	_, err := DecodeReport(models.RawReport{Format: models.ReportFormatJSON, Data: []byte(payload)})
	if !errors.Is(err, models.ErrMalformedReport) {
		t.Fatalf("expected ErrMalformedReport, got %v", err)
	}
}

func TestDecodeHTMLReportMissingCells(t *testing.T) {
	payload := `<table class="curve" data-valuedate="01.08.2022 00:00:00">
	<tr data-side="demand"><td class="price">10</td></tr></table>`
	_, err := DecodeReport(models.RawReport{Format: models.ReportFormatHTML, Data: []byte(payload)})
	if !errors.Is(err, models.ErrMalformedReport) {
		t.Fatalf("expected ErrMalformedReport, got %v", err)
	}
}

func TestDecodeShortDayReport(t *testing.T) {
	// Time-change days legitimately carry 23 hours.
	raw := models.RawReport{Format: models.ReportFormatJSON, Data: jsonReportFixture(23)}
	points, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if len(points) != 23 {
		t.Fatalf("expected 23 points, got %d", len(points))
	}
}
