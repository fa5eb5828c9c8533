package processor

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"curveflow/models"
)

// decodeHTMLReport parses the legacy HTML rendition of a daily report. The
// download center emits one table per hour:
//
//	<table class="curve" data-valuedate="01.08.2022 12:00:00">
//	  <tr data-side="demand"><td class="price">...</td><td class="volume">...</td></tr>
//	  <tr data-side="supply">...</tr>
//	</table>
func decodeHTMLReport(data []byte) ([]models.CurvePoint, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedReport, err)
	}

	var points []models.CurvePoint
	var parseErr error

	doc.Find("table.curve").EachWithBreak(func(i int, table *goquery.Selection) bool {
		valuedate, ok := table.Attr("data-valuedate")
		if !ok {
			parseErr = fmt.Errorf("%w: table %d has no data-valuedate attribute", models.ErrMalformedReport, i)
			return false
		}
		ts, err := parseValuedate(valuedate)
		if err != nil {
			parseErr = fmt.Errorf("%w: table %d: %v", models.ErrMalformedReport, i, err)
			return false
		}

		point := models.CurvePoint{Timestamp: ts}
		table.Find("tr[data-side]").EachWithBreak(func(j int, row *goquery.Selection) bool {
			side, _ := row.Attr("data-side")
			level, err := parseLevelRow(row)
			if err != nil {
				parseErr = fmt.Errorf("%w: table %d row %d: %v", models.ErrMalformedReport, i, j, err)
				return false
			}
			switch side {
			case "demand":
				point.Demand = append(point.Demand, level)
			case "supply":
				point.Supply = append(point.Supply, level)
			default:
				parseErr = fmt.Errorf("%w: table %d row %d has unknown side '%s'", models.ErrMalformedReport, i, j, side)
				return false
			}
			return true
		})
		if parseErr != nil {
			return false
		}

		sortLevels(point.Demand)
		sortLevels(point.Supply)
		points = append(points, point)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no curve tables found", models.ErrMalformedReport)
	}
	return points, nil
}

func parseLevelRow(row *goquery.Selection) (models.CurveLevel, error) {
	price, err := parseCell(row, "td.price")
	if err != nil {
		return models.CurveLevel{}, err
	}
	volume, err := parseCell(row, "td.volume")
	if err != nil {
		return models.CurveLevel{}, err
	}
	return models.CurveLevel{Price: price, Volume: volume}, nil
}

func parseCell(row *goquery.Selection, selector string) (float64, error) {
	cell := row.Find(selector).First()
	if cell.Length() == 0 {
		return 0, fmt.Errorf("missing %s cell", selector)
	}
	text := strings.TrimSpace(cell.Text())
	// Report cells use comma decimal separators.
	text = strings.ReplaceAll(text, ",", ".")
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", selector, text)
	}
	return value, nil
}
