package curve

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"curveflow/models"
)

// Renderer turns a single curve point into a visual artifact.
type Renderer interface {
	Render(point models.CurvePoint) ([]byte, error)
}

// PlotRenderer renders a supply/demand step chart as a PNG: demand in
// black, supply in red, volume on the x axis and price on the y axis.
type PlotRenderer struct {
	Width  vg.Length
	Height vg.Length
}

// NewPlotRenderer returns a PlotRenderer with the default canvas size.
func NewPlotRenderer() *PlotRenderer {
	return &PlotRenderer{Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

func (r *PlotRenderer) Render(point models.CurvePoint) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Supply/Demand %s", point.Timestamp.Format("02-01-2006 15:04"))
	p.X.Label.Text = "volume [MW]"
	p.Y.Label.Text = "price [EUR]"
	p.Add(plotter.NewGrid())

	demand, err := stepLine(point.Demand, color.Black)
	if err != nil {
		return nil, fmt.Errorf("render demand curve: %w", err)
	}
	supply, err := stepLine(point.Supply, color.RGBA{R: 0xff, A: 0xff})
	if err != nil {
		return nil, fmt.Errorf("render supply curve: %w", err)
	}

	p.Add(demand, supply)
	p.Legend.Add("demand", demand)
	p.Legend.Add("supply", supply)
	p.Legend.Top = true

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode plot: %w", err)
	}
	return buf.Bytes(), nil
}

// stepLine plots the levels as a step function ordered by volume, the way
// the market publishes aggregated bid curves.
func stepLine(levels []models.CurveLevel, c color.Color) (*plotter.Line, error) {
	sorted := make([]models.CurveLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Volume < sorted[j].Volume
	})

	xys := make(plotter.XYs, len(sorted))
	for i, l := range sorted {
		xys[i] = plotter.XY{X: l.Volume, Y: l.Price}
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.StepStyle = plotter.PostStep
	line.Color = c
	return line, nil
}
