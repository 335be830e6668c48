// Package chart renders close-price charts with moving-average overlays.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"stock-tracker/internal/analysis"
	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/models"
)

// MinOverlayPoints is the number of valid points an overlay must exceed to
// be drawn.
const MinOverlayPoints = 5

// Options controls what a chart covers.
type Options struct {
	Period    string
	Interval  string
	MAWindows []int
}

// DefaultOptions returns a six month daily chart with 20 and 50 day MAs.
func DefaultOptions() Options {
	return Options{
		Period:    "6mo",
		Interval:  "1d",
		MAWindows: []int{20, 50},
	}
}

// Overlay is one moving-average line aligned to the series.
type Overlay struct {
	Window int
	Label  string
	Values []decimal.NullDecimal
	Valid  int
}

// Chart is a rendered PNG and what went into it.
type Chart struct {
	Symbol   string
	PNG      []byte
	Points   int
	Overlays []Overlay
}

// Filename is the attachment name used when the chart is sent.
func (c *Chart) Filename() string {
	return c.Symbol + ".png"
}

// Plan returns the overlays that would be drawn for series, in window
// order. It depends only on the series and the windows.
func Plan(series models.PriceSeries, windows []int) []Overlay {
	closes := series.Closes()
	var overlays []Overlay
	seen := make(map[int]bool, len(windows))
	for _, w := range windows {
		if w <= 0 || seen[w] {
			continue
		}
		seen[w] = true

		sma := analysis.NewSMA(w)
		values, _ := sma.Calculate(closes)
		valid := analysis.ValidCount(values)
		if valid <= MinOverlayPoints {
			continue
		}
		overlays = append(overlays, Overlay{Window: w, Label: sma.Name(), Values: values, Valid: valid})
	}
	return overlays
}

var overlayColors = []color.Color{
	color.RGBA{R: 255, G: 140, A: 255},
	color.RGBA{R: 46, G: 160, B: 67, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

// BuildChart renders series with the overlays Plan selects. An empty series
// fails with errors.ErrNoData.
func BuildChart(series models.PriceSeries, opts Options) (*Chart, error) {
	if series.IsEmpty() {
		return nil, fmt.Errorf("chart %s: %w", series.Symbol, apperrors.ErrNoData)
	}

	overlays := Plan(series, opts.MAWindows)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Price Chart (%s, %s)", series.Symbol, opts.Period, opts.Interval)
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Price ($)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	closeXYs := make(plotter.XYs, len(series.Points))
	for i, pt := range series.Points {
		closeXYs[i].X = float64(pt.Date.Unix())
		closeXYs[i].Y = pt.Close.InexactFloat64()
	}
	closeLine, err := plotter.NewLine(closeXYs)
	if err != nil {
		return nil, fmt.Errorf("close line: %w", err)
	}
	closeLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	closeLine.Width = vg.Points(1.5)
	p.Add(closeLine)
	p.Legend.Add("Close Price", closeLine)

	for i, o := range overlays {
		xys := make(plotter.XYs, 0, o.Valid)
		for j, v := range o.Values {
			if !v.Valid {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(series.Points[j].Date.Unix()), Y: v.Decimal.InexactFloat64()})
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", o.Label, err)
		}
		line.Color = overlayColors[i%len(overlayColors)]
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(o.Label, line)
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}

	return &Chart{
		Symbol:   series.Symbol,
		PNG:      buf.Bytes(),
		Points:   series.Len(),
		Overlays: overlays,
	}, nil
}
