package charts

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"extruder/domain/spc"
	engine "extruder/internal/spc"
)

// Default PNG size
const (
	DefaultWidth  = 1100
	DefaultHeight = 420
)

// Renderer draws analysis reports as PNG charts
type Renderer struct {
	width  int
	height int
}

// NewRenderer creates a renderer; non-positive sizes use the defaults
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{width: width, height: height}
}

func lineStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: width}
}

func dashedStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: width, StrokeDashArray: []float64{4, 4}}
}

func decimals(places int) chart.ValueFormatter {
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.*f", places, f)
		}
		return ""
	}
}

// ControlChart plots the working sample against its position in the trimmed
// sequence, with the centre line, 3-sigma limits and reference lines.
func (r *Renderer) ControlChart(w io.Writer, report *engine.Report) error {
	points := report.Sample.Points
	if len(points) == 0 {
		return spc.ErrEmptySample
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Position)
		ys[i] = p.Value
	}
	xMin, xMax := xs[0], xs[len(xs)-1]
	if xMin == xMax {
		xMin, xMax = xMin-1, xMax+1
	}

	data := lineStyle(chart.ColorBlue, 1)
	if len(points) <= 200 {
		data.DotWidth = 3
		data.DotColor = chart.ColorBlue
	}

	stats := report.Statistics
	series := []chart.Series{
		chart.ContinuousSeries{Name: "Data", XValues: xs, YValues: ys, Style: data},
		horizontal("LCL", xMin, xMax, stats.LCL, lineStyle(chart.ColorRed, 2)),
		horizontal("UCL", xMin, xMax, stats.UCL, lineStyle(chart.ColorRed, 2)),
		horizontal("Centerline", xMin, xMax, stats.Mean, lineStyle(chart.ColorAlternateGray, 2)),
	}
	levels := []float64{stats.Min, stats.Max, stats.LCL, stats.UCL}
	for i, line := range report.ReferenceLines {
		series = append(series, referenceSeries(i, line, func(name string, style chart.Style) chart.Series {
			return horizontal(name, xMin, xMax, line, style)
		}))
		levels = append(levels, line)
	}
	yMin, yMax := paddedRange(levels)

	ch := chart.Chart{
		Title:      "Control Chart",
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Sample", Range: &chart.ContinuousRange{Min: xMin, Max: xMax}, ValueFormatter: decimals(0)},
		YAxis:      chart.YAxis{Name: report.Column, Range: &chart.ContinuousRange{Min: yMin, Max: yMax}, ValueFormatter: decimals(3)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render control chart: %w", err)
	}
	return nil
}

// DistributionChart plots the fitted curve with vertical markers at the
// control limits and reference lines.
func (r *Renderer) DistributionChart(w io.Writer, report *engine.Report) error {
	if len(report.Curve) < 2 {
		return spc.ErrDegenerateSpread
	}

	xs := make([]float64, len(report.Curve))
	ys := make([]float64, len(report.Curve))
	yTop := 0.0
	for i, p := range report.Curve {
		xs[i] = p.X
		ys[i] = p.Y
		yTop = math.Max(yTop, p.Y)
	}
	if yTop == 0 {
		yTop = 1
	}
	yTop *= 1.05

	stats := report.Statistics
	area := chart.Style{
		StrokeColor: drawing.ColorFromHex("8884d8"),
		StrokeWidth: 2,
		FillColor:   drawing.ColorFromHex("8884d8").WithAlpha(96),
	}
	series := []chart.Series{
		chart.ContinuousSeries{Name: "Distribution", XValues: xs, YValues: ys, Style: area},
		vertical("LCL", stats.LCL, yTop, lineStyle(chart.ColorRed, 2)),
		vertical("UCL", stats.UCL, yTop, lineStyle(chart.ColorRed, 2)),
	}
	extent := []float64{xs[0], xs[len(xs)-1], stats.LCL, stats.UCL}
	for i, line := range report.ReferenceLines {
		series = append(series, referenceSeries(i, line, func(name string, style chart.Style) chart.Series {
			return vertical(name, line, yTop, style)
		}))
		extent = append(extent, line)
	}
	xMin, xMax := paddedRange(extent)

	ch := chart.Chart{
		Title:      "Distribution",
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: report.Column, Range: &chart.ContinuousRange{Min: xMin, Max: xMax}, ValueFormatter: decimals(2)},
		YAxis:      chart.YAxis{Name: "Density", Range: &chart.ContinuousRange{Min: 0, Max: yTop}, ValueFormatter: decimals(0)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render distribution chart: %w", err)
	}
	return nil
}

// Histogram draws the buckets as a filled step outline, using the bucket
// width the analysis settled on
func (r *Renderer) Histogram(w io.Writer, report *engine.Report) error {
	buckets := report.Histogram
	width := report.BucketWidth
	if !(width > 0) {
		width = engine.DefaultBucketWidth
	}
	if len(buckets) == 0 {
		return spc.ErrEmptySample
	}

	xs := make([]float64, 0, 2*len(buckets)+2)
	ys := make([]float64, 0, 2*len(buckets)+2)
	top := 0
	for _, b := range buckets {
		xs = append(xs, b.Start, b.Start+width)
		ys = append(ys, float64(b.Count), float64(b.Count))
		if b.Count > top {
			top = b.Count
		}
	}
	if top == 0 {
		top = 1
	}

	bars := chart.Style{
		StrokeColor: chart.ColorBlue,
		StrokeWidth: 1,
		FillColor:   chart.ColorBlue.WithAlpha(128),
	}
	ch := chart.Chart{
		Title:      fmt.Sprintf("Histogram (%s, width %g)", report.HistogramFrom, width),
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           report.Column,
			Range:          &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
			ValueFormatter: decimals(3),
		},
		YAxis:  chart.YAxis{Name: "Count", Range: &chart.ContinuousRange{Min: 0, Max: float64(top) * 1.05}, ValueFormatter: decimals(0)},
		Series: []chart.Series{chart.ContinuousSeries{Name: "Count", XValues: xs, YValues: ys, Style: bars}},
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	return nil
}

// referenceSeries styles the first reference line as the nominal value and
// the rest as adjustable guide lines.
func referenceSeries(i int, value float64, build func(name string, style chart.Style) chart.Series) chart.Series {
	if i == 0 {
		return build(fmt.Sprintf("Reference (%g)", value), lineStyle(chart.ColorBlack, 3))
	}
	style := dashedStyle(chart.ColorGreen, 2)
	style.StrokeDashArray = []float64{2, 3}
	return build(fmt.Sprintf("Additional Line %d", i), style)
}

func horizontal(name string, xMin, xMax, y float64, style chart.Style) chart.Series {
	return chart.ContinuousSeries{Name: name, XValues: []float64{xMin, xMax}, YValues: []float64{y, y}, Style: style}
}

func vertical(name string, x, yTop float64, style chart.Style) chart.Series {
	return chart.ContinuousSeries{Name: name, XValues: []float64{x, x}, YValues: []float64{0, yTop}, Style: style}
}

// paddedRange returns the extent of values widened by 5% on each side, or
// by a fixed step when every value is equal.
func paddedRange(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 0) {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.001, 0.001)
	}
	return lo - pad, hi + pad
}
