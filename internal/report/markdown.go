package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"extruder/domain/core"
	engine "extruder/internal/spc"
)

// SampleRows is how many leading working-sample rows the report lists
const SampleRows = 10

// Meta identifies one generated report
type Meta struct {
	ID          core.ReportID
	File        string
	RawRows     int
	GeneratedAt time.Time
}

// NewMeta stamps a report for file with a fresh ID
func NewMeta(file string, rawRows int) Meta {
	return Meta{
		ID:          core.ReportID(core.NewID()),
		File:        file,
		RawRows:     rawRows,
		GeneratedAt: time.Now().UTC(),
	}
}

// Markdown renders an analysis as a markdown document
func Markdown(r *engine.Report, meta Meta) string {
	var b strings.Builder
	stats := r.Statistics

	fmt.Fprintf(&b, "# SPC report: %s\n\n", escape(meta.File))
	fmt.Fprintf(&b, "- Report: `%s`\n", meta.ID)
	fmt.Fprintf(&b, "- Generated: %s\n", meta.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Column: **%s** (token `%s`)\n", escape(r.Column), r.Token)
	if meta.RawRows > 0 && meta.RawRows != r.DatasetLength {
		fmt.Fprintf(&b, "- Rows: %d loaded of %d in file\n", r.DatasetLength, meta.RawRows)
	} else {
		fmt.Fprintf(&b, "- Rows: %d\n", r.DatasetLength)
	}
	fmt.Fprintf(&b, "- Working sample: %d points (trimmed to %d, every %d)\n\n",
		r.Sample.Len(), r.Sample.TrimmedLength, r.Sample.ModuloFactor)

	b.WriteString("## Filter\n\n")
	b.WriteString("| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Exclude first | %d |\n", r.Filter.ExcludeFirst)
	fmt.Fprintf(&b, "| Exclude last | %d |\n", r.Filter.ExcludeLast)
	fmt.Fprintf(&b, "| Lower threshold | %s |\n", threshold(r.Filter.LowerThreshold))
	fmt.Fprintf(&b, "| Upper threshold | %s |\n", threshold(r.Filter.UpperThreshold))
	mode := "keep within"
	if r.Filter.ExcludeWithinThreshold {
		mode = "exclude within"
	}
	fmt.Fprintf(&b, "| Threshold mode | %s |\n", mode)
	fmt.Fprintf(&b, "| Excluded points | %d |\n\n", len(r.Excluded))

	b.WriteString("## Statistics\n\n")
	if stats.Degenerate {
		b.WriteString("> All retained values are equal; moments and capability indices are reported as 0.\n\n")
	}
	b.WriteString("| Statistic | Value |\n|---|---|\n")
	rows := []struct {
		name  string
		value string
	}{
		{"Count", fmt.Sprintf("%d", stats.Count)},
		{"Min", FormatValue(stats.Min)},
		{"Max", FormatValue(stats.Max)},
		{"Mean", FormatValue(stats.Mean)},
		{"Median", FormatValue(stats.Median)},
		{"Std dev", FormatSigma(stats.StdDev)},
		{"LCL (mean - 3σ)", FormatValue(stats.LCL)},
		{"UCL (mean + 3σ)", FormatValue(stats.UCL)},
		{"Skewness", FormatIndex(stats.Skewness)},
		{"Excess kurtosis", FormatIndex(stats.Kurtosis)},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row.name, row.value)
	}
	b.WriteString("\n")

	b.WriteString("## Capability\n\n")
	fmt.Fprintf(&b, "USL %s, LSL %s\n\n", FormatValue(r.Limits.USL), FormatValue(r.Limits.LSL))
	fmt.Fprintf(&b, "| Cp | Cpk |\n|---|---|\n| %s | %s |\n\n", FormatIndex(stats.Cp), FormatIndex(stats.Cpk))

	if len(r.Histogram) > 0 {
		b.WriteString("## Histogram\n\n")
		peak := r.Histogram[0]
		occupied := 0
		for _, bucket := range r.Histogram {
			if bucket.Count > peak.Count {
				peak = bucket
			}
			if bucket.Count > 0 {
				occupied++
			}
		}
		fmt.Fprintf(&b, "%d buckets from %s (%s values), %d occupied; modal bucket starts at %s with %d values.\n\n",
			len(r.Histogram), FormatValue(r.Histogram[0].Start), r.HistogramFrom, occupied, FormatValue(peak.Start), peak.Count)
	}

	if r.Sample.Len() > 0 {
		b.WriteString("## Sample\n\n")
		label := r.Sample.LabelColumn
		if label == "" {
			label = "Position"
		}
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", escape(label), escape(r.Column))
		n := int(math.Min(float64(SampleRows), float64(r.Sample.Len())))
		for _, p := range r.Sample.Points[:n] {
			name := p.Label
			if name == "" {
				name = fmt.Sprintf("%d", p.Position)
			}
			fmt.Fprintf(&b, "| %s | %s |\n", escape(name), FormatValue(p.Value))
		}
		if r.Sample.Len() > n {
			fmt.Fprintf(&b, "\n_%d more rows not shown._\n", r.Sample.Len()-n)
		}
	}

	return b.String()
}

// HTML converts a markdown document into an HTML fragment
func HTML(md string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.Render(doc, renderer)
}

func threshold(v float64) string {
	if math.IsInf(v, 0) {
		return "none"
	}
	return FormatValue(v)
}

// escape keeps table cells intact when names contain pipes
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
