package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"extruder/adapters/excel"
	"extruder/domain/dataset"
	"extruder/internal/report"
	engine "extruder/internal/spc"
)

const (
	outputText     = "text"
	outputJSON     = "json"
	outputYAML     = "yaml"
	outputMarkdown = "markdown"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// histogramBarWidth is the widest text histogram bar, in cells
const histogramBarWidth = 40

// analysisSummary is the yaml view of a report. The full report with
// sample points and curve is only written as json.
type analysisSummary struct {
	File         string            `yaml:"file"`
	Column       string            `yaml:"column"`
	RawRows      int               `yaml:"raw_rows"`
	SamplingRate int               `yaml:"sampling_rate"`
	Retained     int               `yaml:"retained"`
	Excluded     []int             `yaml:"excluded,omitempty"`
	Statistics   map[string]string `yaml:"statistics"`
	Degenerate   bool              `yaml:"degenerate"`
	Histogram    map[string]int    `yaml:"histogram"`
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func unknownOutput(format string) error {
	return fmt.Errorf("unknown output format %q (want text, json, yaml or markdown)", format)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeAnalysis(w io.Writer, format, file string, result *excel.ReadResult, rep *engine.Report) error {
	switch format {
	case outputJSON:
		return writeJSON(w, map[string]interface{}{
			"file":          file,
			"raw_rows":      result.RawRows,
			"sampling_rate": result.SamplingRate,
			"report":        rep,
			"excluded":      rep.Excluded,
		})
	case outputYAML:
		return writeYAML(w, summarize(file, result, rep))
	case outputMarkdown:
		_, err := io.WriteString(w, report.Markdown(rep, report.NewMeta(file, result.RawRows)))
		return err
	case outputText, "":
		return writeAnalysisText(w, file, result, rep)
	}
	return unknownOutput(format)
}

func statisticRows(rep *engine.Report) [][]string {
	st := rep.Statistics
	return [][]string{
		{"Count", strconv.Itoa(st.Count)},
		{"Min", report.FormatValue(st.Min)},
		{"Max", report.FormatValue(st.Max)},
		{"Mean", report.FormatValue(st.Mean)},
		{"Median", report.FormatValue(st.Median)},
		{"Std dev", report.FormatSigma(st.StdDev)},
		{"Variance", report.FormatSigma(st.Variance)},
		{"LCL", report.FormatValue(st.LCL)},
		{"UCL", report.FormatValue(st.UCL)},
		{"Skewness", report.FormatIndex(st.Skewness)},
		{"Kurtosis", report.FormatIndex(st.Kurtosis)},
		{"USL", report.FormatValue(rep.Limits.USL)},
		{"LSL", report.FormatValue(rep.Limits.LSL)},
		{"Cp", report.FormatIndex(st.Cp)},
		{"Cpk", report.FormatIndex(st.Cpk)},
	}
}

func summarize(file string, result *excel.ReadResult, rep *engine.Report) analysisSummary {
	s := analysisSummary{
		File:         file,
		Column:       rep.Column,
		RawRows:      result.RawRows,
		SamplingRate: result.SamplingRate,
		Retained:     rep.Sample.Len(),
		Excluded:     rep.Excluded,
		Statistics:   map[string]string{},
		Degenerate:   rep.Statistics.Degenerate,
		Histogram:    map[string]int{},
	}
	for _, row := range statisticRows(rep) {
		key := strings.ReplaceAll(strings.ToLower(row[0]), " ", "_")
		s.Statistics[key] = row[1]
	}
	for _, b := range rep.Histogram {
		s.Histogram[report.FormatValue(b.Start)] = b.Count
	}
	return s
}

func writeAnalysisText(w io.Writer, file string, result *excel.ReadResult, rep *engine.Report) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", file, rep.Column)))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%d rows read, every %d kept, %d of %d retained after filtering",
		result.RawRows, result.SamplingRate, rep.Sample.Len(), rep.DatasetLength)))
	b.WriteString("\n")
	if rep.Statistics.Degenerate {
		b.WriteString(warnStyle.Render("All retained values are identical; spread and capability are reported as 0."))
		b.WriteString("\n")
	}

	b.WriteString(newTable("Statistic", "Value").Rows(statisticRows(rep)...).Render())
	b.WriteString("\n")

	if len(rep.Histogram) > 0 {
		b.WriteString(titleStyle.Render(fmt.Sprintf("Histogram (%s)", rep.HistogramFrom)))
		b.WriteString("\n")
		b.WriteString(histogramText(rep))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// histogramText draws one bar per bucket scaled to the tallest bucket
func histogramText(rep *engine.Report) string {
	peak := 0
	for _, bucket := range rep.Histogram {
		if bucket.Count > peak {
			peak = bucket.Count
		}
	}
	var b strings.Builder
	for _, bucket := range rep.Histogram {
		width := 0
		if peak > 0 {
			width = bucket.Count * histogramBarWidth / peak
		}
		if width == 0 && bucket.Count > 0 {
			width = 1
		}
		fmt.Fprintf(&b, "%s %s %d\n",
			report.FormatValue(bucket.Start),
			barStyle.Render(strings.Repeat("█", width)),
			bucket.Count)
	}
	return b.String()
}

func writeColumns(w io.Writer, format string, profiles []excel.ColumnProfile) error {
	switch format {
	case outputJSON:
		return writeJSON(w, profiles)
	case outputYAML:
		return writeYAML(w, profiles)
	case outputText, outputMarkdown, "":
		t := newTable("Column", "Kind", "Numeric", "Blank", "Total", "Min", "Max")
		for _, p := range profiles {
			lo, hi := "", ""
			if p.Numeric > 0 {
				lo, hi = report.FormatValue(p.Min), report.FormatValue(p.Max)
			}
			t.Row(p.Name, string(p.Kind), strconv.Itoa(p.Numeric), strconv.Itoa(p.Blank), strconv.Itoa(p.Total), lo, hi)
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	}
	return unknownOutput(format)
}

func writeObjects(w io.Writer, format string, objects []dataset.Object) error {
	switch format {
	case outputJSON:
		return writeJSON(w, objects)
	case outputYAML:
		return writeYAML(w, objects)
	case outputText, outputMarkdown, "":
		if len(objects) == 0 {
			_, err := fmt.Fprintln(w, faintStyle.Render("No measurement files uploaded yet."))
			return err
		}
		t := newTable("Name", "Size", "Created")
		for _, obj := range objects {
			t.Row(obj.Name, humanSize(obj.Size), obj.CreatedAt.Local().Format(time.DateTime))
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	}
	return unknownOutput(format)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
