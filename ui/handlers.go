package ui

import (
	"bytes"
	"context"
	stderrors "errors"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"extruder/domain/dataset"
	"extruder/domain/spc"
	"extruder/internal/catalog"
	"extruder/internal/errors"
	"extruder/internal/report"
	engine "extruder/internal/spc"
	"extruder/ui/templates/fragments"
)

// tableRow is one line of the working-sample table
type tableRow struct {
	Position   int
	Label      string
	Value      float64
	ExcludeURL template.URL
}

type pageLink struct {
	Number  int
	URL     template.URL
	Current bool
}

// dashboardView is everything index.html renders
type dashboardView struct {
	Title       string
	AuthEnabled bool
	Files       []dataset.Entry
	DataTypes   []string
	Query       analysisQuery
	Form        formValues
	Error       string
	Warning     string

	Loaded *catalog.Loaded
	Report *engine.Report
	Rows   []tableRow
	Pager  engine.PageWindow
	Pages  []pageLink

	PrevURL, NextURL   template.URL
	FirstURL, LastURL  template.URL
	ControlChartURL    template.URL
	DistributionURL    template.URL
	HistogramURL       template.URL
	ReportURL          template.URL
	AnalysisURL        template.URL
	ResetExclusionsURL template.URL
}

// formValues echoes the filter controls back into the form
type formValues struct {
	Lower, Upper  string
	ExcludeWithin bool
	ExcludeFirst  int
	ExcludeLast   int
	Exclude       string
	USL, LSL      float64
	Line1, Line2  float64
	Histogram     string
}

func newFormValues(q analysisQuery) formValues {
	req := q.Request
	f := formValues{
		Lower:         q.values.Get("lower"),
		Upper:         q.values.Get("upper"),
		ExcludeWithin: req.Filter.ExcludeWithinThreshold,
		ExcludeFirst:  req.Filter.ExcludeFirst,
		ExcludeLast:   req.Filter.ExcludeLast,
		Exclude:       engine.FormatPositions(q.Excluded),
		USL:           req.Limits.USL,
		LSL:           req.Limits.LSL,
		Histogram:     string(req.HistogramSource),
	}
	if len(req.ReferenceLines) == 3 {
		f.Line1, f.Line2 = req.ReferenceLines[1], req.ReferenceLines[2]
	}
	return f
}

// handleIndex renders the file picker and, once a file is chosen, the
// full dashboard. Failures are shown as an alert on the same page.
func (s *Server) handleIndex(c *gin.Context) {
	view := &dashboardView{
		Title:       "Extruder SPC",
		AuthEnabled: s.auth.Enabled(),
		DataTypes:   DataTypes,
	}

	files, err := s.catalog.List(c.Request.Context())
	if err != nil {
		s.logger.Error("listing files failed: %v", err)
		view.Error = errors.UserMessage(err)
		s.renderTemplate(c, errors.HTTPStatus(err), fragments.Index, view)
		return
	}
	view.Files = files

	q, err := s.parseAnalysisQuery(c.Request.URL.Query())
	view.Query = q
	if err != nil {
		view.Error = errors.UserMessage(err)
		s.renderTemplate(c, errors.HTTPStatus(err), fragments.Index, view)
		return
	}
	view.Form = newFormValues(q)
	if q.File == "" {
		s.renderTemplate(c, http.StatusOK, fragments.Index, view)
		return
	}

	loaded, rep, err := s.analyze(c.Request.Context(), q)
	view.Loaded = loaded
	if err != nil {
		view.Error = errors.UserMessage(err)
		s.renderTemplate(c, errors.HTTPStatus(err), fragments.Index, view)
		return
	}
	view.Report = rep
	if rep.Statistics.Degenerate {
		view.Warning = "All retained values are identical; standard deviation is zero, so the distribution curve and capability indices are not meaningful."
	}

	s.fillTable(view, q, rep)
	view.ControlChartURL = q.link("/charts/control.png", map[string]string{"page": ""})
	view.DistributionURL = q.link("/charts/distribution.png", map[string]string{"page": ""})
	view.HistogramURL = q.link("/charts/histogram.png", map[string]string{"page": ""})
	view.ReportURL = q.link("/report", map[string]string{"page": ""})
	view.AnalysisURL = q.link("/api/analysis", map[string]string{"page": ""})
	view.ResetExclusionsURL = q.link("/", map[string]string{"exclude": "", "page": ""})

	s.renderTemplate(c, http.StatusOK, fragments.Index, view)
}

func (s *Server) fillTable(view *dashboardView, q analysisQuery, rep *engine.Report) {
	points := rep.Sample.Points
	pager := engine.Paginate(len(points), q.Page, engine.DefaultPageSize, engine.DefaultPageWindow)
	view.Pager = pager

	view.Rows = make([]tableRow, 0, pager.End-pager.Start)
	for _, p := range points[pager.Start:pager.End] {
		view.Rows = append(view.Rows, tableRow{
			Position:   p.Position,
			Label:      p.Label,
			Value:      p.Value,
			ExcludeURL: q.link("/", map[string]string{"exclude": q.withExcluded(p.Position)}),
		})
	}

	pageURL := func(n int) template.URL {
		return q.link("/", map[string]string{"page": strconv.Itoa(n)})
	}
	for _, n := range pager.Pages {
		view.Pages = append(view.Pages, pageLink{Number: n, URL: pageURL(n), Current: n == pager.Page})
	}
	if pager.TotalPages > 0 {
		view.FirstURL = pageURL(1)
		view.LastURL = pageURL(pager.TotalPages)
	}
	if pager.HasPrev {
		view.PrevURL = pageURL(pager.Page - 1)
	}
	if pager.HasNext {
		view.NextURL = pageURL(pager.Page + 1)
	}
}

// handleDatasets returns the catalog, newest first
func (s *Server) handleDatasets(c *gin.Context) {
	files, err := s.catalog.List(c.Request.Context())
	if err != nil {
		s.logger.Error("listing files failed: %v", err)
		renderJSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"datasets": files,
		"count":    len(files),
	})
}

// handleAnalysis returns the full report as JSON
func (s *Server) handleAnalysis(c *gin.Context) {
	q, err := s.parseAnalysisQuery(c.Request.URL.Query())
	if err != nil {
		renderJSONError(c, err)
		return
	}
	loaded, rep, err := s.analyze(c.Request.Context(), q)
	if err != nil {
		renderJSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":          loaded.Entry.Name,
		"raw_rows":      loaded.Entry.RowCount,
		"sampling_rate": loaded.SamplingRate,
		"data_type":     q.DataType,
		"report":        rep,
		"excluded":      q.Excluded,
	})
}

func (s *Server) handleControlChart(c *gin.Context) {
	s.renderChart(c, s.charts.ControlChart)
}

func (s *Server) handleDistributionChart(c *gin.Context) {
	s.renderChart(c, s.charts.DistributionChart)
}

func (s *Server) handleHistogramChart(c *gin.Context) {
	s.renderChart(c, s.charts.Histogram)
}

// renderChart analyzes the query and streams a PNG. A zero-spread sample
// has no distribution curve, reported as 422 like the other data errors.
func (s *Server) renderChart(c *gin.Context, draw func(io.Writer, *engine.Report) error) {
	q, err := s.parseAnalysisQuery(c.Request.URL.Query())
	if err != nil {
		renderJSONError(c, err)
		return
	}
	_, rep, err := s.analyze(c.Request.Context(), q)
	if err != nil {
		renderJSONError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := draw(&buf, rep); err != nil {
		if stderrors.Is(err, spc.ErrDegenerateSpread) || stderrors.Is(err, spc.ErrEmptySample) {
			renderJSONError(c, errors.WithCode(errors.CodeEmptySample, err))
			return
		}
		s.logger.Error("chart rendering failed for %s: %v", q.File, err)
		renderJSONError(c, errors.Wrap(err, "chart rendering failed"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handleReport renders the markdown report as HTML, or raw markdown with
// format=md
func (s *Server) handleReport(c *gin.Context) {
	q, err := s.parseAnalysisQuery(c.Request.URL.Query())
	if err != nil {
		renderJSONError(c, err)
		return
	}
	loaded, rep, err := s.analyze(c.Request.Context(), q)
	if err != nil {
		renderJSONError(c, err)
		return
	}

	md := report.Markdown(rep, report.NewMeta(loaded.Entry.Name, loaded.Entry.RowCount))
	if c.Query("format") == "md" {
		c.Header("Content-Disposition", "inline; filename=\"spc-report.md\"")
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
		return
	}
	s.renderTemplate(c, http.StatusOK, fragments.Report, gin.H{
		"Title":        "SPC report: " + loaded.Entry.Name,
		"AuthEnabled":  s.auth.Enabled(),
		"Body":         template.HTML(report.HTML(md)),
		"DashboardURL": q.link("/", nil),
		"MarkdownURL":  q.link("/report", map[string]string{"format": "md"}),
	})
}

// analyze loads the requested file and runs the analyzer over it
func (s *Server) analyze(ctx context.Context, q analysisQuery) (*catalog.Loaded, *engine.Report, error) {
	if q.File == "" {
		return nil, nil, errors.InvalidInput("file is required")
	}
	loaded, err := s.catalog.Load(ctx, q.File)
	if err != nil {
		s.logger.Warn("loading %s failed: %v", q.File, err)
		return nil, nil, err
	}
	rep, err := s.analyzer.Analyze(loaded.Dataset, q.Request)
	if err != nil {
		return loaded, nil, errors.FromAnalysis(err)
	}
	return loaded, rep, nil
}
