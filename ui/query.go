package ui

import (
	"fmt"
	"html/template"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"extruder/domain/spc"
	"extruder/internal/errors"
	engine "extruder/internal/spc"
)

// DataTypes are the measurement selections offered in the picker
var DataTypes = []string{"xy", "x", "y"}

// analysisQuery is the parsed dashboard query string
type analysisQuery struct {
	File     string
	DataType string
	Request  engine.AnalysisRequest
	Page     int
	Excluded []int
	values   url.Values
}

// parseAnalysisQuery reads the dashboard query into an analysis request,
// filling unset fields from the configured defaults
func (s *Server) parseAnalysisQuery(values url.Values) (analysisQuery, error) {
	q := analysisQuery{
		File:     strings.TrimSpace(values.Get("file")),
		DataType: strings.TrimSpace(values.Get("dataType")),
		values:   values,
	}
	if q.DataType == "" {
		q.DataType = s.analysis.DefaultDataType
	}

	req := engine.DefaultAnalysisRequest(q.DataType)
	req.LabelColumn = s.analysis.LabelColumn
	req.CurvePoints = s.analysis.CurvePoints
	req.BucketWidth = s.analysis.BucketWidth
	req.HistogramSource = spc.ParseHistogramSource(values.Get("histogram"))

	var err error
	if req.Filter.LowerThreshold, err = floatParam(values, "lower", math.Inf(-1)); err != nil {
		return q, err
	}
	if req.Filter.UpperThreshold, err = floatParam(values, "upper", math.Inf(1)); err != nil {
		return q, err
	}
	req.Filter.ExcludeWithinThreshold = boolParam(values, "excludeWithin")
	if req.Filter.ExcludeFirst, err = countParam(values, "excludeFirst", s.analysis.ExcludeFirst); err != nil {
		return q, err
	}
	if req.Filter.ExcludeLast, err = countParam(values, "excludeLast", s.analysis.ExcludeLast); err != nil {
		return q, err
	}

	if q.Excluded, err = engine.ParsePositions(values.Get("exclude")); err != nil {
		return q, errors.InvalidInput(err.Error())
	}
	req.Filter = req.Filter.WithExcluded(q.Excluded...)

	if req.Limits.USL, err = floatParam(values, "usl", s.analysis.USL); err != nil {
		return q, err
	}
	if req.Limits.LSL, err = floatParam(values, "lsl", s.analysis.LSL); err != nil {
		return q, err
	}
	line1, err := floatParam(values, "line1", s.analysis.AdditionalLine1)
	if err != nil {
		return q, err
	}
	line2, err := floatParam(values, "line2", s.analysis.AdditionalLine2)
	if err != nil {
		return q, err
	}
	req.ReferenceLines = []float64{s.analysis.ReferenceLine, line1, line2}

	if q.Page, err = countParam(values, "page", 1); err != nil {
		return q, err
	}

	q.Request = req
	return q, nil
}

func floatParam(values url.Values, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be a number, got %q", key, raw))
	}
	return v, nil
}

func countParam(values url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
	}
	return v, nil
}

func boolParam(values url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(values.Get(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// link builds path?query from the current query with overrides applied.
// An empty override removes the key.
func (q analysisQuery) link(path string, overrides map[string]string) template.URL {
	values := url.Values{}
	for k, v := range q.values {
		values[k] = append([]string(nil), v...)
	}
	for k, v := range overrides {
		if v == "" {
			values.Del(k)
		} else {
			values.Set(k, v)
		}
	}
	encoded := values.Encode()
	if encoded == "" {
		return template.URL(path)
	}
	return template.URL(path + "?" + encoded)
}

// withExcluded returns the exclude parameter with more positions appended
func (q analysisQuery) withExcluded(positions ...int) string {
	merged := append(append([]int(nil), q.Excluded...), positions...)
	sort.Ints(merged)
	out := merged[:0]
	for _, p := range merged {
		if len(out) == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return engine.FormatPositions(out)
}
