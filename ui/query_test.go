package ui

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/spc"
)

func TestParseAnalysisQuery_Defaults(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.ExcludeFirst = 300
	cfg.Analysis.ExcludeLast = 300
	s := &Server{analysis: cfg.Analysis}

	q, err := s.parseAnalysisQuery(url.Values{"file": {"run.csv"}})
	require.NoError(t, err)

	assert.Equal(t, "x", q.DataType)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 300, q.Request.Filter.ExcludeFirst)
	assert.Equal(t, 300, q.Request.Filter.ExcludeLast)
	assert.True(t, math.IsInf(q.Request.Filter.LowerThreshold, -1))
	assert.True(t, math.IsInf(q.Request.Filter.UpperThreshold, 1))
	assert.Equal(t, spc.SpecLimits{USL: 1.80, LSL: 1.70}, q.Request.Limits)
	assert.Equal(t, []float64{1.75, 1.73, 1.77}, q.Request.ReferenceLines)
	assert.Equal(t, spc.HistogramFiltered, q.Request.HistogramSource)
	assert.Equal(t, "MCGS_TIME", q.Request.LabelColumn)
}

func TestParseAnalysisQuery_Overrides(t *testing.T) {
	s := &Server{analysis: testConfig().Analysis}

	q, err := s.parseAnalysisQuery(url.Values{
		"file":          {"run.csv"},
		"dataType":      {"xy"},
		"lower":         {"1.72"},
		"upper":         {"1.78"},
		"excludeWithin": {"on"},
		"excludeFirst":  {"10"},
		"excludeLast":   {"0"},
		"exclude":       {"2,4-5"},
		"line1":         {"1.74"},
		"histogram":     {"raw"},
		"page":          {"3"},
	})
	require.NoError(t, err)

	f := q.Request.Filter
	assert.Equal(t, "xy", q.Request.Token)
	assert.Equal(t, 1.72, f.LowerThreshold)
	assert.Equal(t, 1.78, f.UpperThreshold)
	assert.True(t, f.ExcludeWithinThreshold)
	assert.Equal(t, 10, f.ExcludeFirst)
	assert.Equal(t, 0, f.ExcludeLast)
	assert.True(t, f.Excluded(4))
	assert.False(t, f.Excluded(3))
	assert.Equal(t, []float64{1.75, 1.74, 1.77}, q.Request.ReferenceLines)
	assert.Equal(t, spc.HistogramRaw, q.Request.HistogramSource)
	assert.Equal(t, 3, q.Page)
}

func TestAnalysisQueryLinks(t *testing.T) {
	s := &Server{analysis: testConfig().Analysis}
	q, err := s.parseAnalysisQuery(url.Values{"file": {"run.csv"}, "exclude": {"1,2"}, "page": {"2"}})
	require.NoError(t, err)

	assert.Equal(t, "1-3", q.withExcluded(3, 2))
	assert.Equal(t, "/?exclude=1%2C2&file=run.csv&page=4", string(q.link("/", map[string]string{"page": "4"})))
	assert.Equal(t, "/charts/control.png?file=run.csv", string(q.link("/charts/control.png", map[string]string{"exclude": "", "page": ""})))

	// link must not mutate the parsed query
	assert.Equal(t, "2", q.values.Get("page"))
}
