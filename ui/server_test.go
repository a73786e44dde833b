package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/adapters/excel"
	"extruder/adapters/memory"
	"extruder/internal"
	"extruder/internal/catalog"
	"extruder/internal/config"
	"extruder/internal/testkit"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			TargetDataPoints: 10000,
			DefaultDataType:  "x",
			LabelColumn:      "MCGS_TIME",
			USL:              1.80,
			LSL:              1.70,
			ReferenceLine:    1.75,
			AdditionalLine1:  1.73,
			AdditionalLine2:  1.77,
			BucketWidth:      0.001,
			CurvePoints:      50,
		},
		Auth: config.AuthConfig{SessionTTL: time.Hour},
	}
}

func runCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("MCGS_TIME,X_Diameter,Y_Diameter\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "2024-03-01 08:%02d:%02d,%.3f,%.3f\n", i/60, i%60, 1.74+0.001*float64(i%5), 1.76-0.001*float64(i%3))
	}
	return []byte(b.String())
}

func flatCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("MCGS_TIME,X_Diameter\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "t%d,1.750\n", i)
	}
	return []byte(b.String())
}

func newTestServer(t *testing.T, cfg *config.Config, extra ...func(*testkit.MemoryStore)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testkit.NewMemoryStore()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	store.Add("run.csv", runCSV(20), base.Add(time.Hour))
	store.Add("flat.csv", flatCSV(10), base)
	store.Add("notes.txt", []byte("ignored"), base.Add(2*time.Hour))
	for _, add := range extra {
		add(store)
	}

	logger := internal.NewLogger(internal.LogLevelError)
	cat := catalog.NewService(store, memory.NewDatasetRepository(),
		excel.NewDataReader(excel.DefaultReaderConfig()), catalog.DefaultConfig(), logger)

	server, err := NewServer(Deps{Catalog: cat, Config: cfg, Logger: logger})
	require.NoError(t, err)
	return server
}

func get(t *testing.T, s *Server, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIndex_FilePicker(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Select a file to analyze")
	assert.Contains(t, body, "run.csv")
	assert.Contains(t, body, "flat.csv")
	assert.NotContains(t, body, "notes.txt")
	assert.Less(t, strings.Index(body, "run.csv"), strings.Index(body, "flat.csv"), "newest file first")
}

func TestIndex_Dashboard(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/?file=run.csv&dataType=x")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "X_Diameter")
	assert.Contains(t, body, "/charts/control.png?")
	assert.Contains(t, body, "Cpk")
	assert.Contains(t, body, "Next &raquo;")
}

func TestIndex_UnknownColumnRendersAlert(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/?file=run.csv&dataType=z")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data type &#39;z&#39; not found in CSV")
}

func TestIndex_DegenerateWarning(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/?file=flat.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "standard deviation is zero")
	assert.NotContains(t, rec.Body.String(), "/charts/distribution.png")
}

func TestAPIDatasets(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
}

func TestAPIAnalysis(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"ok", "file=run.csv&dataType=y", http.StatusOK, ""},
		{"unknown column", "file=run.csv&dataType=z", http.StatusUnprocessableEntity, "COLUMN_NOT_FOUND"},
		{"over trimmed", "file=run.csv&excludeFirst=15&excludeLast=5", http.StatusUnprocessableEntity, "EMPTY_SAMPLE"},
		{"bad threshold", "file=run.csv&lower=abc", http.StatusBadRequest, "INVALID_INPUT"},
		{"negative trim", "file=run.csv&excludeFirst=-1", http.StatusBadRequest, "INVALID_INPUT"},
		{"missing file param", "dataType=x", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown file", "file=missing.csv", http.StatusNotFound, "NOT_FOUND"},
		{"unsupported file", "file=notes.txt", http.StatusBadRequest, "UNSUPPORTED_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/api/analysis?"+tt.query)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["error"])
				assert.NotEmpty(t, body["message"])
			} else {
				assert.Contains(t, body, "report")
			}
		})
	}
}

func TestAPIAnalysis_Exclusions(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/api/analysis?file=run.csv&exclude=0-4,19")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	rep := body["report"].(map[string]interface{})
	stats := rep["statistics"].(map[string]interface{})
	assert.Equal(t, float64(14), stats["count"])
	assert.Equal(t, "X_Diameter", rep["column"])
	assert.Len(t, body["excluded"], 6)
}

func TestCharts(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, path := range []string{"/charts/control.png", "/charts/distribution.png", "/charts/histogram.png"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, s, path+"?file=run.csv")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
			assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
		})
	}

	rec := get(t, s, "/charts/distribution.png?file=flat.csv")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOutlierFileStaysUp(t *testing.T) {
	s := newTestServer(t, testConfig(), func(store *testkit.MemoryStore) {
		store.Add("spike.csv", []byte("MCGS_TIME,X_Diameter\nt0,0\nt1,5\nt2,2e7\n"), time.Now())
	})

	rec := get(t, s, "/api/analysis?file=spike.csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode(t, rec)["report"].(map[string]interface{})
	assert.LessOrEqual(t, len(report["histogram"].([]interface{})), 10000)
	assert.Greater(t, report["bucket_width"].(float64), 0.001)

	rec = get(t, s, "/charts/histogram.png?file=spike.csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestReport(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/report?file=run.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")

	rec = get(t, s, "/report?file=run.csv&format=md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "run.csv")
}

func TestPasswordGate(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Password = "extrude"
	cfg.Auth.SessionSecret = "signing-key"
	s := newTestServer(t, cfg)

	rec := get(t, s, "/?file=run.csv")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/?file=run.csv"), rec.Header().Get("Location"))

	rec = get(t, s, "/api/datasets")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, s, "/login")
	assert.Equal(t, http.StatusOK, rec.Code)

	login := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}, "next": {"/api/datasets"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec = login("wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")

	rec = login("extrude")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/datasets", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = get(t, s, "/api/datasets", cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)

	forged := &http.Cookie{Name: sessionCookie, Value: "9999999999.deadbeef"}
	rec = get(t, s, "/api/datasets", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func loginAs(t *testing.T, s *Server, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"password": {password}, "next": {"/api/datasets"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSessionExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Password = "extrude"
	cfg.Auth.SessionSecret = "signing-key"
	cfg.Auth.SessionTTL = time.Minute
	s := newTestServer(t, cfg)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	rec := loginAs(t, s, "extrude")
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	assert.Equal(t, http.StatusOK, get(t, s, "/api/datasets", cookies...).Code)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/datasets", cookies...).Code)
}

func TestSessionSignedWithSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Password = "extrude"
	cfg.Auth.SessionSecret = "signing-key"
	rec := loginAs(t, newTestServer(t, cfg), "extrude")
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()

	other := testConfig()
	other.Auth.Password = "extrude"
	other.Auth.SessionSecret = "another-key"
	assert.Equal(t, http.StatusUnauthorized, get(t, newTestServer(t, other), "/api/datasets", cookies...).Code)
}

func TestLogoutClearsSession(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Password = "extrude"
	cfg.Auth.SessionSecret = "signing-key"
	s := newTestServer(t, cfg)

	rec := loginAs(t, s, "extrude")
	require.Equal(t, http.StatusFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	s.Handler().ServeHTTP(out, req)
	require.Equal(t, http.StatusFound, out.Code)
	cleared := out.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestLoginDisabledRedirects(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/login")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/?file=a.csv":         "/?file=a.csv",
		"//evil.example":       "/",
		"https://evil.example": "/",
		"/\\evil.example":      "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}
