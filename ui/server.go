package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"extruder/adapters/charts"
	"extruder/domain/dataset"
	"extruder/internal"
	"extruder/internal/catalog"
	"extruder/internal/config"
	"extruder/internal/report"
	engine "extruder/internal/spc"
	"extruder/ui/templates/fragments"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// Catalog is the part of the dataset catalog the dashboard needs
type Catalog interface {
	List(ctx context.Context) ([]dataset.Entry, error)
	Load(ctx context.Context, name string) (*catalog.Loaded, error)
}

// Deps are the collaborators the dashboard is built from
type Deps struct {
	Catalog  Catalog
	Analyzer *engine.Analyzer
	Charts   *charts.Renderer
	Config   *config.Config
	Logger   *internal.Logger
}

// Server is the SPC dashboard web server
type Server struct {
	router    *gin.Engine
	templates *template.Template
	catalog   Catalog
	analyzer  *engine.Analyzer
	charts    *charts.Renderer
	analysis  config.AnalysisConfig
	auth      config.AuthConfig
	logger    *internal.Logger
	now       func() time.Time
}

// NewServer parses the embedded templates and registers every route
func NewServer(deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Config == nil {
		return nil, fmt.Errorf("dashboard requires a catalog and configuration")
	}
	if deps.Logger == nil {
		deps.Logger = internal.DefaultLogger
	}
	if deps.Analyzer == nil {
		deps.Analyzer = engine.NewAnalyzer(deps.Logger)
	}
	if deps.Charts == nil {
		deps.Charts = charts.NewRenderer(0, 0)
	}

	funcMap := template.FuncMap{
		"fmtValue": report.FormatValue,
		"fmtSigma": report.FormatSigma,
		"fmtIndex": report.FormatIndex,
		"fmtTime": func(t time.Time) string {
			if t.IsZero() {
				return "n/a"
			}
			return t.Local().Format("2006-01-02 15:04:05")
		},
		"kb": func(size int64) string {
			return fmt.Sprintf("%.1f KB", float64(size)/1024)
		},
		"add": func(a, b int) int { return a + b },
	}

	templateFS, err := fs.Sub(embeddedFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open template filesystem: %w", err)
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	for _, name := range fragments.GetAllTemplatePaths() {
		if templates.Lookup(name) == nil {
			return nil, fmt.Errorf("missing %s template %q", fragments.GetTemplateCategory(name), name)
		}
	}

	s := &Server{
		router:    gin.New(),
		templates: templates,
		catalog:   deps.Catalog,
		analyzer:  deps.Analyzer,
		charts:    deps.Charts,
		analysis:  deps.Config.Analysis,
		auth:      deps.Config.Auth,
		logger:    deps.Logger.WithPrefix("Dashboard"),
		now:       time.Now,
	}

	s.router.Use(gin.Logger(), gin.Recovery())
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/login", s.handleLoginPage)
	s.router.POST("/login", s.handleLogin)
	s.router.POST("/logout", s.handleLogout)

	gated := s.router.Group("/", s.requireSession())
	gated.GET("/", s.handleIndex)
	gated.GET("/report", s.handleReport)

	gated.GET("/api/datasets", s.handleDatasets)
	gated.GET("/api/analysis", s.handleAnalysis)

	gated.GET("/charts/control.png", s.handleControlChart)
	gated.GET("/charts/distribution.png", s.handleDistributionChart)
	gated.GET("/charts/histogram.png", s.handleHistogramChart)
}

// Handler exposes the router for an http.Server or httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	log.Printf("Starting SPC dashboard on http://%s", addr)
	return s.router.Run(addr)
}
