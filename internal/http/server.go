package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"consolida/internal/core"
	"consolida/internal/log"
	"consolida/internal/middleware/ratelimit"
	"consolida/internal/middleware/security"
	"consolida/internal/middleware/trace"
	"consolida/internal/services"
	"consolida/internal/sheets"
	"consolida/internal/upload"
	appweb "consolida/web"
)

var errTemplatesMissing = errors.New("templates not loaded")

// Deps are the collaborators the server routes to.
type Deps struct {
	Reports *services.ReportService
	Uploads *services.UploadService
	Parser  *upload.Parser
	// Store backs the readiness probe; a backend.Pinger is used when available,
	// otherwise the period list is read.
	Store     sheets.PeriodLister
	Naming    core.Naming
	MaxUpload int64
	RateLimit ratelimit.Config
	Logger    *log.Logger
	Version   string
}

type Server struct {
	http.Server
	templates *template.Template
	reports   *services.ReportService
	uploads   *services.UploadService
	parser    *upload.Parser
	store     sheets.PeriodLister
	naming    core.Naming
	maxUpload int64
	version   string
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started       time.Time
	uploadsOK     atomic.Int64
	uploadsDenied atomic.Int64
	shutdownOnce  sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if !deps.Naming.Valid() {
		deps.Naming = core.NamingEnglish
	}
	if deps.MaxUpload <= 0 {
		deps.MaxUpload = 10 << 20
	}
	if deps.Parser == nil {
		deps.Parser = upload.NewParser(upload.DefaultColumns())
	}

	s := &Server{
		reports:   deps.Reports,
		uploads:   deps.Uploads,
		parser:    deps.Parser,
		store:     deps.Store,
		naming:    deps.Naming,
		maxUpload: deps.MaxUpload,
		version:   deps.Version,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		detector:  security.NewDetector(logger),
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs(deps.Naming)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssets(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("GET /compare", s.handleCompare)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /accounts", s.handleImportAccounts)

	mux.HandleFunc("GET /api/periods", s.handleAPIPeriods)
	mux.HandleFunc("GET /api/cost-centers", s.handleAPICostCenters)
	mux.HandleFunc("GET /api/report", s.handleAPIReport)
	mux.HandleFunc("GET /api/compare", s.handleAPICompare)
	mux.HandleFunc("GET /api/dashboard", s.handleAPIDashboard)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		TriggerErrorNotification("Too many uploads, try again in a minute.").
		BodyString("rate limit exceeded").
		Write(w)
}

// Shutdown stops background goroutines and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
