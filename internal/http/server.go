package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"balances/internal/log"
	"balances/internal/middleware/ratelimit"
	"balances/internal/middleware/security"
	"balances/internal/middleware/trace"
	"balances/internal/view"
	appweb "balances/web"
)

// Server serves the dashboard page, the grand-total toggle partial and the
// xlsx download for one ViewModel.
type Server struct {
	http.Server
	templates *template.Template
	vm        *view.ViewModel
	loads     singleflight.Group
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	started   time.Time

	shutdownOnce sync.Once
}

// Options tune a Server. Zero values select the defaults.
type Options struct {
	Logger         *log.Logger
	LoadsPerMinute int
	TrustedProxies []string

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, vm *view.ViewModel, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		vm:       vm,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.LoadsPerMinute}),
		detector: security.NewDetector(),
		logger:   logger,
		started:  time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error(), "cidr", cidr)
		}
	}

	tfs := opts.Templates
	if tfs == nil {
		tfs = appweb.TemplatesFS
	}
	t, err := template.ParseFS(tfs, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			log.FieldError, err.Error(),
			"error_type", log.ErrorTypeConfiguration)
	}
	s.templates = t

	mux := http.NewServeMux()

	sfs := opts.Static
	if sfs == nil {
		sfs = appweb.StaticFS
	}
	if sub, err := fs.Sub(sfs, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	page := s.limiter.Middleware(s.detector.ClientIP)(http.HandlerFunc(s.handleIndex))
	mux.Handle("GET /{$}", security.NoStore(page))
	mux.Handle("GET /ui/grand-total", security.NoStore(http.HandlerFunc(s.handleGrandTotal)))
	mux.Handle("GET /export.xlsx", security.NoStore(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.detector.Middleware(handler)
	handler = trace.Middleware(s.detector.ClientIP)(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// load runs one snapshot load, shared by every request that arrives while it
// is in flight. The load is detached from the request so a closed tab does not
// cancel it for the others.
func (s *Server) load(ctx context.Context) (view.Surface, error) {
	v, err, shared := s.loads.Do("snapshot", func() (any, error) {
		return s.vm.Refresh(context.WithoutCancel(ctx))
	})
	if shared {
		log.FromContext(ctx).DebugContext(ctx, "Joined in-flight snapshot load", log.FieldOperation, log.OpLoad)
	}
	surface, _ := v.(view.Surface)
	return surface, err
}
