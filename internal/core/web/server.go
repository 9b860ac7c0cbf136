package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seckatie/videfly/internal/core"
)

//go:embed templates/*.html static/*.css
var templatesFS embed.FS

// ShutdownTimeout controls how long to wait for in-flight requests on shutdown.
var ShutdownTimeout = 10 * time.Second

// Options configures the web server.
type Options struct {
	// RateLimit is the number of analyze/download submissions per second a
	// single client may make. Zero or less disables throttling.
	RateLimit float64
	// RateBurst is the number of submissions allowed above RateLimit in a burst.
	RateBurst int
	// SweepEvery is how often idle sessions and unclaimed downloads are dropped.
	SweepEvery time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Server struct {
	analyzer  *core.Analyzer
	sessions  *core.SessionStore
	templates *template.Template
	staticFS  http.FileSystem
	limiter   RateLimiter
	opts      Options
}

// StartServer serves the analyzer UI on addr until ctx is canceled or the
// process receives SIGINT or SIGTERM.
func StartServer(ctx context.Context, addr string, analyzer *core.Analyzer, sessions *core.SessionStore, opts Options) error {
	ws, err := newServer(analyzer, sessions, opts)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	ws.registerRoutes(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           RequestLogger(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go ws.sweep(sweepCtx)

	log.Printf("Starting web server at %s", addr)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		log.Println("Context canceled, shutting down web server")
	case sig := <-signalCh:
		log.Printf("Received %s, shutting down web server", sig)
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	sessions.Close()
	return err
}

func newServer(analyzer *core.Analyzer, sessions *core.SessionStore, opts Options) (*Server, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	staticSub, err := fs.Sub(templatesFS, "static")
	if err != nil {
		return nil, err
	}

	if opts.SweepEvery <= 0 {
		opts.SweepEvery = core.DefaultSweepEvery
	}

	var limiter RateLimiter
	if opts.RateLimit > 0 {
		limiter = NewClientRateLimiter(opts.RateLimit, opts.RateBurst, 10*time.Minute)
	}

	return &Server{
		analyzer:  analyzer,
		sessions:  sessions,
		templates: templates,
		staticFS:  http.FS(staticSub),
		limiter:   limiter,
		opts:      opts,
	}, nil
}

func (ws *Server) registerRoutes(mux *http.ServeMux) {
	ws.registerStaticRoutes(mux)

	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/url", ws.handleURL)
	mux.HandleFunc("/analyze", ws.throttle("analyze", ws.handleAnalyze))
	mux.HandleFunc("/download", ws.throttle("download", ws.handleDownload))
	mux.HandleFunc("/objects/", ws.handleObject) // Handles /objects/{ref}
	mux.HandleFunc("/session", ws.handleSession)
}

func (ws *Server) registerStaticRoutes(mux *http.ServeMux) {
	// Serve embedded static assets (CSS, etc)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(ws.staticFS)))
}

// sweep periodically drops idle sessions and downloads nobody picked up.
func (ws *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(ws.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ws.sessions.Sweep(); n > 0 {
				log.Printf("Expired %d idle session(s)", n)
			}
			if n := ws.analyzer.Objects().Sweep(); n > 0 {
				log.Printf("Dropped %d unclaimed download(s)", n)
			}
		}
	}
}
