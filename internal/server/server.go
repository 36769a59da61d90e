package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kaz-tk/morpho/internal/certs"
	"github.com/kaz-tk/morpho/internal/config"
	"github.com/kaz-tk/morpho/internal/terminal"
)

// timeoutMiddleware applies a timeout to all routes except the streaming
// terminal websocket.
func timeoutMiddleware(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/ws") {
				next.ServeHTTP(w, r)
				return
			}
			middleware.Timeout(timeout)(next).ServeHTTP(w, r)
		})
	}
}

type Server struct {
	cfg      *config.Config
	registry *terminal.Registry
	router   *chi.Mux
	server   *http.Server
	motd     string
}

func New(cfg *config.Config, registry *terminal.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		router:   chi.NewRouter(),
		motd:     loadMOTD(cfg.Server.MOTD),
	}
	s.setupRoutes()
	return s
}

// loadMOTD reads the message-of-the-day file once at startup.
func loadMOTD(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Warn("motd unreadable")
		return ""
	}
	return string(data)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(timeoutMiddleware(60 * time.Second))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.router.Get("/", s.handleIndex)
	s.router.Get("/static/*", s.handleStatic)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/themes", s.handleThemeList)
		r.Get("/themes/{name}", s.handleThemeGet)
		r.Get("/sessions", s.handleSessionList)
		r.Get("/motd", s.handleMOTD)
	})

	s.router.Get("/ws", s.handleTerminalWS)
	s.router.Get("/ws/{id}", s.handleTerminalWS)
}

// Start blocks serving HTTP or, unless unsecure mode is on, HTTPS with the
// locally generated certificate chain.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.router,
	}

	if s.cfg.Server.Unsecure {
		logrus.WithField("addr", "http://"+s.cfg.Addr()).Info("serving without TLS")
		return s.server.ListenAndServe()
	}

	certFile, keyFile, err := certs.Ensure(s.cfg.Server.CertDir, s.cfg.Server.Host)
	if err != nil {
		return err
	}
	logrus.WithField("addr", "https://"+s.cfg.Addr()).Info("serving")
	return s.server.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown terminates every session's child and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.registry != nil {
		s.registry.CloseAll()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
