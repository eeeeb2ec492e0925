// Package httpserver exposes the portal over a JSON HTTP API.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/educhain/internal/logging"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/metrics"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuthService is the session gate as seen by the HTTP layer.
type AuthService interface {
	Register(ctx context.Context, c auth.Credentials, role string) (*models.UserSummary, error)
	Login(ctx context.Context, c auth.Credentials) (string, models.Identity, error)
	Logout(ctx context.Context, token string) error
	CheckAuth(ctx context.Context, token string) (models.Identity, error)
	CurrentUser(ctx context.Context, token string) (*models.UserSummary, error)
	// SessionTTL is how long an issued session lives.
	SessionTTL() time.Duration
}

// DocumentService is the document workflow as seen by the HTTP layer.
type DocumentService interface {
	Upload(ctx context.Context, actor models.Identity, in services.UploadInput) (*models.UploadResult, error)
	Verify(ctx context.Context, actor models.Identity, documentID, declaredType string) (*models.VerificationOutcome, *models.Document, error)
	Download(ctx context.Context, actor models.Identity, documentID string) (*models.Document, []byte, error)
	Delete(ctx context.Context, actor models.Identity, documentID string) (*models.Document, error)
	ListMine(ctx context.Context, actor models.Identity) ([]*models.Document, error)
	ListAll(ctx context.Context, actor models.Identity) ([]*models.Document, error)
	ListStudents(ctx context.Context, actor models.Identity) ([]models.UserSummary, error)
}

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	SecureCookie   bool
	// Ready reports whether the server can take traffic. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	address string
	auth    AuthService
	docs    DocumentService
	metrics *metrics.Metrics
	logger  logging.Logger
	opts    Options
}

func NewServer(address string, l logging.Logger, as AuthService, ds DocumentService, m *metrics.Metrics, opts Options) *Server {
	return &Server{
		address: address,
		auth:    as,
		docs:    ds,
		metrics: m,
		logger:  l.With("module", "http_server"),
		opts:    opts,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.Get("/check", s.handleCheckAuth)
		r.With(s.requireSession).Get("/user", s.handleCurrentUser)
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/upload", s.handleUpload)
		r.Get("/my-documents", s.handleListMine)
		r.Get("/all", s.handleListAll)
		r.Get("/students", s.handleListStudents)
		r.Get("/{id}/download", s.handleDownload)
		r.Post("/{id}/verify", s.handleVerify)
		r.Delete("/{id}", s.handleDelete)
		// Paths used by the first portal clients.
		r.Get("/download/{id}", s.handleDownload)
		r.Get("/verify/{id}", s.handleVerify)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{"success": false, "message": "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{"success": false, "message": "method not allowed"})
	})
	return r
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error stopping HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}
