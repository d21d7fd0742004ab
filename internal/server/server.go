package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/stremify/internal/auth"
	"github.com/dukerupert/stremify/internal/billing"
	"github.com/dukerupert/stremify/internal/handler"
	"github.com/dukerupert/stremify/internal/middleware"
	"github.com/dukerupert/stremify/internal/session"
	"github.com/dukerupert/stremify/internal/store"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Config carries the collaborators opened by main.
type Config struct {
	Sessions  *session.Store
	Cookies   *session.Cookies
	Mailer    auth.Mailer
	OTPExpiry time.Duration

	// Gateway is nil when billing is not configured; the billing routes
	// are then not registered.
	Gateway billing.Gateway
	PlanID  string

	Images         handler.ImageStore
	RequestTimeout time.Duration
}

type Server struct {
	authService    *auth.Service
	authH          *handler.AuthHandler
	subscriptionH  *handler.SubscriptionHandler
	webhookH       *handler.WebhookHandler
	movieH         *handler.MovieHandler
	sessions       *session.Store
	cookies        *session.Cookies
	rateLimiter    *middleware.RateLimiter
	requestTimeout time.Duration
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	st := store.New(db)

	authLogger := logger.With("component", "auth")
	authService := auth.NewService(st, cfg.Sessions, cfg.Mailer, cfg.OTPExpiry, authLogger)

	s := &Server{
		authService:    authService,
		authH:          handler.NewAuthHandler(authService, cfg.Cookies, authLogger),
		movieH:         handler.NewMovieHandler(st.Movies, cfg.Images, logger.With("component", "movies")),
		sessions:       cfg.Sessions,
		cookies:        cfg.Cookies,
		rateLimiter:    middleware.NewRateLimiter(),
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}

	if cfg.Gateway != nil {
		billingLogger := logger.With("component", "billing")
		billingService := billing.NewService(st, cfg.Gateway, billingLogger)
		s.subscriptionH = handler.NewSubscriptionHandler(billingService, cfg.PlanID, billingLogger)
		s.webhookH = handler.NewWebhookHandler(billingService, billingLogger)
	}

	return s
}

// AuthService is used by the background sweeper.
func (s *Server) AuthService() *auth.Service {
	return s.authService
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)

	mux.Handle("POST /auth/signup", s.rateLimited(s.authH.SignUp))
	mux.Handle("POST /auth/verify", s.rateLimited(s.authH.Verify))
	mux.Handle("POST /auth/verify/{userID}", s.rateLimited(s.authH.Verify))
	mux.Handle("POST /auth/resend-otp", s.rateLimited(s.authH.ResendOTP))
	mux.Handle("POST /auth/login", s.rateLimited(s.authH.Login))
	mux.Handle("POST /auth/logout", middleware.RequireAuth(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("GET /auth/me", middleware.RequireAuth(http.HandlerFunc(s.authH.Me)))
	mux.Handle("GET /auth/updateSession", middleware.RequireAuth(http.HandlerFunc(s.authH.UpdateSession)))

	if s.subscriptionH != nil {
		mux.Handle("POST /create-sub", middleware.RequireAuth(http.HandlerFunc(s.subscriptionH.Create)))
		mux.Handle("POST /cancel-sub", middleware.RequireAuth(http.HandlerFunc(s.subscriptionH.Cancel)))
		mux.Handle("GET /sub-info", middleware.RequireAuth(http.HandlerFunc(s.subscriptionH.Info)))
		mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	mux.HandleFunc("GET /content/movies", s.movieH.List)
	mux.HandleFunc("GET /content/movies/{id}", s.movieH.Get)
	mux.Handle("POST /content/movies", middleware.RequireAdmin(http.HandlerFunc(s.movieH.Create)))

	var h http.Handler = mux
	h = middleware.LoadSession(s.sessions, s.cookies, s.logger.With("component", "session"))(h)
	h = middleware.Timeout(s.requestTimeout)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

// rateLimited limits each client IP per route pattern.
func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return r.Pattern + "|" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, authRateLimit, authRateWindow)(h)
}
