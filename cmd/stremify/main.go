package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/stremify/internal/billing"
	billingstripe "github.com/dukerupert/stremify/internal/billing/stripe"
	"github.com/dukerupert/stremify/internal/config"
	"github.com/dukerupert/stremify/internal/database"
	"github.com/dukerupert/stremify/internal/email"
	"github.com/dukerupert/stremify/internal/logging"
	"github.com/dukerupert/stremify/internal/model"
	"github.com/dukerupert/stremify/internal/server"
	"github.com/dukerupert/stremify/internal/session"
	"github.com/dukerupert/stremify/internal/storage"
	"github.com/dukerupert/stremify/internal/store"
	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Hour

func main() {
	configPath := flag.String("config", os.Getenv("STREMIFY_CONFIG"), "path to YAML config file")
	makeAdmin := flag.String("make-admin", "", "grant the admin role to the user with this email and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *makeAdmin != "" {
		if err := grantAdmin(db, *makeAdmin); err != nil {
			slog.Error("make admin", "email", *makeAdmin, "error", err)
			os.Exit(1)
		}
		slog.Info("granted admin role", "email", *makeAdmin)
		return
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis not reachable at startup", "error", err)
	}
	pingCancel()

	sender, err := newMailSender(cfg, logger)
	if err != nil {
		slog.Error("mail transport", "error", err)
		os.Exit(1)
	}

	images := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
	})
	if !images.Configured() {
		slog.Info("object storage disabled, movie image uploads will fail")
	}

	var gateway billing.Gateway
	var planID string
	if cfg.BillingEnabled() {
		stripeClient := billingstripe.NewClient(billingstripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			PlanID:        cfg.Stripe.PlanID,
		})
		gateway, planID = stripeClient, stripeClient.PlanID()
	} else {
		slog.Info("stripe not configured, billing routes disabled")
	}

	srv := server.New(db, server.Config{
		Sessions:       session.NewStore(rdb, session.DefaultTTL),
		Cookies:        session.NewCookies(cfg.SessionSecret, cfg.Production(), cfg.SessionDomain),
		Mailer:         email.NewNotifier(sender, cfg.FrontendURL, cfg.OTPExpiry()),
		OTPExpiry:      cfg.OTPExpiry(),
		Gateway:        gateway,
		PlanID:         planID,
		Images:         images,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go runSweeper(sweepCtx, srv)

	go func() {
		slog.Info("stremify starting", "addr", cfg.Addr(), "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	sweepCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newMailSender(cfg config.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Mail.Transport {
	case "ses":
		return email.NewSESSender(email.SESConfig{
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Sender:    cfg.Mail.SESSender,
		}), nil
	case "postmark":
		return email.NewClient(cfg.Mail.PostmarkToken, cfg.Mail.PostmarkFrom), nil
	case "log":
		return email.NewLogSender(logger.With("component", "email")), nil
	}
	return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
}

// runSweeper hourly removes stale auth records and old rate limiter entries.
func runSweeper(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			res, err := srv.AuthService().Sweep(ctx)
			if err != nil {
				slog.Error("sweep", "error", err)
			} else if res.ExpiredOTPs > 0 || res.StaleUnverified > 0 {
				slog.Info("swept auth records", "expired_otps", res.ExpiredOTPs, "stale_unverified", res.StaleUnverified)
			}
			srv.RateLimiter().Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func grantAdmin(db *sql.DB, emailAddr string) error {
	ctx := context.Background()
	users := store.New(db).Users
	user, err := users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.New("user not found")
	}
	return users.SetRole(ctx, user.ID, model.RoleAdmin)
}
