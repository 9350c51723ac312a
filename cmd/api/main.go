package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/craftbazaar/accounts/internal/domain"
	"github.com/craftbazaar/accounts/internal/handlers"
	"github.com/craftbazaar/accounts/internal/mailer"
	"github.com/craftbazaar/accounts/internal/repository"
	"github.com/craftbazaar/accounts/internal/service"
	"github.com/craftbazaar/accounts/internal/token"
	"github.com/craftbazaar/accounts/pkg/config"
	"github.com/craftbazaar/accounts/pkg/database"
	"github.com/craftbazaar/accounts/pkg/events"
	"github.com/craftbazaar/accounts/pkg/logger"
	mw "github.com/craftbazaar/accounts/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		accountRepo repository.AccountRepository
		tokenRepo   repository.TokenRepository
	)
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		accountRepo = mem
		tokenRepo = mem
	default:
		if err := database.Migrate(ctx, cfg.Store.DatabaseURL); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg.Store)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		accountRepo = repository.NewAccountRepository(pool)
		tokenRepo = repository.NewTokenRepository(pool)
	}

	// Rate limiting
	var rateLimit repository.RateLimitRepository
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		rateLimit = repository.NewRedisRateLimit(redis.NewClient(opts))
	} else {
		rateLimit = repository.NewLocalRateLimit()
	}

	// Event bus
	var eventBus events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		eventBus = bus
	}

	// Mailer
	var mailSvc mailer.Service
	switch {
	case cfg.Email.DevMode:
		mailSvc = mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		mailSvc = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.SMTPFromName, cfg.Email.SMTPFrom)
	default:
		mailSvc = mailer.NewSMTPMailer(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass,
			cfg.Email.SMTPUseTLS,
		)
	}

	accountService := service.NewAccountService(
		accountRepo, tokenRepo, token.NewIssuer(), mailSvc, eventBus, cfg,
	)

	h := handlers.New(accountService, rateLimit, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("accounts"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.App.PublicBaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(h.RateLimit("signup", 10, time.Minute)).Post("/signup", h.Signup)
			r.With(h.RateLimit("login", 10, time.Minute)).Post("/login", h.Login)
			r.With(h.RequireJWT("")).Post("/logout", h.Logout)
			r.Post("/verify-email", h.VerifyEmail)
			r.Get("/verify-email", h.VerifyEmail)
			r.With(h.RateLimit("resend", 5, time.Minute)).Post("/resend-verification", h.ResendVerification)
			r.With(h.RateLimit("forgot", 5, time.Minute)).Post("/password/forgot", h.ForgotPassword)
			r.Post("/password/reset", h.ResetPassword)
			r.Post("/refresh", h.RefreshToken)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateMe)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT(domain.RoleAdmin))
			r.Get("/accounts", h.ListAccounts)
			r.Get("/accounts/{id}", h.GetAccount)
			r.Patch("/accounts/{id}", h.UpdateAccount)
			r.Post("/accounts/{id}/deactivate", h.DeactivateAccount)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting accounts service", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Periodic sweep of expired verification and reset tokens.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Auth.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				deleted, err := tokenRepo.DeleteExpired(gctx)
				if err != nil {
					logger.Error("Token sweep failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("Swept expired tokens", "deleted", deleted)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down accounts service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Accounts service error", "error", err)
		os.Exit(1)
	}
}
