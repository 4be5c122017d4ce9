// @title Trip Collaboration Backend API
// @version 1.0
// @description Group trip planning: proposals, votes, consolidation and live sync
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "TRIPCOLLAB_BACK-END/docs" // This is required for swagger
	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/handlers"
	"TRIPCOLLAB_BACK-END/internal/logging"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/notify"
	"TRIPCOLLAB_BACK-END/internal/proposals"
	"TRIPCOLLAB_BACK-END/internal/realtime"
	"TRIPCOLLAB_BACK-END/internal/routes"
	"TRIPCOLLAB_BACK-END/internal/seedsource"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/store/memstore"
	"TRIPCOLLAB_BACK-END/internal/store/postgres"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info", Format: "json"})
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.Log)
	if cfg.EnvFile != "" {
		log.Info().Str("file", cfg.EnvFile).Msg("loaded env file")
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}

	pg, err := postgres.New(ctx, cfg.GetDSN(), cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	// --- services ---
	var mailer notify.Mailer
	if cfg.IsEmailConfigured() {
		mailer = notify.NewSMTPMailer(cfg.Email)
	} else {
		log.Info().Msg("SMTP not configured; invitation emails disabled")
	}
	notifier := notify.NewService(st, mailer, cfg.Server.PublicURL, log)
	defer notifier.Wait()

	seeds, err := seedsource.Load(cfg.Collab.SeedTemplatesPath)
	if err != nil {
		return err
	}
	log.Info().Int("templates", seeds.Len()).Msg("seed templates loaded")

	proposalSvc := proposals.NewService(st, log)
	voteSvc := votes.NewService(st, log)
	collabSvc := collab.NewService(st, proposalSvc, cfg.Collab, log,
		collab.WithNotifier(notifier),
		collab.WithSeedSource(seeds),
	)
	defer collabSvc.Wait()

	hub := realtime.NewHub(log,
		realtime.WithSubscriberBuffer(cfg.Realtime.SubscriberBuffer),
		realtime.WithDedupeWindow(cfg.Realtime.DedupeWindow),
	)

	// --- HTTP Handlers ---
	h := routes.Handlers{
		Auth:          handlers.NewAuthHandler(st, &cfg.JWT),
		Health:        handlers.NewHealthHandler(st, cfg.Store.Driver),
		Plans:         handlers.NewPlansHandler(collabSvc, proposalSvc, voteSvc),
		Invitations:   handlers.NewInvitationsHandler(collabSvc),
		Activity:      handlers.NewActivityHandler(collabSvc),
		Notifications: handlers.NewNotificationsHandler(notifier),
		Live: handlers.NewLiveHandler(collabSvc, hub, realtime.LiveOptions{
			PingInterval:   cfg.Realtime.PingInterval,
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			OriginPatterns: originPatterns(cfg.CORS.AllowedOrigins),
		}),
	}
	if cfg.IsGoogleOAuthConfigured() {
		h.GoogleAuth = handlers.NewGoogleAuthHandler(st, cfg)
	} else {
		log.Info().Msg("Google OAuth not configured; google login disabled")
	}
	mux := routes.SetupRoutes(h, &cfg.JWT)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
	})
	handler := c.Handler(logging.Middleware(log)(middleware.Timeout(cfg.Server.RequestTimeout)(mux)))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return hub.Run(gctx, st)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// originPatterns converts CORS origins into websocket origin patterns, which
// match hosts rather than full URLs.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
