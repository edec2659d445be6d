package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rollcall/pkg/bus"
	"rollcall/pkg/config"
	"rollcall/pkg/db"
	gos3 "rollcall/pkg/s3"
	"rollcall/pkg/telemetry"
	"rollcall/pkg/token"
	"rollcall/services/api"
	"rollcall/services/attendance"
	"rollcall/services/auth"
)

const serviceName = "rollcall-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)

	if cfg.UsesFallbackSecret() {
		log.Warn().Msg("TOKEN_SECRET is not set; signing tokens with the public development secret")
	}

	shutdownTelemetry, tracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open orm")
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			log.Error().Err(err).Msg("close orm")
		}
	}()

	accounts, err := auth.NewAccountStore(orm)
	if err != nil {
		log.Fatal().Err(err).Msg("init account store")
	}
	sessions, err := auth.NewSessionStore(pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init session store")
	}
	codec, err := token.NewCodec(cfg.SigningSecret())
	if err != nil {
		log.Fatal().Err(err).Msg("init token codec")
	}
	authSvc, err := auth.NewService(accounts, sessions, codec, auth.Options{
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init auth service")
	}

	store, err := attendance.NewStore(pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init attendance store")
	}

	opts := api.Options{
		Metrics:    api.NewMetrics(prometheus.DefaultRegisterer),
		Gatherer:   prometheus.DefaultGatherer,
		Middleware: []func(http.Handler) http.Handler{tracing},
		Logger:     log.Logger,
	}

	if cfg.S3Bucket != "" {
		objects, err := gos3.NewClientFromEnv(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("init s3 client")
		}
		opts.Exporter = attendance.NewExporter(store, objects, cfg.S3Bucket)
	} else {
		log.Info().Msg("S3_BUCKET not set; history export disabled")
	}

	if cfg.NATSURL != "" {
		events, err := bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer events.Close()
		opts.Publisher = events
	}

	if cfg.SweepInterval > 0 {
		sweeper, err := auth.NewSweeper(sessions, cfg.SweepInterval, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("init session sweeper")
		}
		sweeper.OnPrune = opts.Metrics.SessionsPruned
		go sweeper.Run(ctx)
	}

	apiSvc, err := api.New(authSvc, store, api.Config{
		TokenTTL:       cfg.SessionTTL,
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,
		AllowedOrigins: cfg.AllowedOrigins,
	}, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	handler, err := apiSvc.Routes()
	if err != nil {
		log.Fatal().Err(err).Msg("build routes")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("env", cfg.Env).Msg("starting " + serviceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("service", serviceName).Logger()
}
