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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/bot-gateway-go/internal/chat"
	"github.com/openclaw/bot-gateway-go/internal/config"
	"github.com/openclaw/bot-gateway-go/internal/handler"
	"github.com/openclaw/bot-gateway-go/internal/middleware"
	"github.com/openclaw/bot-gateway-go/internal/model"
	"github.com/openclaw/bot-gateway-go/internal/monitor"
	"github.com/openclaw/bot-gateway-go/internal/service"
	"github.com/openclaw/bot-gateway-go/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open data dir")
	}

	pairingService := service.NewPairingService(st, cfg.DataDir, config.PairingCodeTTL)
	roomsService := service.NewRooms(st)
	recorder := service.NewRecorder(cfg.DataDir)

	client := chat.NewHTTPClient(
		cfg.HomeserverURL, cfg.UserID, cfg.AccessToken,
		time.Duration(cfg.SyncTimeoutSeconds)*time.Second,
	)

	mon, err := monitor.New(client, pairingService, roomsService, monitor.Options{
		DisplayName:    cfg.DisplayName,
		TriggerPattern: cfg.TriggerPattern,
		RequireMention: cfg.RequireMention,
	}, func(ctx context.Context, msg *model.Message, room *model.RoomConfig, isMain bool) error {
		return recorder.Record(msg, room, isMain)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build monitor")
	}

	client.OnMessage(mon.HandleMessage)
	client.OnInvite(mon.HandleInvite)

	statusHandler := handler.NewStatusHandler(pairingService, roomsService)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Mount("/", statusHandler.Routes())

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting status server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("status server error")
		}
	}()

	syncCtx, cancelSync := context.WithCancel(context.Background())
	go runSync(syncCtx, client)

	log.Info().
		Str("userId", cfg.UserID).
		Bool("paired", pairingService.IsPaired()).
		Msg("gateway started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancelSync()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status server forced to shutdown")
	}

	log.Info().Msg("gateway stopped")
}

// runSync keeps the sync loop alive, backing off between failed
// attempts, until ctx is cancelled.
func runSync(ctx context.Context, client *chat.HTTPClient) {
	for {
		err := client.Sync(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("sync failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(config.SyncRetryBackoff):
		}
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
