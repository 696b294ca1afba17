// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rally/internal/ai"
	"rally/internal/config"
	httptransport "rally/internal/http"
	"rally/internal/http/handlers"
	"rally/internal/infra"
	"rally/internal/maps"
	"rally/internal/modules/discovery"
	"rally/internal/modules/location"
	"rally/internal/modules/match"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("RALLY_FIREBASE_PROJECT_ID is required")
	}
	fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("db init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	locationStore := location.NewStore(dbPool, redisClient)
	candidateStore := discovery.NewStore(dbPool, redisClient)
	engine := discovery.NewEngine(candidateStore, discovery.EngineConfig{
		QueryTimeout: cfg.Discovery.QueryTimeout,
		RetryBackoff: cfg.Discovery.RetryBackoff,
	}, logger)
	flows := discovery.NewRegistry()
	defer flows.StopAll()

	var composer match.Composer
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiComposer(ctx, cfg.AI.GeminiKey)
		if err != nil {
			logger.Warn("gemini init failed, invites use the template", zap.Error(err))
		} else {
			defer gemini.Close()
			composer = gemini
		}
	}

	sink := match.NewFCMSink(fb.Messaging, candidateStore, logger)
	broker := match.NewBroker(match.NewStore(dbPool), sink, composer, match.BrokerConfig{
		DeliveryTimeout: cfg.Requests.DeliveryTimeout,
	}, logger)

	var area handlers.AreaLabeler
	if cfg.Maps.APIKey != "" {
		areaSvc, err := maps.NewAreaService(cfg.Maps.APIKey)
		if err != nil {
			logger.Warn("maps init failed, responses omit area labels", zap.Error(err))
		} else {
			area = areaSvc
		}
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Engine:        engine,
		Flows:         flows,
		LocationStore: locationStore,
		Broker:        broker,
		Area:          area,
		Verifier:      fb,
		Discovery:     cfg.Discovery,
		Location:      cfg.Location,
		Logger:        logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server", zap.Error(err))
	}
}
