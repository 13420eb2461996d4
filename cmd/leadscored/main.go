package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"leadscore/internal/api"
	"leadscore/internal/cfg"
	"leadscore/internal/features"
	"leadscore/internal/metrics"
	"leadscore/internal/model"
	"leadscore/internal/scoring"
	"leadscore/internal/storage"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLogLevel(c.LogLevel)

	m := metrics.New()

	// A malformed artifact must abort startup; scoring against a broken
	// tree is worse than not serving.
	classifier, err := model.LoadClassifier(c.ClassifierPath)
	if err != nil {
		log.Fatal().Err(err).Msg("classifier load failed")
	}
	regressor, err := model.LoadRegressor(c.RegressorPath)
	if err != nil {
		log.Fatal().Err(err).Msg("regressor load failed")
	}
	trackModelAge(c.ClassifierPath, m)

	scorer := scoring.New(classifier, regressor, scoring.Config{
		ACVMin:          c.ACVMin,
		ACVMax:          c.ACVMax,
		IdealThreshold:  0.70,
		GoodThreshold:   0.50,
		MediumThreshold: 0.30,
		Defaults: features.Defaults{
			CompanyRevenue: c.DefaultRevenue,
			IsB2B:          c.DefaultB2B,
		},
		BatchWorkers: c.BatchWorkers,
	}, m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	server := api.NewServer(scorer, store, m, c)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	waitForShutdown(server)
}

func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("score history persistence enabled")
	return store
}

func trackModelAge(path string, m *metrics.Metrics) {
	if info, err := os.Stat(path); err == nil {
		m.ModelAgeSet(time.Since(info.ModTime()).Seconds())
	}
}

func setLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

func waitForShutdown(server *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
