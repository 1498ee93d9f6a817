/*
 * Copyright 2025 StructHealth Analytics.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/structhealth/spanwatch/pkg/api"
	"github.com/structhealth/spanwatch/pkg/cache"
	"github.com/structhealth/spanwatch/pkg/config"
	"github.com/structhealth/spanwatch/pkg/kv"
	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/pull"
	"github.com/structhealth/spanwatch/pkg/stream"
	"github.com/structhealth/spanwatch/pkg/telemetry"
)

const (
	snapshotTTL     = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "/etc/spanwatch/spanwatch.json", "Path to config file")
	flag.Parse()

	var cfg config.ServiceConfig
	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	appLogger, err := logger.New(logConfig)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("spanwatch failed")
	}
}

func run(ctx context.Context, cfg *config.ServiceConfig, appLogger logger.Logger) error {
	store, err := newStore(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			appLogger.Warn().Err(closeErr).Msg("Failed to close snapshot store")
		}
	}()

	snapshots := cache.NewSnapshots(store, appLogger)
	puller := pull.NewClient(cfg.APIBaseURL, cfg.APIKey, appLogger)
	socket := stream.NewClient(cfg.SocketURL, cfg.APIKey, appLogger)

	engine := telemetry.NewEngine(puller, socket, snapshots, telemetry.Config{
		HistoryLimit:       cfg.HistoryLimit,
		SeriesLimit:        cfg.SeriesLimit,
		RefreshInterval:    cfg.RefreshInterval.Std(),
		AggressiveInterval: cfg.AggressiveInterval.Std(),
		AggressiveCount:    cfg.AggressiveCount,
	}, appLogger)

	socket.SetOnConnect(engine.HandleStreamConnected)
	socket.Connect(ctx)

	go func() {
		for event := range socket.Events() {
			engine.HandleStreamEvent(event)
		}
	}()

	engine.Start(ctx)
	defer engine.Stop()

	if cfg.DefaultAsset != "" {
		engine.Observe(cfg.DefaultAsset)
	}

	server := api.NewServer(engine, appLogger)

	serverErr := make(chan error, 1)

	go func() {
		if srvErr := server.Start(cfg.ListenAddr); srvErr != nil {
			serverErr <- srvErr
		}
	}()

	select {
	case err = <-serverErr:
		return err
	case <-ctx.Done():
	}

	appLogger.Info().Msg("Shutting down spanwatch")

	if closeErr := socket.Close(); closeErr != nil {
		appLogger.Warn().Err(closeErr).Msg("Failed to close socket client")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.ServiceConfig, appLogger logger.Logger) (kv.KVStore, error) {
	if cfg.NATSURL == "" {
		appLogger.Info().Msg("No NATS URL configured, using in-process snapshot store")
		return kv.NewMemoryStore(), nil
	}

	return kv.NewNatsStore(ctx, cfg.NATSURL, cfg.Bucket, snapshotTTL)
}
