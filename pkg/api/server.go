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

// Package api exposes the reconciled telemetry state over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/structhealth/spanwatch/pkg/logger"
	"github.com/structhealth/spanwatch/pkg/models"
	"github.com/structhealth/spanwatch/pkg/telemetry"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// EngineService is the engine surface the API consumes.
type EngineService interface {
	Observe(assetID string)
	Snapshot() telemetry.Snapshot
	Series() []models.SeriesPoint
}

// Server serves the read-only dashboard API.
type Server struct {
	router     *mux.Router
	engine     EngineService
	logger     logger.Logger
	httpServer *http.Server
}

func NewServer(engine EngineService, log logger.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		logger: log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/assets/{id}/telemetry", s.handleTelemetry).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/assets/{id}/series", s.handleSeries).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/assets/{id}/observe", s.handleObserve).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/api/observe", s.handleUnobserve).Methods(http.MethodDelete, http.MethodOptions)
}

// Router returns the handler, used directly by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown or listener failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
