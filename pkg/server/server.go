// Package server exposes the optimization engine over HTTP. An external
// scheduler drives the hourly and weekly cycles; every request carries the
// data the core needs so the server does no outbound polling of its own.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/heatpilot/heatpilot/pkg/engine"
	"github.com/heatpilot/heatpilot/pkg/heatpump"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/pricing"
	"github.com/heatpilot/heatpilot/pkg/storage"
	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/heatpilot/heatpilot/pkg/weather"
	lflag "github.com/levenlabs/go-lflag"
)

// Server handles the HTTP API for the optimization system. It orchestrates
// interactions between the device, the price provider, the weather advisor
// and storage, and owns one engine per device.
type Server struct {
	devices   *heatpump.Map
	priceFeed *pricing.Static
	prices    pricing.Provider
	forecast  *weather.Static
	weather   weather.Advisor
	storage   storage.Database

	mu      sync.Mutex
	engines map[string]*engine.Engine

	listenAddr string
	apiToken   string
	serverName string
	httpServer *http.Server
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(d *heatpump.Map, feed *pricing.Static, p pricing.Provider, f *weather.Static, db storage.Database) *Server {
	srv := &Server{
		devices:    d,
		priceFeed:  feed,
		prices:     p,
		forecast:   f,
		weather:    f,
		storage:    db,
		engines:    make(map[string]*engine.Engine),
		serverName: "heatpilot",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	apiToken := lflag.String("api-token", "", "Shared bearer token required on /api requests (empty disables auth)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.apiToken = *apiToken
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/update", s.handleUpdate)
	apiMux.HandleFunc("POST /api/calibrate", s.handleCalibrate)
	apiMux.HandleFunc("GET /api/history", s.handleHistory)
	apiMux.HandleFunc("GET /api/savings", s.handleSavings)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(mux))
}

// authMiddleware enforces the shared bearer token when one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.apiToken)) != 1 {
			log.Ctx(r.Context()).WarnContext(r.Context(), "invalid api token")
			writeJSONError(w, "invalid token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// getDeviceID resolves the device targeted by a request. Missing IDs fall
// back to the single-device bucket.
func (s *Server) getDeviceID(r *http.Request) string {
	deviceID := r.URL.Query().Get("deviceID")
	if deviceID == "" {
		deviceID = types.DeviceIDNone
	}
	return deviceID
}

// engineFor returns the engine for a device, hydrating it from storage on
// first use: persisted thermal model, the newest stored decision records,
// and nothing else. The zero-history case is normal for new devices.
func (s *Server) engineFor(ctx context.Context, deviceID string) (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[deviceID]; ok {
		return e, nil
	}

	model, err := s.storage.GetThermalModel(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thermal model: %w", err)
	}
	records, err := s.storage.GetRecentOptimizationHistory(ctx, deviceID, engine.HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to load optimization history: %w", err)
	}

	e := engine.New(engine.Config{Model: model})
	e.LoadHistoricalSnapshot(records)
	s.engines[deviceID] = e

	log.Ctx(ctx).InfoContext(ctx, "engine hydrated",
		slog.String("deviceID", deviceID),
		slog.Float64("kFactor", e.Model().K),
		slog.Int("records", len(records)),
	)
	return e, nil
}

// getSettingsWithMigration loads the device settings and applies any pending
// version migrations, persisting the result so the next load is current.
func (s *Server) getSettingsWithMigration(ctx context.Context, deviceID string) (types.Settings, error) {
	settings, version, err := s.storage.GetSettings(ctx, deviceID)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	migrated, changed, err := types.MigrateSettings(settings, version)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to migrate settings: %w", err)
	}
	if changed {
		if err := s.storage.SetSettings(ctx, deviceID, migrated, types.CurrentSettingsVersion); err != nil {
			return types.Settings{}, fmt.Errorf("failed to save migrated settings: %w", err)
		}
		log.Ctx(ctx).InfoContext(ctx, "settings migrated",
			slog.String("deviceID", deviceID),
			slog.Int("fromVersion", version),
			slog.Int("toVersion", types.CurrentSettingsVersion),
		)
	}
	return migrated, nil
}

// Run starts the HTTP server and blocks until the context is canceled or an
// error occurs. It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capture server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}
