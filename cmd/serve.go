package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safeplate/safescan/internal/barcode"
	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/store"
)

var servePort int

// shutdownGrace bounds how long in-flight requests may drain after a
// termination signal.
const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for scans, history and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(env),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv)
	},
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
// The signal context is already cancelled at that point, so the drain runs
// on a fresh context bounded by shutdownGrace.
func runServer(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			zap.L().Warn("server shutdown incomplete", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func buildRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/scan", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Subject   string `json:"subject"`
			Barcode   string `json:"barcode"`
			Symbology string `json:"symbology"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Barcode == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "barcode is required"})
			return
		}
		if body.Subject == "" {
			body.Subject = "default"
		}
		if body.Symbology == "" {
			body.Symbology = string(model.SymbologyEAN13)
		}

		out, err := env.Pipeline.Process(req.Context(), body.Subject, body.Barcode, model.Symbology(body.Symbology))
		if err != nil {
			if errors.Is(err, barcode.ErrInvalidFormat) {
				respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			zap.L().Error("serve: scan failed",
				zap.String("barcode", body.Barcode),
				zap.Error(err),
			)
			respondJSON(w, http.StatusBadGateway, map[string]string{"error": "scan failed"})
			return
		}
		respondJSON(w, http.StatusOK, out)
	})

	r.Get("/api/v1/history", func(w http.ResponseWriter, req *http.Request) {
		filter := store.ScanFilter{
			SubjectID: req.URL.Query().Get("subject"),
			Limit:     queryInt(req, "limit", 50),
		}
		if levelStr := req.URL.Query().Get("level"); levelStr != "" {
			level, err := model.ParseRiskLevel(levelStr)
			if err != nil {
				respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			filter.Level = &level
		}

		scans, err := env.Store.ListScans(req.Context(), filter)
		if err != nil {
			zap.L().Error("serve: history query failed", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
			return
		}
		if scans == nil {
			scans = []store.ScanRecord{}
		}
		respondJSON(w, http.StatusOK, scans)
	})

	r.Get("/api/v1/metrics", func(w http.ResponseWriter, req *http.Request) {
		snap, err := env.Collector.Collect(req.Context(), queryInt(req, "hours", 24))
		if err != nil {
			zap.L().Error("serve: metrics collection failed", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics collection failed"})
			return
		}
		respondJSON(w, http.StatusOK, snap)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func queryInt(req *http.Request, key string, def int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
