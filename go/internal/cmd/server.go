package main

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mcdev12/scoreboard/go/internal/httputil"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	serviceName    = "scoreboard"
	serviceVersion = "1.0.0"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           newHandler(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func newHandler(cfg *Config, services *Services) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware; the control panel and overlays may be served from anywhere
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register services
	registerServices(mux, services)

	// Add health check, info and metrics endpoints
	setupHealthCheck(mux, services)

	// Static control panel and overlay
	setupStatic(mux, cfg.Server.StaticDir)

	// Wrap with CORS, then allow HTTP/2 without TLS
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func registerServices(mux *http.ServeMux, services *Services) {
	services.Match.RegisterRoutes(mux)
	services.Gfx.RegisterRoutes(mux)
	services.Roster.RegisterRoutes(mux)
	services.Gateway.RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.Handle("GET /health/ready", newHealthChecker(services))

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"service": serviceName,
			"version": serviceVersion,
			"stats":   services.Stats(),
		})
	})

	mux.Handle("GET /metrics", services.Metrics.Handler())
}

func setupStatic(mux *http.ServeMux, dir string) {
	for _, app := range []string{"control", "overlay"} {
		prefix := "/" + app + "/"
		fs := http.FileServer(http.Dir(filepath.Join(dir, app)))
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, fs))
	}

	// the overlay is usually opened as /?matchId=N inside a video mixer
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if matchID := r.URL.Query().Get("matchId"); matchID != "" {
			target := "/overlay/?" + url.Values{"matchId": []string{matchID}}.Encode()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"service": serviceName,
			"version": serviceVersion,
			"endpoints": map[string]string{
				"control":   "/control/",
				"overlay":   "/overlay/",
				"api":       "/api/match/{match_id}/...",
				"websocket": "/ws/match/{match_id}",
			},
			"usage": "Add ?matchId=1 to open the overlay directly, or use /overlay/?matchId=1",
		})
	})
}
