package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/mcdev12/scoreboard/go/internal/gateway"
	"github.com/mcdev12/scoreboard/go/internal/gfx"
	"github.com/mcdev12/scoreboard/go/internal/match"
	"github.com/mcdev12/scoreboard/go/internal/metrics"
	"github.com/mcdev12/scoreboard/go/internal/relay"
	"github.com/mcdev12/scoreboard/go/internal/roster"
	"github.com/mcdev12/scoreboard/go/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// Services is everything the HTTP server routes to
type Services struct {
	Metrics   *metrics.PrometheusMetrics
	Hub       *broadcast.Hub
	Scheduler *scheduler.Scheduler
	Store     *match.Store
	MatchApp  *match.App
	Match     *match.Service
	Gateway   *gateway.WebSocketHandler
	Gfx       *gfx.Service
	Roster    *roster.Service
	Relay     *relay.Publisher
	DB        *sql.DB

	stopRelay context.CancelFunc
	relayDone chan struct{}
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Repository layer → App layer → Service layer
	s := &Services{Metrics: metrics.NewPrometheusMetrics()}

	// Roster
	rosterRepo, err := s.setupRosterRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rosterApp := roster.NewApp(rosterRepo, nil)
	s.Roster = roster.NewService(rosterApp)

	// Match core
	s.Hub = broadcast.NewHub(s.Metrics)
	s.Scheduler = scheduler.New(scheduler.WithMetrics(s.Metrics))
	s.Store = match.NewStore()

	opts := []match.Option{
		match.WithPlayerDirectory(rosterApp),
		match.WithMetrics(s.Metrics),
	}
	if cfg.NATS.URL != "" {
		relayCfg := relay.DefaultConfig()
		relayCfg.URL = cfg.NATS.URL
		relayCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		relayCfg.StreamName = cfg.NATS.Stream

		s.Relay, err = relay.Connect(ctx, relayCfg, s.Metrics)
		if err != nil {
			s.closeDB()
			return nil, fmt.Errorf("failed to start event relay: %w", err)
		}
		opts = append(opts, match.WithRelay(s.Relay))
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("event relay enabled")
	}

	s.MatchApp = match.NewApp(s.Store, s.Hub, s.Scheduler, opts...)
	s.Match = match.NewService(s.MatchApp)

	// Push channel
	s.Gateway = gateway.NewWebSocketHandler(s.MatchApp, s.Hub, cfg.connectionConfig())

	// Overlay settings
	s.Gfx = gfx.NewService(gfx.NewStore(s.Hub))

	return s, nil
}

func (s *Services) setupRosterRepository(ctx context.Context, cfg *Config) (roster.Repository, error) {
	switch cfg.Roster.Backend {
	case RosterBackendPostgres:
		db, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.DB = db
		repo, err := roster.NewPostgresRepository(ctx, db)
		if err != nil {
			s.closeDB()
			return nil, err
		}
		return repo, nil
	default:
		log.Info().Str("file", cfg.Roster.File).Msg("using JSON roster file")
		return roster.NewFileRepository(cfg.Roster.File), nil
	}
}

// Stats summarizes live state for /info
func (s *Services) Stats() map[string]interface{} {
	hub := s.Hub.Stats()
	stats := s.MatchApp.Stats()
	stats["subscribers"] = hub.TotalSubscribers
	stats["active_matches"] = hub.ActiveMatches
	stats["connections"] = s.Gateway.Open()
	stats["running_timers"] = s.Scheduler.Active()
	if s.Relay != nil {
		stats["relay_connected"] = s.Relay.Connected()
	}
	return stats
}

// Start launches background workers
func (s *Services) Start(ctx context.Context) {
	if s.Relay == nil {
		return
	}
	// the relay outlives the signal context so in-flight mutations still
	// reach the bus while the HTTP server drains; Shutdown stops it
	relayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopRelay = cancel
	s.relayDone = make(chan struct{})
	go func() {
		defer close(s.relayDone)
		s.Relay.Start(relayCtx)
	}()
}

// Shutdown releases everything in reverse order of setup
func (s *Services) Shutdown() {
	s.Gateway.CloseAll()
	s.Scheduler.Shutdown()
	if s.stopRelay != nil {
		s.stopRelay()
		<-s.relayDone
	}
	if s.Relay != nil {
		s.Relay.Close()
	}
	s.closeDB()
}

func (s *Services) closeDB() {
	if s.DB == nil {
		return
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
	s.DB = nil
}
