package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/mcdev12/scoreboard/go/internal/httputil"
)

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected *bool    `json:"database_connected,omitempty"`
	NATSConnected     *bool    `json:"nats_connected,omitempty"`
	RunningTimers     int      `json:"running_timers"`
	Subscribers       int      `json:"subscribers"`
	Errors            []string `json:"errors"`
}

// natsState is the part of the relay the health check reads
type natsState interface {
	Connected() bool
}

type HealthChecker struct {
	db     *sql.DB
	nats   natsState
	timers func() int
	subs   func() int
}

func newHealthChecker(services *Services) *HealthChecker {
	h := &HealthChecker{
		db:     services.DB,
		timers: services.Scheduler.Active,
		subs:   func() int { return services.Hub.Stats().TotalSubscribers },
	}
	if services.Relay != nil {
		h.nats = services.Relay
	}
	return h
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:       true,
		RunningTimers: h.timers(),
		Subscribers:   h.subs(),
		Errors:        []string{},
	}

	// Check database connection, only when the roster lives in Postgres
	if h.db != nil {
		ok := h.db.PingContext(ctx) == nil
		status.DatabaseConnected = &ok
		if !ok {
			status.Healthy = false
			status.Errors = append(status.Errors, "database ping failed")
		}
	}

	// Check NATS connection
	if h.nats != nil {
		ok := h.nats.Connected()
		status.NATSConnected = &ok
		if !ok {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}
