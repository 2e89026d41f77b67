package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// reportServer serves a liveness endpoint plus the JSON classification
// report. Routes are published as they complete, so a poll during the run
// returns the partial report with "complete" false.
type reportServer struct {
	app *App
	srv *http.Server

	mu      sync.Mutex
	total   int
	reports []*RouteReport
}

// runReport is the /report response body.
type runReport struct {
	Complete bool           `json:"complete"`
	Routes   []*RouteReport `json:"routes"`
}

// startReportServer initializes and runs the report HTTP server for a run
// of total routes.
func (a *App) startReportServer(port, total int) *reportServer {
	a.logger.Debug("Configuring report server.")
	rs := &reportServer{app: a, total: total}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rs.handleHealth)
	mux.HandleFunc("/report", rs.handleReport)

	addr := fmt.Sprintf(":%d", port)
	rs.srv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		a.logger.Info("🩺 Report server starting", "address", fmt.Sprintf("http://localhost%s/report", addr))
		if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Report server failed unexpectedly", "error", err)
		}
	}()
	return rs
}

// publish appends one completed route to the served report.
func (rs *reportServer) publish(rep *RouteReport) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.reports = append(rs.reports, rep)
}

func (rs *reportServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	rs.app.logger.Debug("Health endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (rs *reportServer) handleReport(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	body := runReport{
		Complete: rs.total > 0 && len(rs.reports) == rs.total,
		Routes:   make([]*RouteReport, len(rs.reports)),
	}
	copy(body.Routes, rs.reports)
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rs.app.logger.Error("Failed to encode report", "error", err)
	}
}

func (rs *reportServer) shutdown(ctx context.Context) {
	rs.app.logger.Debug("Shutting down report server...")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.srv.Shutdown(ctx); err != nil {
		rs.app.logger.Error("Report server shutdown failed", "error", err)
	}
}
