package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
	"github.com/vk/renderloop/internal/devrender"
	"github.com/vk/renderloop/internal/prerender"
	"github.com/vk/renderloop/internal/taskloop"
)

// RouteReport is the per-route outcome exposed in the summary and the
// report server.
type RouteReport struct {
	Route           string   `json:"route"`
	Classification  string   `json:"classification"`
	StaticBytes     int      `json:"static_bytes"`
	DynamicAccesses []string `json:"dynamic_accesses,omitempty"`
	Postponed       bool     `json:"postponed,omitempty"`
	Restarted       bool     `json:"restarted,omitempty"`
	Revalidate      int      `json:"revalidate,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Run prerenders every loaded route and prints the classification summary.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	var report *reportServer
	if a.cfg.ReportPort > 0 {
		report = a.startReportServer(a.cfg.ReportPort, len(a.model.Routes))
		defer report.shutdown(ctx)
	}

	if len(a.model.Routes) == 0 {
		a.logger.Warn("No routes found, nothing to render.")
		return nil
	}

	a.logger.Info("🚀 Starting prerender run.", "routes", len(a.model.Routes), "concurrency", a.cfg.Concurrency, "dev", a.cfg.Dev)

	reports := make([]*RouteReport, len(a.model.Routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, route := range a.model.Routes {
		g.Go(func() error {
			rep := a.renderRoute(gctx, route)
			reports[i] = rep
			if report != nil {
				report.publish(rep)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prerender run failed: %w", err)
	}

	a.printSummary(reports)

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	a.logger.Info("🏁 Prerender run finished.", "routes", len(reports), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d routes failed", failed, len(reports))
	}
	return nil
}

// renderRoute runs one route on its own task loop. Failures are recorded in
// the report rather than aborting the run; the other routes still render.
func (a *App) renderRoute(ctx context.Context, route *config.Route) *RouteReport {
	loop := taskloop.New()
	defer loop.Close()

	rep := &RouteReport{Route: route.Path}
	if a.cfg.Dev {
		c := devrender.New(loop, devrender.Options{Budget: a.cfg.TaskBudget})
		res, err := c.Render(ctx, route)
		if err != nil {
			a.logger.Error("Route render failed.", "route", route.Path, "error", err)
			rep.Error = err.Error()
			return rep
		}
		rep.Classification = "dev"
		rep.StaticBytes = len(res.Buffers.Static)
		rep.Postponed = len(res.Postponed) > 0
		rep.Restarted = res.Restarted
		return rep
	}

	o := prerender.New(loop, prerender.Options{
		Budget:          a.cfg.TaskBudget,
		AllowEmptyShell: a.cfg.AllowEmptyShell,
	})
	res, err := o.Prerender(ctx, route)
	if err != nil {
		a.logger.Error("Route prerender failed.", "route", route.Path, "error", err)
		rep.Error = err.Error()
		return rep
	}

	rep.Classification = res.Classification.String()
	rep.StaticBytes = len(res.HTML.Static)
	rep.Postponed = len(res.Postponed) > 0
	rep.Revalidate = res.Revalidate
	for _, acc := range res.Dynamic {
		rep.DynamicAccesses = append(rep.DynamicAccesses, acc.Expression)
	}
	return rep
}

func (a *App) printSummary(reports []*RouteReport) {
	fmt.Fprintf(a.outW, "\n%-32s %-14s %12s\n", "ROUTE", "RESULT", "STATIC BYTES")
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(a.outW, "%-32s %-14s %12s  %s\n", r.Route, "error", "-", r.Error)
			continue
		}
		fmt.Fprintf(a.outW, "%-32s %-14s %12d\n", r.Route, r.Classification, r.StaticBytes)
	}
}
