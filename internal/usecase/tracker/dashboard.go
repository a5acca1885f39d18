package tracker

import (
	"context"
	"encoding/json"
	"log/slog"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
)

// Dashboard returns the KPI summary, served from cache when fresh.
func (s *Service) Dashboard(ctx context.Context) (DashboardKPIs, error) {
	if err := checkContext(ctx); err != nil {
		return DashboardKPIs{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "tracker.dashboard"))

	if s.cache != nil {
		raw, found, err := s.cache.Get(ctx, dashboardCacheKey)
		if err != nil {
			logging.Warn(logCtx, "read dashboard cache failed", slog.Any("err", errs.Loggable(err)))
		} else if found {
			var cached DashboardKPIs
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	kpis, err := s.buildDashboard(ctx)
	if err != nil {
		return DashboardKPIs{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(kpis); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, string(raw), s.dashboardTTL); err != nil {
				logging.Warn(logCtx, "write dashboard cache failed", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
	return kpis, nil
}

func (s *Service) buildDashboard(ctx context.Context) (DashboardKPIs, error) {
	stats, err := s.procedures.ProcedureStats(ctx)
	if err != nil {
		return DashboardKPIs{}, err
	}
	recent, err := s.procedures.ListRecentProcedures(ctx, RecentProcedures)
	if err != nil {
		return DashboardKPIs{}, err
	}
	recentViews, err := s.procedureViews(ctx, recent)
	if err != nil {
		return DashboardKPIs{}, err
	}

	byType := make([]TypeCount, 0, len(stats.ByType))
	for _, item := range stats.ByType {
		byType = append(byType, TypeCount{ProcedureType: item.ProcedureType, Count: item.Count})
	}

	return DashboardKPIs{
		TotalProcedures: stats.Total,
		TotalRevenue:    stats.TotalRevenue,
		Pending:         stats.Pending,
		TotalCommission: stats.TotalCommission,
		ByType:          byType,
		Recent:          recentViews,
		GeneratedAt:     formatTime(s.nowUTC()),
	}, nil
}
