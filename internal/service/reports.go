package service

import (
	"context"
	"strings"

	"fuelstation/backend/internal/cache"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/xid"
)

// CalculateProfitLoss aggregates sales, expenses and fuel cost for the period.
// Reports for ranges that have already ended are served from the report cache
// when one is configured; open ranges are always recomputed. Cache keys carry
// the generation bumped by every ledger write, so backdated entries are seen.
func (s *Service) CalculateProfitLoss(ctx context.Context, q domain.PeriodQuery, includeDetails bool) (domain.ProfitLossReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.resolver.ResolveStrings(q.PeriodType, q.StartDate, q.EndDate)
	if err != nil {
		return domain.ProfitLossReport{}, err
	}

	cacheable := s.cacheTTL > 0 && r.EndedBefore(s.now())
	var key string
	if cacheable {
		gen, err := s.reports.Generation(ctx)
		if err != nil {
			s.log.WithContext(ctx).Warnw("report cache generation read failed", "error", err)
			cacheable = false
		}
		key = cache.ReportKey(gen, r, includeDetails)
	}
	if cacheable {
		cached, ok, err := s.reports.Get(ctx, key)
		if err != nil {
			s.log.WithContext(ctx).Warnw("report cache read failed", "key", key, "error", err)
		} else if ok {
			return *cached, nil
		}
	}

	report, err := s.aggregator.Calculate(ctx, r, includeDetails)
	if err != nil {
		return domain.ProfitLossReport{}, s.fail(ctx, "calculate profit/loss", err)
	}

	if cacheable {
		if err := s.reports.Set(ctx, key, &report, s.cacheTTL); err != nil {
			s.log.WithContext(ctx).Warnw("report cache write failed", "key", key, "error", err)
		}
	}
	return report, nil
}

// invalidateReports retires every cached report after a write that can move
// report totals.
func (s *Service) invalidateReports(ctx context.Context) {
	if s.cacheTTL <= 0 {
		return
	}
	if err := s.reports.Invalidate(ctx); err != nil {
		s.log.WithContext(ctx).Warnw("report cache invalidation failed", "error", err)
	}
}

// GetProfitLossSummary lists saved snapshots whose covered dates fall inside
// the period, newest first.
func (s *Service) GetProfitLossSummary(ctx context.Context, q domain.PeriodQuery) ([]domain.ProfitLossSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.resolver.ResolveStrings(q.PeriodType, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	summaries, err := s.repo.ListProfitLossSummaries(ctx, r)
	if err != nil {
		return nil, s.fail(ctx, "list profit/loss summaries", err)
	}
	if summaries == nil {
		summaries = []domain.ProfitLossSummary{}
	}
	return summaries, nil
}

// GenerateAndSaveProfitLoss persists a snapshot of sales, expenses and profit
// for the period. Every call writes a new row.
func (s *Service) GenerateAndSaveProfitLoss(ctx context.Context, req domain.GenerateProfitLossRequest) (domain.ProfitLossSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.resolver.ResolveStrings(req.PeriodType, req.StartDate, req.EndDate)
	if err != nil {
		return domain.ProfitLossSummary{}, err
	}

	summary, err := s.aggregator.Snapshot(ctx, r)
	if err != nil {
		return domain.ProfitLossSummary{}, s.fail(ctx, "generate profit/loss", err)
	}
	now := s.now().UTC()
	summary.ID = xid.New()
	summary.Notes = strings.TrimSpace(req.Notes)
	summary.EmployeeID = actorID(ctx)
	summary.CreatedAt = now
	summary.UpdatedAt = now

	saved, err := s.repo.CreateProfitLossSummary(ctx, summary)
	if err != nil {
		return domain.ProfitLossSummary{}, s.fail(ctx, "save profit/loss summary", err)
	}

	s.logAudit(ctx, "profit_loss_generate", "profit_loss_summary", saved.ID,
		saved.Period+" profit="+saved.Profit.StringFixed(2))
	return *saved, nil
}
