package cache

import (
	"context"
	"fmt"
	"time"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
)

// ReportCache stores computed profit/loss reports keyed by range. Every
// ledger write bumps the generation; keys built from an older generation
// are never read again and expire on their TTL.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ProfitLossReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ProfitLossReport, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ProfitLossReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ProfitLossReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Generation(_ context.Context) (int64, error) {
	return 0, nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}

// ReportKey identifies a report by cache generation, exact bounds and
// detail flag.
func ReportKey(generation int64, r period.Range, includeDetails bool) string {
	return fmt.Sprintf("pl:g%d:%d:%d:%t", generation, r.Start().UnixMilli(), r.End().UnixMilli(), includeDetails)
}
