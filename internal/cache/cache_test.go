package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
)

func testRange(t *testing.T, pt period.Type) period.Range {
	t.Helper()
	at := time.Date(2024, time.January, 17, 0, 0, 0, 0, time.UTC)
	r, err := period.NewResolver(time.UTC).WithClock(func() time.Time { return at }).Resolve(pt, nil, nil)
	require.NoError(t, err)
	return r
}

func TestReportKeyDistinguishesRangesAndDetails(t *testing.T) {
	month := testRange(t, period.Month)
	week := testRange(t, period.Week)

	assert.Equal(t, ReportKey(1, month, false), ReportKey(1, month, false))
	assert.NotEqual(t, ReportKey(1, month, false), ReportKey(1, month, true))
	assert.NotEqual(t, ReportKey(1, month, false), ReportKey(1, week, false))
	assert.NotEqual(t, ReportKey(1, month, false), ReportKey(2, month, false))
}

func TestNoopReportCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), "k", &domain.ProfitLossReport{}, time.Minute))
	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Invalidate(context.Background()))
	gen, err := c.Generation(context.Background())
	require.NoError(t, err)
	assert.Zero(t, gen)
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("FUELSTATION_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set FUELSTATION_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisReportCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	r := testRange(t, period.Month)
	key := ReportKey(0, r, false) + ":" + time.Now().Format(time.RFC3339Nano)
	report := &domain.ProfitLossReport{
		Period:       r.Label(),
		TotalSales:   decimal.RequireFromString("10000"),
		Profit:       decimal.RequireFromString("3000"),
		ProfitMargin: decimal.RequireFromString("30"),
	}
	require.NoError(t, c.Set(ctx, key, report, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "January 2024", got.Period)
	assert.True(t, report.Profit.Equal(got.Profit))

	before, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	after, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}
