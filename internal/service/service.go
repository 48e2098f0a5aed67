package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelstation/backend/internal/apperror"
	"fuelstation/backend/internal/cache"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/period"
	"fuelstation/backend/internal/profitloss"
	"fuelstation/backend/internal/reconcile"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
	"fuelstation/backend/pkg/logger"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options tune the service. Zero values give the single-till defaults.
type Options struct {
	ShiftScope       domain.ShiftScope
	VariancePolicy   *reconcile.Policy
	OperationTimeout time.Duration
	ReportCacheTTL   time.Duration
	Location         *time.Location
	Clock            func() time.Time
	Logger           *logger.Logger
}

type Service struct {
	repo       store.Repository
	reports    cache.ReportCache
	resolver   *period.Resolver
	aggregator *profitloss.Aggregator
	scope      domain.ShiftScope
	policy     *reconcile.Policy
	timeout    time.Duration
	cacheTTL   time.Duration
	now        func() time.Time
	log        *logger.Logger
}

func New(repo store.Repository, reports cache.ReportCache, opts Options) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if opts.ShiftScope == "" {
		opts.ShiftScope = domain.ShiftScopeSystem
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	return &Service{
		repo:       repo,
		reports:    reports,
		resolver:   period.NewResolver(opts.Location).WithClock(opts.Clock),
		aggregator: profitloss.New(repo),
		scope:      opts.ShiftScope,
		policy:     opts.VariancePolicy,
		timeout:    opts.OperationTimeout,
		cacheTTL:   opts.ReportCacheTTL,
		now:        opts.Clock,
		log:        opts.Logger.WithComponent("service"),
	}
}

// Resolver exposes the period resolver so other surfaces label periods the
// same way the service does.
func (s *Service) Resolver() *period.Resolver {
	return s.resolver
}

func (s *Service) ShiftScope() domain.ShiftScope {
	return s.scope
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// fail classifies an unexpected error from a collaborator. AppErrors pass
// through; deadline errors become timeouts; the rest are internal.
func (s *Service) fail(ctx context.Context, operation string, err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.NewTimeout(operation, err)
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", operation, err))
}

// scopeFor returns the employee id the single-open-shift rule is checked
// against: empty for system-wide scope.
func (s *Service) scopeFor(employeeID string) string {
	if s.scope == domain.ShiftScopeEmployee {
		return employeeID
	}
	return ""
}

func actorID(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.EmployeeID
	}
	return ""
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{EmployeeID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New(),
		ActorID:    actor.EmployeeID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.log.WithContext(ctx).Warnw("failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// ListAuditLogs returns audit entries inside the resolved period, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, q domain.PeriodQuery, limit int) ([]domain.AuditLog, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.resolver.ResolveStrings(q.PeriodType, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.ListAuditLogs(ctx, r.Start(), r.End(), limit)
	if err != nil {
		return nil, s.fail(ctx, "list audit logs", err)
	}
	return logs, nil
}

func normalizeIDs(ids []string, include string) []string {
	seen := make(map[string]bool, len(ids)+1)
	result := make([]string, 0, len(ids)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		result = append(result, id)
	}
	add(include)
	for _, id := range ids {
		add(id)
	}
	return result
}
