package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
)

type dashboardAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
}

type dashboardReportRepository interface {
	ComplianceRows(ctx context.Context, groupBy, lineID, categoryID, moduleID string) ([]repository.ComplianceSource, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardConfig controls dashboard caching.
type DashboardConfig struct {
	CacheTTL time.Duration
	ListSize int
}

// DashboardService assembles per-role landing page summaries. Payloads are
// cached briefly in Redis; staleness is bounded by the TTL rather than by
// invalidation hooks in every mutation path.
type DashboardService struct {
	assignments dashboardAssignmentRepository
	reports     dashboardReportRepository
	cache       dashboardCache
	metrics     *MetricsService
	logger      *zap.Logger
	config      DashboardConfig
}

// NewDashboardService constructs the service.
func NewDashboardService(assignments dashboardAssignmentRepository, reports dashboardReportRepository, cache dashboardCache, logger *zap.Logger, config DashboardConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}
	if config.ListSize <= 0 {
		config.ListSize = 5
	}
	return &DashboardService{assignments: assignments, reports: reports, cache: cache, logger: logger, config: config}
}

// WithMetrics attaches cache hit/miss counters. A nil metrics service is a
// no-op.
func (s *DashboardService) WithMetrics(m *MetricsService) *DashboardService {
	s.metrics = m
	return s
}

// Employee returns the caller's own training summary.
func (s *DashboardService) Employee(ctx context.Context, actor *models.JWTClaims) (*dto.EmployeeDashboard, error) {
	key := fmt.Sprintf("dashboard:employee:%s", actor.UserID)
	var cached dto.EmployeeDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	dashboard, err := s.buildEmployee(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

// Supervisor extends the employee view with completions awaiting the
// caller's sign-off.
func (s *DashboardService) Supervisor(ctx context.Context, actor *models.JWTClaims) (*dto.SupervisorDashboard, error) {
	key := fmt.Sprintf("dashboard:supervisor:%s", actor.UserID)
	var cached dto.SupervisorDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	own, err := s.buildEmployee(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	supervised, _, err := s.assignments.List(ctx, models.AssignmentFilter{TrainerUserID: actor.UserID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervised assignments")
	}

	dashboard := &dto.SupervisorDashboard{EmployeeDashboard: *own}
	for i := range supervised {
		if models.DeriveDetailState(&supervised[i]) == models.StateAwaitingSignoff {
			dashboard.PendingSignoffs = append(dashboard.PendingSignoffs, toDashboardItem(&supervised[i], models.StateAwaitingSignoff))
		}
	}
	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

// Manager returns the org-wide compliance summary.
func (s *DashboardService) Manager(ctx context.Context, actor *models.JWTClaims) (*dto.ManagerDashboard, error) {
	const key = "dashboard:manager"
	var cached dto.ManagerDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	sources, err := s.reports.ComplianceRows(ctx, repository.GroupByLine, "", "", "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compliance data")
	}

	dashboard := &dto.ManagerDashboard{}
	byLine := make(map[string]*dto.ComplianceRow)
	order := make([]string, 0)
	now := time.Now().UTC()

	for _, src := range sources {
		state := deriveSourceState(src)
		addState(&dashboard.Counts, state)

		row, ok := byLine[src.GroupID]
		if !ok {
			row = &dto.ComplianceRow{GroupID: src.GroupID, GroupName: src.GroupName}
			byLine[src.GroupID] = row
			order = append(order, src.GroupID)
		}
		addState(&row.Counts, state)

		if src.DueDate != nil && src.DueDate.Before(now) && state != models.StateApproved {
			dashboard.OverdueCount++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return byLine[order[i]].GroupName < byLine[order[j]].GroupName
	})
	for _, id := range order {
		dashboard.ByLine = append(dashboard.ByLine, *byLine[id])
	}

	overdue, _, err := s.assignments.List(ctx, models.AssignmentFilter{DueBefore: &now, NotApproved: true, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue assignments")
	}
	for i := range overdue {
		dashboard.Overdue = append(dashboard.Overdue, toDashboardItem(&overdue[i], models.DeriveDetailState(&overdue[i])))
		if len(dashboard.Overdue) >= s.config.ListSize {
			break
		}
	}

	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

// Invalidate drops all cached dashboards.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) buildEmployee(ctx context.Context, userID string) (*dto.EmployeeDashboard, error) {
	details, _, err := s.assignments.List(ctx, models.AssignmentFilter{AssignedTo: userID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	dashboard := &dto.EmployeeDashboard{}
	now := time.Now().UTC()

	type pending struct {
		item dto.DashboardItem
		due  *time.Time
	}
	var upNext []pending

	for i := range details {
		state := models.DeriveDetailState(&details[i])
		addState(&dashboard.Counts, state)
		if state == models.StateApproved {
			continue
		}
		item := toDashboardItem(&details[i], state)
		if details[i].DueDate != nil && details[i].DueDate.Before(now) {
			dashboard.Overdue = append(dashboard.Overdue, item)
			continue
		}
		if state == models.StateNotStarted || state == models.StateInProgress {
			upNext = append(upNext, pending{item: item, due: details[i].DueDate})
		}
	}

	// nearest due date first, undated work last
	sort.SliceStable(upNext, func(i, j int) bool {
		if upNext[i].due == nil {
			return false
		}
		if upNext[j].due == nil {
			return true
		}
		return upNext[i].due.Before(*upNext[j].due)
	})
	for _, p := range upNext {
		dashboard.UpNext = append(dashboard.UpNext, p.item)
		if len(dashboard.UpNext) >= s.config.ListSize {
			break
		}
	}

	return dashboard, nil
}

func (s *DashboardService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return true
	}
	s.metrics.RecordCacheOperation(false)
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *DashboardService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func toDashboardItem(detail *models.AssignmentDetail, state models.AssignmentState) dto.DashboardItem {
	item := dto.DashboardItem{
		AssignmentID: detail.ID,
		ModuleTitle:  detail.ModuleTitle,
		TraineeName:  detail.TraineeName,
		State:        string(state),
	}
	if detail.DueDate != nil {
		item.DueDate = detail.DueDate.UTC().Format("2006-01-02")
	}
	return item
}
