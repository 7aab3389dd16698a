package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindDetail(ctx context.Context, id string) (*models.AssignmentDetail, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	MarkStarted(ctx context.Context, id string, ts time.Time) error
	CreateCompletion(ctx context.Context, completion *models.Completion, signature *models.Signature) error
	ListCompletionsByAssignment(ctx context.Context, assignmentID string) ([]models.Completion, error)
	CreateSignoff(ctx context.Context, signoff *models.TrainerSignoff) error
	FindSignoffByCompletion(ctx context.Context, completionID string) (*models.TrainerSignoff, error)
}

type assignmentModuleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type assignmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type materialURLSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context)
}

type assignmentNotifier interface {
	AssignmentCreated(ctx context.Context, trainee *models.User, moduleTitle string, dueDate *time.Time, assignmentID string)
	CompletionRecorded(ctx context.Context, trainer *models.User, traineeName, moduleTitle, assignmentID string)
	SignoffRecorded(ctx context.Context, trainee *models.User, moduleTitle, assignmentID string)
}

// RequestMeta carries per-request audit context into the service layer.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// downloadBasePath is where signed tokens are redeemed for file content.
const downloadBasePath = "/api/v1/downloads/"

// AssignmentService implements the training assignment lifecycle. Every state
// a caller observes is derived from the completion and sign-off evidence; the
// stored enum only distinguishes ASSIGNED from IN_PROGRESS.
type AssignmentService struct {
	repo       assignmentRepository
	modules    assignmentModuleRepository
	users      assignmentUserRepository
	signer     materialURLSigner
	notifier   assignmentNotifier
	audit      auditWriter
	metrics    *MetricsService
	dashboards dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(
	repo assignmentRepository,
	modules assignmentModuleRepository,
	users assignmentUserRepository,
	signer materialURLSigner,
	notifier assignmentNotifier,
	audit auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{
		repo:      repo,
		modules:   modules,
		users:     users,
		signer:    signer,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// WithMetrics attaches lifecycle counters. A nil metrics service is a no-op.
func (s *AssignmentService) WithMetrics(m *MetricsService) *AssignmentService {
	s.metrics = m
	return s
}

// WithDashboards registers the dashboard cache to drop after every lifecycle
// mutation, so summaries reflect new evidence before their TTL expires.
func (s *AssignmentService) WithDashboards(d dashboardInvalidator) *AssignmentService {
	s.dashboards = d
	return s
}

// Create assigns a module to a trainee. The trainer, when present, must be a
// different person than the trainee: nobody signs off their own training.
func (s *AssignmentService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateAssignmentRequest, meta RequestMeta) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if req.TrainerUserID != nil && *req.TrainerUserID == req.AssignedTo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "trainer and trainee must be different users")
	}

	module, err := s.modules.FindByID(ctx, req.ModuleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if !module.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "module is no longer active")
	}

	trainee, err := s.users.FindByID(ctx, req.AssignedTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainee")
	}
	if !trainee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "trainee account is inactive")
	}

	if req.TrainerUserID != nil {
		trainer, err := s.users.FindByID(ctx, *req.TrainerUserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
		}
		if !trainer.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "trainer account is inactive")
		}
	}

	assignment := &models.Assignment{
		ModuleID:      req.ModuleID,
		AssignedTo:    req.AssignedTo,
		AssignedBy:    actor.UserID,
		TrainerUserID: req.TrainerUserID,
		DueDate:       req.DueDate,
		Status:        models.AssignmentStatusAssigned,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.writeAudit(ctx, actor, models.AuditActionAssignmentCreate, "assignment", assignment.ID, meta, map[string]string{
		"module_id":   req.ModuleID,
		"assigned_to": req.AssignedTo,
	})

	if s.notifier != nil {
		s.notifier.AssignmentCreated(ctx, trainee, module.Title, req.DueDate, assignment.ID)
	}
	s.invalidateDashboards(ctx)

	return s.loadDetail(ctx, assignment.ID)
}

// Get returns one assignment with its derived lifecycle state. Employees see
// only their own rows; supervisors additionally the ones they train.
func (s *AssignmentService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, &detail.Assignment) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another user")
	}
	return detail, nil
}

// List returns assignments scoped to the caller's role, each with its derived
// state. The overdue filter matches rows past due that are not yet approved.
func (s *AssignmentService) List(ctx context.Context, actor *models.JWTClaims, req dto.ListAssignmentsRequest) ([]models.AssignmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list filters")
	}

	filter := models.AssignmentFilter{
		ModuleID:   req.ModuleID,
		LineID:     req.LineID,
		CategoryID: req.CategoryID,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	switch actor.Role {
	case models.RoleEmployee:
		filter.AssignedTo = actor.UserID
	case models.RoleSupervisor:
		filter.AssignedTo = actor.UserID
		filter.TrainerUserID = actor.UserID
	}
	if req.Overdue {
		// overdue means past due and not yet approved; the repository applies
		// both conditions so pagination and the total count stay honest
		now := time.Now().UTC()
		filter.DueBefore = &now
		filter.NotApproved = true
	}

	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	for i := range details {
		details[i].DerivedState = models.DeriveDetailState(&details[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return details, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// OpenMaterial grants access to the module material behind an assignment.
// Opening is what moves a fresh assignment to IN_PROGRESS, but the transition
// is best-effort: a failure to record it never blocks the material itself.
func (s *AssignmentService) OpenMaterial(ctx context.Context, actor *models.JWTClaims, id string, meta RequestMeta) (*models.MaterialAccess, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !s.canView(actor, assignment) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another user")
	}

	module, err := s.modules.FindByID(ctx, assignment.ModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	token, expiresAt, err := s.signer.Generate(assignment.ID, module.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign material url")
	}

	if actor.UserID == assignment.AssignedTo && assignment.Status == models.AssignmentStatusAssigned {
		if err := s.repo.MarkStarted(ctx, assignment.ID, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to mark assignment started", zap.String("assignment_id", assignment.ID), zap.Error(err))
		} else {
			s.invalidateDashboards(ctx)
		}
	}

	s.writeAudit(ctx, actor, models.AuditActionMaterialOpen, "assignment", assignment.ID, meta, map[string]string{
		"module_id": module.ID,
	})

	return &models.MaterialAccess{URL: downloadBasePath + token, ExpiresAt: expiresAt, Type: module.Type}, nil
}

// MarkComplete records the trainee's completion with a signature snapshot.
// Exactly one completion can exist per assignment; a second attempt conflicts
// regardless of who races whom.
func (s *AssignmentService) MarkComplete(ctx context.Context, actor *models.JWTClaims, id string, meta RequestMeta) (*models.AssignmentDetail, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the trainee can mark an assignment complete")
	}

	signerName, signerEmail := s.resolveActor(ctx, actor)

	completion := &models.Completion{AssignmentID: assignment.ID}
	signature := &models.Signature{
		SignerUserID:        actor.UserID,
		SignedNameSnapshot:  signerName,
		SignedEmailSnapshot: signerEmail,
		UserAgent:           meta.UserAgent,
	}
	if err := s.repo.CreateCompletion(ctx, completion, signature); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is already completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}

	s.metrics.RecordCompletion()
	s.writeAudit(ctx, actor, models.AuditActionCompletionCreate, "assignment", assignment.ID, meta, map[string]string{
		"completion_id": completion.ID,
	})

	if s.notifier != nil {
		module, merr := s.modules.FindByID(ctx, assignment.ModuleID)
		title := ""
		if merr == nil {
			title = module.Title
		}
		var trainer *models.User
		if assignment.TrainerUserID != nil {
			trainer, _ = s.users.FindByID(ctx, *assignment.TrainerUserID)
		}
		s.notifier.CompletionRecorded(ctx, trainer, signerName, title, assignment.ID)
	}
	s.invalidateDashboards(ctx)

	return s.loadDetail(ctx, assignment.ID)
}

// TrainerSignOff records the trainer's approval of a completion. Only the
// trainer named on the assignment may sign; there is no manager override. A
// repeated sign-off returns ALREADY_SIGNED so clients can treat it as settled.
func (s *AssignmentService) TrainerSignOff(ctx context.Context, actor *models.JWTClaims, id string, meta RequestMeta) (*models.AssignmentDetail, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if assignment.TrainerUserID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment has no trainer to sign off")
	}
	if *assignment.TrainerUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned trainer can sign off")
	}

	completions, err := s.repo.ListCompletionsByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completions")
	}
	completion := models.LatestCompletion(completions)
	if completion == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment has not been completed yet")
	}

	if _, err := s.repo.FindSignoffByCompletion(ctx, completion.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadySigned, "completion is already signed off")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sign-off")
	}

	trainerName, trainerEmail := s.resolveActor(ctx, actor)

	signoff := &models.TrainerSignoff{
		CompletionID:        completion.ID,
		TrainerUserID:       actor.UserID,
		SignedNameSnapshot:  trainerName,
		SignedEmailSnapshot: trainerEmail,
		UserAgent:           meta.UserAgent,
	}
	if err := s.repo.CreateSignoff(ctx, signoff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadySigned, "completion is already signed off")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sign-off")
	}

	s.metrics.RecordSignoff()
	s.writeAudit(ctx, actor, models.AuditActionSignoffCreate, "assignment", assignment.ID, meta, map[string]string{
		"completion_id": completion.ID,
		"signoff_id":    signoff.ID,
	})

	if s.notifier != nil {
		trainee, terr := s.users.FindByID(ctx, assignment.AssignedTo)
		if terr == nil {
			module, merr := s.modules.FindByID(ctx, assignment.ModuleID)
			title := ""
			if merr == nil {
				title = module.Title
			}
			s.notifier.SignoffRecorded(ctx, trainee, title, assignment.ID)
		}
	}
	s.invalidateDashboards(ctx)

	return s.loadDetail(ctx, assignment.ID)
}

func (s *AssignmentService) loadDetail(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	detail.DerivedState = models.DeriveDetailState(detail)
	return detail, nil
}

// resolveActor returns the name and email to snapshot for the acting user.
// The live profile wins when readable; a failed lookup falls back to the
// token claims so a transient profile read can never block a signature.
func (s *AssignmentService) resolveActor(ctx context.Context, actor *models.JWTClaims) (name, email string) {
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("profile lookup failed, using token snapshot",
			zap.String("user_id", actor.UserID), zap.Error(err))
		return actor.ActorDisplayName(), actor.Email
	}
	return user.DisplayName(), user.Email
}

func (s *AssignmentService) invalidateDashboards(ctx context.Context) {
	if s.dashboards != nil {
		s.dashboards.Invalidate(ctx)
	}
}

func (s *AssignmentService) canView(actor *models.JWTClaims, assignment *models.Assignment) bool {
	switch actor.Role {
	case models.RoleManager, models.RoleAdmin:
		return true
	case models.RoleSupervisor:
		if assignment.TrainerUserID != nil && *assignment.TrainerUserID == actor.UserID {
			return true
		}
		return assignment.AssignedTo == actor.UserID
	default:
		return assignment.AssignedTo == actor.UserID
	}
}

func (s *AssignmentService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, meta RequestMeta, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	log := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		NewValues: payload,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
