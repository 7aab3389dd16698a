package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
)

type moduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
	List(ctx context.Context, filter models.ModuleFilter) ([]models.ModuleDetail, int, error)
	Create(ctx context.Context, module *models.Module) error
	Deactivate(ctx context.Context, id string) error
	FindLineByID(ctx context.Context, id string) (*models.Line, error)
	FindCategoryByID(ctx context.Context, id string) (*models.Category, error)
}

type materialStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// allowed upload extensions per module type
var moduleTypeExtensions = map[models.ModuleType][]string{
	models.ModuleTypeDoc:   {".pdf", ".doc", ".docx"},
	models.ModuleTypePPT:   {".ppt", ".pptx"},
	models.ModuleTypeVideo: {".mp4", ".webm", ".mov"},
}

// ModuleService manages the training content catalogue. Modules are
// immutable once published: changing material means republishing at a new
// version so every past assignment keeps pointing at what the trainee saw.
type ModuleService struct {
	repo      moduleRepository
	storage   materialStorage
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewModuleService constructs the service.
func NewModuleService(repo moduleRepository, storage materialStorage, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *ModuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ModuleService{repo: repo, storage: storage, audit: audit, validator: validate, logger: logger}
}

// Create publishes a new module at version 1 with the uploaded material.
func (s *ModuleService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateModuleRequest, filename string, material io.Reader, meta RequestMeta) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}

	moduleType := models.ModuleType(req.Type)
	if err := validateMaterialExtension(moduleType, filename); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindLineByID(ctx, req.LineID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "line not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load line")
	}
	if _, err := s.repo.FindCategoryByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	module := &models.Module{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Version:    1,
		LineID:     req.LineID,
		CategoryID: req.CategoryID,
		Type:       moduleType,
		Active:     true,
		CreatedBy:  actor.UserID,
	}

	storagePath, err := s.storeMaterial(module, filename, material)
	if err != nil {
		return nil, err
	}
	module.StoragePath = storagePath

	if err := s.repo.Create(ctx, module); err != nil {
		s.removeMaterial(storagePath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}

	s.writeAudit(ctx, actor, models.AuditActionModuleCreate, module.ID, meta, map[string]string{
		"title":   module.Title,
		"version": fmt.Sprintf("%d", module.Version),
	})

	return module, nil
}

// Republish creates a successor module at version+1 with new material and
// deactivates the predecessor. Existing assignments stay bound to the old row.
func (s *ModuleService) Republish(ctx context.Context, actor *models.JWTClaims, id string, req dto.RepublishModuleRequest, filename string, material io.Reader, meta RequestMeta) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}

	prev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}

	next := &models.Module{
		ID:         uuid.NewString(),
		Title:      prev.Title,
		Version:    prev.Version + 1,
		LineID:     prev.LineID,
		CategoryID: prev.CategoryID,
		Type:       prev.Type,
		Active:     true,
		CreatedBy:  actor.UserID,
	}
	if req.Title != "" {
		next.Title = req.Title
	}
	if req.Type != "" {
		next.Type = models.ModuleType(req.Type)
	}
	if err := validateMaterialExtension(next.Type, filename); err != nil {
		return nil, err
	}

	storagePath, err := s.storeMaterial(next, filename, material)
	if err != nil {
		return nil, err
	}
	next.StoragePath = storagePath

	if err := s.repo.Create(ctx, next); err != nil {
		s.removeMaterial(storagePath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module version")
	}
	if err := s.repo.Deactivate(ctx, prev.ID); err != nil {
		s.logger.Warn("failed to deactivate replaced module", zap.String("module_id", prev.ID), zap.Error(err))
	}

	s.writeAudit(ctx, actor, models.AuditActionModuleRepublish, next.ID, meta, map[string]string{
		"replaces": prev.ID,
		"version":  fmt.Sprintf("%d", next.Version),
	})

	return next, nil
}

// Get returns one module.
func (s *ModuleService) Get(ctx context.Context, id string) (*models.Module, error) {
	module, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

// List returns modules matching the filters.
func (s *ModuleService) List(ctx context.Context, req dto.ListModulesRequest) ([]models.ModuleDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list filters")
	}

	filter := models.ModuleFilter{
		LineID:     req.LineID,
		CategoryID: req.CategoryID,
		Active:     req.Active,
		Search:     req.Search,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	modules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return modules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Deactivate retires a module from new assignment. The material stays on
// disk because open assignments may still reference it.
func (s *ModuleService) Deactivate(ctx context.Context, actor *models.JWTClaims, id string, meta RequestMeta) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate module")
	}
	s.writeAudit(ctx, actor, models.AuditActionModuleDeactivate, id, meta, nil)
	return nil
}

func (s *ModuleService) storeMaterial(module *models.Module, filename string, material io.Reader) (string, error) {
	if material == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "material file is required")
	}
	relPath := filepath.Join("modules", fmt.Sprintf("%s-v%d%s", module.ID, module.Version, strings.ToLower(filepath.Ext(filename))))
	stored, err := s.storage.SaveStream(relPath, material)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store material")
	}
	return stored, nil
}

func (s *ModuleService) removeMaterial(path string) {
	if path == "" {
		return
	}
	if err := s.storage.Delete(path); err != nil {
		s.logger.Warn("failed to remove stored material", zap.String("path", path), zap.Error(err))
	}
}

func (s *ModuleService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, meta RequestMeta, values map[string]string) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	log := &models.AuditLog{
		Action:    action,
		Resource:  "module",
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

func validateMaterialExtension(moduleType models.ModuleType, filename string) error {
	allowed, ok := moduleTypeExtensions[moduleType]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown module type")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file extension %s not allowed for type %s", ext, moduleType))
}
