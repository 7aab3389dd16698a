package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalmiddleware "github.com/trainsmart-io/trainsmart-api/internal/middleware"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	"github.com/trainsmart-io/trainsmart-api/internal/service"
	"github.com/trainsmart-io/trainsmart-api/pkg/storage"
)

const (
	itTraineeID    = "a1a9b5a0-0000-4000-8000-000000000001"
	itTrainerID    = "a1a9b5a0-0000-4000-8000-000000000002"
	itManagerID    = "a1a9b5a0-0000-4000-8000-000000000003"
	itModuleID     = "a1a9b5a0-0000-4000-8000-000000000010"
	itAssignmentID = "a1a9b5a0-0000-4000-8000-000000000020"
)

func TestAssignmentRoutesIntegration(t *testing.T) {
	router := buildTrainingRouter()

	t.Run("create unauthorized without claims", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/assignments", bytes.NewBufferString(defaultAssignmentPayload))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("create forbidden for employee", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/assignments", bytes.NewBufferString(defaultAssignmentPayload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleEmployee))
		req.Header.Set("X-Test-User", itTraineeID)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("create forbidden for supervisor", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/assignments", bytes.NewBufferString(defaultAssignmentPayload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleSupervisor))
		req.Header.Set("X-Test-User", itTrainerID)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("create success for manager", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/assignments", bytes.NewBufferString(defaultAssignmentPayload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleManager))
		req.Header.Set("X-Test-User", itManagerID)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"state":"NOT_STARTED"`)
	})

	t.Run("get forbidden for unrelated employee", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/assignments/"+itAssignmentID, nil)
		req.Header.Set("X-Test-Role", string(models.RoleEmployee))
		req.Header.Set("X-Test-User", "a1a9b5a0-0000-4000-8000-0000000000ff")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("material returns signed url for trainee", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/assignments/"+itAssignmentID+"/material", nil)
		req.Header.Set("X-Test-Role", string(models.RoleEmployee))
		req.Header.Set("X-Test-User", itTraineeID)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), "/api/v1/downloads/")
	})

	t.Run("dashboard resolves employee view", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("X-Test-Role", string(models.RoleEmployee))
		req.Header.Set("X-Test-User", itTraineeID)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"counts"`)
	})
}

func TestDownloadRouteServesSignedFiles(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modules", "safety.pdf"), []byte("pdf-bytes"), 0o644))

	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	token, _, err := signer.Generate("assignment-1", "modules/safety.pdf")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewDownloadHandler(DownloadSource{Signer: signer, Files: files})
	router.GET("/downloads/:token", h.Download)

	req, _ := http.NewRequest(http.MethodGet, "/downloads/"+token, nil)
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "pdf-bytes", resp.Body.String())

	req, _ = http.NewRequest(http.MethodGet, "/downloads/not-a-token", nil)
	resp = performRequest(router, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func buildTrainingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID: c.GetHeader("X-Test-User"),
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	})

	users := map[string]*models.User{
		itTraineeID: {ID: itTraineeID, Email: "trainee@example.com", FirstName: "Tess", LastName: "Lee", Role: models.RoleEmployee, Active: true},
		itTrainerID: {ID: itTrainerID, Email: "trainer@example.com", FirstName: "Sam", LastName: "Ng", Role: models.RoleSupervisor, Active: true},
	}
	module := &models.Module{
		ID: itModuleID, Title: "Forklift Safety", Version: 1,
		StoragePath: "modules/forklift-v1.pdf", Type: models.ModuleTypeDoc, Active: true,
	}
	repo := &routeAssignmentRepo{}
	signer := storage.NewSignedURLSigner("route-test-secret", time.Minute)

	assignmentService := service.NewAssignmentService(
		repo,
		&routeModuleRepo{module: module},
		&routeUserRepo{users: users},
		signer,
		nil,
		nil,
		validator.New(),
		zap.NewNop(),
	)
	dashboardService := service.NewDashboardService(repo, &routeReportRepo{}, nil, zap.NewNop(), service.DashboardConfig{})

	assignmentHandler := NewAssignmentHandler(assignmentService)
	dashboardHandler := NewDashboardHandler(dashboardService)

	secured := router.Group("")
	secured.POST("/assignments",
		internalmiddleware.RequireRoles(models.RoleManager, models.RoleAdmin),
		assignmentHandler.Create)
	secured.GET("/assignments/:id", internalmiddleware.RBAC(
		string(models.RoleEmployee), string(models.RoleSupervisor), string(models.RoleManager), string(models.RoleAdmin)),
		assignmentHandler.Get)
	secured.GET("/assignments/:id/material", internalmiddleware.RBAC(
		string(models.RoleEmployee), string(models.RoleSupervisor), string(models.RoleManager), string(models.RoleAdmin)),
		assignmentHandler.OpenMaterial)
	secured.GET("/dashboard", internalmiddleware.RBAC(
		string(models.RoleEmployee), string(models.RoleSupervisor), string(models.RoleManager), string(models.RoleAdmin)),
		dashboardHandler.Summary)

	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const defaultAssignmentPayload = `{"module_id":"` + itModuleID + `","assigned_to":"` + itTraineeID + `","trainer_user_id":"` + itTrainerID + `"}`

type routeAssignmentRepo struct {
	assignment *models.Assignment
}

func (r *routeAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = itAssignmentID
	}
	r.assignment = a
	return nil
}

func (r *routeAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if r.assignment == nil || r.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.assignment, nil
}

func (r *routeAssignmentRepo) FindDetail(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if r.assignment == nil || r.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	return &models.AssignmentDetail{Assignment: *r.assignment}, nil
}

func (r *routeAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	return nil, 0, nil
}

func (r *routeAssignmentRepo) MarkStarted(ctx context.Context, id string, ts time.Time) error {
	if r.assignment != nil && r.assignment.Status == models.AssignmentStatusAssigned {
		r.assignment.Status = models.AssignmentStatusInProgress
		r.assignment.StartedAt = &ts
	}
	return nil
}

func (r *routeAssignmentRepo) CreateCompletion(ctx context.Context, c *models.Completion, sig *models.Signature) error {
	return nil
}

func (r *routeAssignmentRepo) ListCompletionsByAssignment(ctx context.Context, assignmentID string) ([]models.Completion, error) {
	return nil, nil
}

func (r *routeAssignmentRepo) CreateSignoff(ctx context.Context, s *models.TrainerSignoff) error {
	return nil
}

func (r *routeAssignmentRepo) FindSignoffByCompletion(ctx context.Context, completionID string) (*models.TrainerSignoff, error) {
	return nil, sql.ErrNoRows
}

type routeModuleRepo struct {
	module *models.Module
}

func (r *routeModuleRepo) FindByID(ctx context.Context, id string) (*models.Module, error) {
	if r.module == nil || r.module.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.module, nil
}

type routeUserRepo struct {
	users map[string]*models.User
}

func (r *routeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type routeReportRepo struct{}

func (routeReportRepo) ComplianceRows(ctx context.Context, groupBy, lineID, categoryID, moduleID string) ([]repository.ComplianceSource, error) {
	return nil, nil
}
