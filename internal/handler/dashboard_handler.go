package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/service"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
	"github.com/trainsmart-io/trainsmart-api/pkg/response"
)

// DashboardHandler wires HTTP endpoints to the dashboard service.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Role-appropriate dashboard
// @Description Return the landing page summary for the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var (
		payload interface{}
		err     error
	)
	switch claims.Role {
	case models.RoleManager, models.RoleAdmin:
		payload, err = h.service.Manager(c.Request.Context(), claims)
	case models.RoleSupervisor:
		payload, err = h.service.Supervisor(c.Request.Context(), claims)
	default:
		payload, err = h.service.Employee(c.Request.Context(), claims)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payload, nil)
}
