package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/service"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
	"github.com/trainsmart-io/trainsmart-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Compliance godoc
// @Summary Compliance report
// @Description Status rollup grouped by line, category, module, or employee
// @Tags Reports
// @Produce json
// @Param groupBy query string false "line, category, module, or employee"
// @Param lineId query string false "Line filter"
// @Param categoryId query string false "Category filter"
// @Param moduleId query string false "Module filter"
// @Success 200 {object} response.Envelope
// @Router /reports/compliance [get]
func (h *ReportHandler) Compliance(c *gin.Context) {
	var filter dto.ComplianceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	report, err := h.service.Compliance(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// Trend godoc
// @Summary Completion trend
// @Description Monthly completion and sign-off volumes
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/trend [get]
func (h *ReportHandler) Trend(c *gin.Context) {
	points, err := h.service.Trend(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// Export godoc
// @Summary Export compliance report
// @Description Render the compliance report as CSV or PDF and return a signed download link
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	res, err := h.service.Export(c.Request.Context(), claimsFromContext(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
