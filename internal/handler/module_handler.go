package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/service"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
	"github.com/trainsmart-io/trainsmart-api/pkg/response"
)

// ModuleHandler wires HTTP endpoints to the module service.
type ModuleHandler struct {
	service     *service.ModuleService
	maxFileSize int64
}

// NewModuleHandler creates a new handler.
func NewModuleHandler(svc *service.ModuleService, maxFileSize int64) *ModuleHandler {
	if maxFileSize <= 0 {
		maxFileSize = 100 << 20
	}
	return &ModuleHandler{service: svc, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Publish training module
// @Description Create a module at version 1 with uploaded material
// @Tags Modules
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Module title"
// @Param line_id formData string true "Line ID"
// @Param category_id formData string true "Category ID"
// @Param type formData string true "Material type (DOC, PPT, VIDEO)"
// @Param file formData file true "Material file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	req := dto.CreateModuleRequest{
		Title:      c.PostForm("title"),
		LineID:     c.PostForm("line_id"),
		CategoryID: c.PostForm("category_id"),
		Type:       c.PostForm("type"),
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "material file is required"))
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "material file exceeds size limit"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	module, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req, fileHeader.Filename, file, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, module)
}

// Republish godoc
// @Summary Republish module
// @Description Create a successor version with new material and retire the old row
// @Tags Modules
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Module ID"
// @Param file formData file true "Material file"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id}/republish [post]
func (h *ModuleHandler) Republish(c *gin.Context) {
	req := dto.RepublishModuleRequest{
		Title: c.PostForm("title"),
		Type:  c.PostForm("type"),
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "material file is required"))
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "material file exceeds size limit"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	module, err := h.service.Republish(c.Request.Context(), claimsFromContext(c), c.Param("id"), req, fileHeader.Filename, file, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, module)
}

// List godoc
// @Summary List modules
// @Tags Modules
// @Produce json
// @Param lineId query string false "Line filter"
// @Param categoryId query string false "Category filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Title search"
// @Success 200 {object} response.Envelope
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	var req dto.ListModulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	modules, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, modules, pagination)
}

// Get godoc
// @Summary Get module by ID
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id} [get]
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Deactivate godoc
// @Summary Deactivate module
// @Description Retire a module from new assignment
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id} [delete]
func (h *ModuleHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), claimsFromContext(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
