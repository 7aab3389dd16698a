package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
	"github.com/trainsmart-io/trainsmart-api/pkg/response"
	"github.com/trainsmart-io/trainsmart-api/pkg/storage"
)

// DownloadSource pairs a token signer with the file store its tokens resolve
// against. Materials and report exports sign with different secrets, so each
// gets its own source.
type DownloadSource struct {
	Signer *storage.SignedURLSigner
	Files  *storage.LocalStorage
}

// DownloadHandler serves files behind signed URLs: training materials and
// exported reports. The token itself is the authorization; no session is
// required so links work in office kiosk browsers.
type DownloadHandler struct {
	sources []DownloadSource
}

// NewDownloadHandler creates a new handler.
func NewDownloadHandler(sources ...DownloadSource) *DownloadHandler {
	return &DownloadHandler{sources: sources}
}

// Download godoc
// @Summary Download file by signed token
// @Tags Downloads
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	token := c.Param("token")
	for _, src := range h.sources {
		if src.Signer == nil || src.Files == nil {
			continue
		}
		_, relPath, _, err := src.Signer.Parse(token, false)
		if err != nil {
			continue
		}
		c.FileAttachment(src.Files.Path(relPath), filepath.Base(relPath))
		return
	}
	response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link"))
}
