package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes bounds a single spreadsheet upload.
const maxUploadBytes = 32 << 20

type ImportHandler struct {
	imports *service.ImportService
}

func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

type uploadForm struct {
	Dataset    string `form:"dataset" binding:"required"`
	Month      int    `form:"month" binding:"required,min=1,max=12"`
	Year       int    `form:"year" binding:"required,min=2000,max=2200"`
	UploadedBy string `form:"uploaded_by" binding:"max=200"`
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", file.Filename, maxUploadBytes)
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

// UploadResults imports one spreadsheet synchronously and returns the outcome,
// including per-row errors.
func (h *ImportHandler) UploadResults(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	dataset, err := domain.ParseDatasetType(form.Dataset)
	if err != nil {
		errorResponse(c, err, "invalid dataset")
		return
	}
	period, err := domain.NewPeriod(form.Month, form.Year)
	if err != nil {
		errorResponse(c, err, "invalid period")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}
	data, err := readUpload(file)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, err := h.imports.Import(c.Request.Context(), domain.ImportRequest{
		Dataset:    dataset,
		Period:     period,
		UploadedBy: strings.TrimSpace(form.UploadedBy),
		Filename:   filepath.Base(file.Filename),
		Data:       data,
	})
	if err != nil {
		if outcome != nil {
			log.Error().Err(err).Str("import_id", outcome.ImportID).Msg("import interrupted")
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "outcome": outcome})
			return
		}
		errorResponse(c, err, "failed to import spreadsheet")
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// UploadStores bulk-loads the registry from a spreadsheet
func (h *ImportHandler) UploadStores(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}
	data, err := readUpload(file)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	results, err := h.imports.ImportStores(c.Request.Context(), data)
	if err != nil {
		errorResponse(c, err, "failed to import stores")
		return
	}
	c.JSON(http.StatusOK, results)
}
