// Package handler exposes the statement import endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/caixafacil/caixafacil/internal/domain/import/repository"
	"github.com/caixafacil/caixafacil/internal/domain/import/service"
	"github.com/caixafacil/caixafacil/internal/domain/import/sniffer"
)

// ImportHandler serves upload analysis and import execution.
type ImportHandler struct {
	svc            *service.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewImportHandler(svc *service.Service, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20 // 10 MiB
	}
	return &ImportHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Analyze previews an uploaded statement: detected layout, column mapping
// and whether the user must confirm it before importing.
func (h *ImportHandler) Analyze(c *gin.Context) {
	data, ok := h.readUpload(c)
	if !ok {
		return
	}

	analysis, err := h.svc.Analyze(c.Request.Context(), data)
	if err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Import runs a full import for an account. An optional "columns" form
// field carries a user-confirmed mapping as JSON.
func (h *ImportHandler) Import(c *gin.Context) {
	accountID, err := uuid.Parse(c.PostForm("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
		return
	}

	var override *service.ColumnOverride
	if raw := c.PostForm("columns"); raw != "" {
		override = &service.ColumnOverride{Type: -1}
		if err := json.Unmarshal([]byte(raw), override); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid columns mapping"})
			return
		}
	}

	fileName, data, ok := h.readUploadNamed(c)
	if !ok {
		return
	}

	job, err := h.svc.Import(c.Request.Context(), accountID, fileName, data, override)
	if err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// GetJob returns one import job with its counters.
func (h *ImportHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.svc.Job(c.Request.Context(), id)
	if errors.Is(err, repository.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "import job not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load import job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load import job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs returns recent import jobs.
func (h *ImportHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, err := h.svc.Jobs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list import jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list import jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *ImportHandler) readUpload(c *gin.Context) ([]byte, bool) {
	_, data, ok := h.readUploadNamed(c)
	return data, ok
}

func (h *ImportHandler) readUploadNamed(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return "", nil, false
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return "", nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return "", nil, false
	}
	if int64(len(data)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

// writeImportError maps pipeline errors to HTTP responses. Low-confidence
// detection is not a failure: it asks the client to confirm the mapping.
func (h *ImportHandler) writeImportError(c *gin.Context, err error) {
	var lowErr *service.LowConfidenceError
	if errors.As(err, &lowErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "column detection confidence too low; confirm the column mapping",
			"confidence": lowErr.Confidence,
			"columns":    lowErr.Columns,
		})
		return
	}

	var missingErr *sniffer.MissingColumnsError
	if errors.As(err, &missingErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           "could not detect mandatory columns",
			"missing_columns": missingErr.Fields,
		})
		return
	}

	if errors.Is(err, sniffer.ErrEmptyFile) || errors.Is(err, sniffer.ErrNoHeadersFound) ||
		errors.Is(err, service.ErrNoValidRows) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Error("import request failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
}
