package certificates

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/registry"
	"ceue-certificates/certgen/pkg/docx"
	"ceue-certificates/certgen/pkg/storage"
)

// ParamsFunc builds the run parameters for one request
type ParamsFunc func() (RunParameters, error)

// Handler handles HTTP requests for certificate operations
type Handler struct {
	service  *Service
	template *docx.Document
	params   ParamsFunc
	logger   *zap.Logger
}

// NewHandler creates a new certificates handler. params is called per
// request so the document date follows the calendar.
func NewHandler(service *Service, template *docx.Document, params ParamsFunc, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		template: template,
		params:   params,
		logger:   logger,
	}
}

// RegisterRoutes registers certificate routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	certs := router.Group("/certificates")
	{
		certs.POST("/preview", h.preview)
		certs.POST("", h.render)
		certs.GET("", h.findByCard)
	}
	router.GET("/runs/:id", h.getRun)
}

// preview handles POST /api/v1/certificates/preview
func (h *Handler) preview(c *gin.Context) {
	var rec Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params, ok := h.runParameters(c)
	if !ok {
		return
	}

	values, err := Derive(rec, params)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"values": values})
}

// render handles POST /api/v1/certificates
func (h *Handler) render(c *gin.Context) {
	var rec Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, ok := h.runParameters(c)
	if !ok {
		return
	}

	work, err := os.MkdirTemp("", "certgen-api-*")
	if err != nil {
		h.logger.Error("Failed to create scratch directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create scratch directory"})
		return
	}
	defer os.RemoveAll(work)

	name := filepath.Base(storage.OutputPath("", h.service.options.Pattern, rec.FullName))
	dst := filepath.Join(work, name)

	if _, err := h.service.RenderOne(c.Request.Context(), h.template, rec, params, dst); err != nil {
		var recErr *RecordError
		if errors.As(err, &recErr) && recErr.Stage == StageDerive {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to render certificate", zap.String("student", strings.TrimSpace(rec.FullName)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.FileAttachment(dst, name)
}

// runParameters answers 500 when the parameters cannot be built
func (h *Handler) runParameters(c *gin.Context) (RunParameters, bool) {
	params, err := h.params()
	if err != nil {
		h.logger.Error("Failed to build run parameters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build run parameters"})
		return RunParameters{}, false
	}
	return params, true
}

// findByCard handles GET /api/v1/certificates?card=
func (h *Handler) findByCard(c *gin.Context) {
	repo := h.service.Registry()
	if repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "issuance registry is not configured"})
		return
	}

	card, err := padCardNumber(c.Query("card"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issuances, err := repo.FindByCard(c.Request.Context(), card)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if issuances == nil {
		issuances = []registry.Issuance{}
	}

	c.JSON(http.StatusOK, gin.H{"card": card, "issuances": issuances})
}

// getRun handles GET /api/v1/runs/:id
func (h *Handler) getRun(c *gin.Context) {
	repo := h.service.Registry()
	if repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "issuance registry is not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}

	issuances, err := repo.ListByRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "issuances": issuances})
}
