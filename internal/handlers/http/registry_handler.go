package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/pkg/cache"
	apperrors "vigil/pkg/errors"
	"vigil/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const locationsCacheKey = "locations"

// RegistryHandler exposes the camera catalog plus the crawl and audit
// housekeeping operations.
type RegistryHandler struct {
	registry  ports.RegistryService
	audit     ports.AuditService
	crawler   ports.CrawlerService
	locations *cache.Cache[*domain.Registry]
	defaults  RegistryDefaults
	logger    *zap.SugaredLogger
}

type RegistryDefaults struct {
	EliteMinHeight int
}

func NewRegistryHandler(
	registry ports.RegistryService,
	audit ports.AuditService,
	crawler ports.CrawlerService,
	defaults RegistryDefaults,
	logger *zap.SugaredLogger,
) *RegistryHandler {
	if defaults.EliteMinHeight <= 0 {
		defaults.EliteMinHeight = 720
	}
	return &RegistryHandler{
		registry:  registry,
		audit:     audit,
		crawler:   crawler,
		locations: cache.New[*domain.Registry](30 * time.Second),
		defaults:  defaults,
		logger:    logger,
	}
}

func (h *RegistryHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/cameras", h.ListCameras)
		api.GET("/cameras/search", h.SearchCameras)
		api.GET("/locations", h.ListLocations)
		api.POST("/cameras/import", h.ImportCameras)
		api.POST("/audit", h.RunAudit)
		api.POST("/audit/elite", h.FilterElite)
		api.POST("/crawl", h.Crawl)
	}
}

func (h *RegistryHandler) ListCameras(c *gin.Context) {
	cams, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to list cameras"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cams, "count": len(cams)})
}

func (h *RegistryHandler) SearchCameras(c *gin.Context) {
	term := c.Query("q")
	if err := validation.ValidateSearchTerm(term); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	cam, err := h.registry.FindByName(c.Request.Context(), term)
	if err != nil {
		if errors.Is(err, domain.ErrCameraNotFound) {
			c.Error(apperrors.NewNotFoundError("camera"))
			return
		}
		c.Error(apperrors.NewInternalError("camera lookup failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": cam})
}

func (h *RegistryHandler) ListLocations(c *gin.Context) {
	if reg, ok := h.locations.Get(locationsCacheKey); ok {
		c.JSON(http.StatusOK, reg)
		return
	}

	reg, err := h.registry.Locations(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to load locations"))
		return
	}
	h.locations.Set(locationsCacheKey, reg)
	c.JSON(http.StatusOK, reg)
}

// ImportCameras ingests "NAME | URL | LOCATION | SECTOR" lines from the
// request body.
func (h *RegistryHandler) ImportCameras(c *gin.Context) {
	added, err := h.registry.ImportBulk(c.Request.Context(), c.Request.Body)
	if err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	h.locations.Delete(locationsCacheKey)
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *RegistryHandler) RunAudit(c *gin.Context) {
	report, err := h.audit.RunFullAudit(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("audit failed"))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *RegistryHandler) FilterElite(c *gin.Context) {
	minHeight := h.defaults.EliteMinHeight
	if raw := c.Query("min_height"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidInputError("min_height must be a positive integer"))
			return
		}
		minHeight = parsed
	}

	kept, err := h.audit.FilterElite(c.Request.Context(), minHeight)
	if err != nil {
		c.Error(apperrors.NewInternalError("elite filter failed"))
		return
	}

	h.locations.Delete(locationsCacheKey)
	c.JSON(http.StatusOK, gin.H{"kept": kept, "min_height": minHeight})
}

func (h *RegistryHandler) Crawl(c *gin.Context) {
	added, err := h.crawler.Crawl(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("crawl failed"))
		return
	}

	h.locations.Delete(locationsCacheKey)
	c.JSON(http.StatusOK, gin.H{"added": added})
}
