package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-pipeline/internal/config"
	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/service"
	"lpr-pipeline/internal/zones"
)

type Handler struct {
	pipeline *service.PipelineService
	presets  *zones.Presets
	config   *config.Config
	log      zerolog.Logger
}

func NewHandler(
	pipeline *service.PipelineService,
	presets *zones.Presets,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		pipeline: pipeline,
		presets:  presets,
		config:   cfg,
		log:      log,
	}
}

// NewRouter builds the gin engine with CORS and all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(h.config.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = h.config.Server.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	h.Register(r, JWTAuth(h.config.Auth.JWTSecret))
	return r
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/frames", h.ingestFrame)
		public.GET("/events", h.listEvents)
		public.GET("/events/last", h.lastRead)
		public.GET("/stats", h.stats)
		public.GET("/zones/presets", h.listPresets)
		public.GET("/zones/presets/:name", h.getPreset)
	}

	// Protected endpoints: zone editing changes live classification
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.PUT("/zones/presets/:name", h.applyPreset)
		protected.POST("/source/reset", h.resetSource)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ingestFrame(c *gin.Context) {
	var payload plate.FramePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if payload.FrameTime.IsZero() {
		payload.FrameTime = time.Now()
	}

	result, err := h.pipeline.ProcessFramePayload(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to process frame payload")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "ok",
		"accepted": result.Accepted,
		"rejected": result.Rejected,
		"outside":  result.OutsideZones,
	})
}

func (h *Handler) listEvents(c *gin.Context) {
	var plateQuery *string
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plateQuery = &p
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.pipeline.FindEvents(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to find read events")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) lastRead(c *gin.Context) {
	at, err := h.pipeline.LastRead(c.Request.Context(), c.Query("plate"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		default:
			h.log.Error().Err(err).Msg("failed to look up last read")
			c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		}
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"last_read": at}))
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.pipeline.Stats()))
}

func (h *Handler) listPresets(c *gin.Context) {
	active, mode := h.presets.Active()
	c.JSON(http.StatusOK, gin.H{
		"active":  active,
		"mode":    mode,
		"presets": h.presets.Names(),
	})
}

func (h *Handler) getPreset(c *gin.Context) {
	name := c.Param("name")
	preset, ok := h.presets.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("preset not found"))
		return
	}
	c.JSON(http.StatusOK, successResponse(preset))
}

type applyPresetRequest struct {
	Mode  zones.Mode   `json:"mode" binding:"required"`
	Zones zones.Preset `json:"zones" binding:"required"`
}

func (h *Handler) applyPreset(c *gin.Context) {
	name := c.Param("name")
	var req applyPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.presets.Apply(name, req.Zones, req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	h.log.Info().Str("preset", name).Str("mode", string(req.Mode)).Msg("zone preset applied")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "preset": name})
}

func (h *Handler) resetSource(c *gin.Context) {
	h.pipeline.ResetSource()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
