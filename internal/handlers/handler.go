package handlers

import (
	"net/http"
	"time"

	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options tunes the HTTP layer.
type Options struct {
	Metrics *metrics.Metrics
	// PushInterval is the default /ws refresh period.
	PushInterval time.Duration
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services     *service.Service
	metrics      *metrics.Metrics
	pushInterval time.Duration
	log          *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts Options) *Handler {
	interval := opts.PushInterval
	if interval <= 0 || interval > maxInterval {
		interval = defaultInterval
	}
	return &Handler{
		services:     services,
		metrics:      opts.Metrics,
		pushInterval: interval,
		log:          log,
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// home stream over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		api.POST("/auth/sign-out", h.signOut)
		api.GET("/me", h.me)
		api.GET("/home", h.getHome)

		h.registerCommandRoutes(api)
		h.registerHistoryRoutes(api)
	}
}

func (h *Handler) registerCommandRoutes(api *gin.RouterGroup) {
	session := api.Group("/session")
	{
		// Body example: {"limb":"left_arm"}
		session.POST("/start", h.startSession)
		session.POST("/stop", h.stopSession)
	}

	api.POST("/arm", h.arm)
	api.POST("/disarm", h.disarm)

	calibrate := api.Group("/calibrate")
	{
		calibrate.POST("/init", h.calibrateInit)
		calibrate.POST("/final", h.calibrateFinal)
	}

	// Body example: {"on":true}
	api.POST("/led", h.setLed)
	api.POST("/buzzer", h.setBuzzer)
}

func (h *Handler) registerHistoryRoutes(api *gin.RouterGroup) {
	history := api.Group("/history")
	{
		history.GET("", h.getHistory)
		history.GET("/export", h.exportHistory)
		history.DELETE("/:id", h.deleteHistory)
	}

	api.GET("/stats", h.getStats)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
