package handlers

import (
	"net/http"

	"rehab_monitor/internal/models"

	"github.com/gin-gonic/gin"
)

// StartSessionRequest names the limb being rehabilitated.
type StartSessionRequest struct {
	Limb string `json:"limb" binding:"required" example:"left_arm"`
}

// ToggleRequest switches a manual actuator.
type ToggleRequest struct {
	On *bool `json:"on" binding:"required" example:"true"`
}

// @Summary      Home state
// @Description  Status flags, bridge liveness, session timer and the recent event window.
// @Tags         home
// @Produce      json
// @Success      200  {object}  models.HomeState
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/home [get]
// @Security     BearerAuth
func (h *Handler) getHome(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.State())
}

// @Summary      Start session
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      StartSessionRequest  true  "Limb"
// @Success      200   {object}  map[string]interface{}  "status, session_id, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/session/start [post]
// @Security     BearerAuth
func (h *Handler) startSession(c *gin.Context) {
	var req StartSessionRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	id, err := h.services.StartSession(c.Request.Context(), req.Limb)
	if err != nil {
		h.commandError(c, "session_start_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusSessionStarted, gin.H{"session_id": id})
}

// @Summary      Stop session
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/session/stop [post]
// @Security     BearerAuth
func (h *Handler) stopSession(c *gin.Context) {
	if err := h.services.StopSession(c.Request.Context()); err != nil {
		h.commandError(c, "session_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusSessionStopped, gin.H{})
}

// @Summary      Arm
// @Description  Replaces the status document with is_armed=true and a fresh session_start_time.
// @Tags         commands
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/arm [post]
// @Security     BearerAuth
func (h *Handler) arm(c *gin.Context) {
	if err := h.services.Arm(c.Request.Context()); err != nil {
		h.commandError(c, "arm_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusArmed, gin.H{})
}

// @Summary      Disarm
// @Tags         commands
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/disarm [post]
// @Security     BearerAuth
func (h *Handler) disarm(c *gin.Context) {
	if err := h.services.Disarm(c.Request.Context()); err != nil {
		h.commandError(c, "disarm_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusDisarmed, gin.H{})
}

// @Summary      Start calibration
// @Tags         commands
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/calibrate/init [post]
// @Security     BearerAuth
func (h *Handler) calibrateInit(c *gin.Context) {
	h.calibrate(c, models.CommandCalibInit)
}

// @Summary      Finish calibration
// @Tags         commands
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/calibrate/final [post]
// @Security     BearerAuth
func (h *Handler) calibrateFinal(c *gin.Context) {
	h.calibrate(c, models.CommandCalibFinal)
}

func (h *Handler) calibrate(c *gin.Context, kind string) {
	if err := h.services.Calibrate(c.Request.Context(), kind); err != nil {
		h.commandError(c, "calibrate_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusCalibrationSent, gin.H{"command": kind})
}

// @Summary      Switch LED
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "LED state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/led [post]
// @Security     BearerAuth
func (h *Handler) setLed(c *gin.Context) {
	var req ToggleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetLed(c.Request.Context(), *req.On); err != nil {
		h.commandError(c, "led_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusLedSet, gin.H{"on": *req.On})
}

// @Summary      Switch buzzer
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "Buzzer state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/buzzer [post]
// @Security     BearerAuth
func (h *Handler) setBuzzer(c *gin.Context) {
	var req ToggleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetBuzzer(c.Request.Context(), *req.On); err != nil {
		h.commandError(c, "buzzer_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusBuzzerSet, gin.H{"on": *req.On})
}
