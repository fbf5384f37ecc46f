package handlers

import (
	"errors"
	"net/http"

	"rehab_monitor/internal/repository"
	"rehab_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK               = "ok"
	statusArmed            = "armed"
	statusDisarmed         = "disarmed"
	statusSessionStarted   = "session_started"
	statusSessionStopped   = "session_stopped"
	statusCalibrationSent  = "calibration_sent"
	statusLedSet           = "led_set"
	statusBuzzerSet        = "buzzer_set"
	statusSessionDeleted   = "deleted"
	statusSignedOut        = "signed_out"
	errInvalidBodyPref     = "invalid body: "
	errCommandNotDelivered = "command not delivered"
	errStatusMissing       = "system status not initialized"
	errLoadHistory         = "failed to load history"
	errDeleteHistory       = "failed to delete session"
	errExportHistory       = "failed to export history"
	errLoadStats           = "failed to load stats"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandError maps a failed store write to a response. Writes are never
// retried; anything but a rejected input or a missing status document is a
// delivery failure.
func (h *Handler) commandError(c *gin.Context, logKey string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCommand), errors.Is(err, service.ErrInvalidLimb):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		h.logAndJSONError(c, http.StatusConflict, errStatusMissing, logKey, err)
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errCommandNotDelivered, logKey, err)
	}
}

// Respond with a status and include the current home state when available.
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if h.services.Home != nil {
		resp["state"] = h.services.State()
	}
	c.JSON(http.StatusOK, resp)
}
