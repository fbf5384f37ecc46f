package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"rehab_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportFilename  = "history.xlsx"
)

// @Summary      Session history
// @Description  Finished sessions grouped by local calendar day (dd/MM/yyyy), newest day first.
// @Tags         history
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, groups"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	groups, err := h.services.Groups(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, "history_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(groups), "groups": groups})
}

// @Summary      Delete session
// @Tags         history
// @Produce      json
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/history/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteHistory(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.History.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrInvalidSessionID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusBadGateway, errDeleteHistory, "history_delete_failed", err, "session_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSessionDeleted, "id": id})
}

// @Summary      Export history
// @Description  One row per recorded event.
// @Tags         history
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}    file
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/history/export [get]
// @Security     BearerAuth
func (h *Handler) exportHistory(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.services.Export(c.Request.Context(), &buf); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errExportHistory, "history_export_failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// @Summary      Weekly stats
// @Description  Recorded events per day over the last 7 local days, oldest first.
// @Tags         history
// @Produce      json
// @Success      200  {array}   models.BarChartData
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/stats [get]
// @Security     BearerAuth
func (h *Handler) getStats(c *gin.Context) {
	bars, err := h.services.Last7Days(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadStats, "stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, bars)
}
