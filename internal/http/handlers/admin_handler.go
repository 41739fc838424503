// README: Admin/support handlers: manual sweep trigger and suspension queries.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/modules/sweeper"
	"ridepool/internal/types"
)

type AdminHandler struct {
	sweeper  *sweeper.Service
	sanction *sanction.Service
}

func NewAdminHandler(sweepSvc *sweeper.Service, sanctionSvc *sanction.Service) *AdminHandler {
	return &AdminHandler{sweeper: sweepSvc, sanction: sanctionSvc}
}

// Sweep is the external scheduler's entry point.
func (h *AdminHandler) Sweep(c *gin.Context) {
	if !middleware.HasRole(c, "admin") {
		writeError(c, http.StatusForbidden, "admin role required")
		return
	}
	res, err := h.sweeper.RunSweep(c.Request.Context())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	errs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, e.Error())
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"cancelled_count": res.CancelledCount,
		"errors":          errs,
	})
}

func (h *AdminHandler) GetSuspension(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing user id")
		return
	}
	suspended, err := h.sanction.IsSuspended(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"user_id": id, "is_suspended": suspended})
}

func (h *AdminHandler) GetCancellationCount(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing user id")
		return
	}
	role := sanction.RolePassenger
	if c.Query("role") == string(sanction.RoleDriver) {
		role = sanction.RoleDriver
	}
	count, err := h.sanction.CountCancellations(c.Request.Context(), types.ID(id), role)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"user_id": id, "role": role, "count": count})
}
