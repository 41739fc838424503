// README: Trip handlers for create/get and driver terminal actions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/trip"
	"ridepool/internal/types"
)

type TripHandler struct {
	trip    *trip.Service
	booking *booking.Service
}

func NewTripHandler(tripSvc *trip.Service, bookingSvc *booking.Service) *TripHandler {
	return &TripHandler{trip: tripSvc, booking: bookingSvc}
}

type createTripReq struct {
	DriverID    string `json:"driver_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	TotalSeats  int    `json:"total_seats"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !middleware.HasRole(c, "driver") {
		writeError(c, http.StatusForbidden, "driver role required")
		return
	}
	if req.DriverID != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot create a trip for another driver")
		return
	}
	id, err := h.trip.Create(c.Request.Context(), trip.CreateCommand{
		DriverID:    types.ID(req.DriverID),
		Origin:      req.Origin,
		Destination: req.Destination,
		TotalSeats:  req.TotalSeats,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip_id": id, "status": trip.StatusScheduled})
}

func (h *TripHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	t, err := h.trip.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripResponse(t))
}

// Complete closes the whole trip: confirmed/enroute bookings complete,
// leftover pendings are cancelled with their seats released.
func (h *TripHandler) Complete(c *gin.Context) {
	id, ok := h.driverAction(c)
	if !ok {
		return
	}
	t, err := h.booking.CompleteTrip(c.Request.Context(), booking.CompleteTripCommand{TripID: id})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripResponse(t))
}

type cancelTripReq struct {
	Reason string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id, ok := h.driverAction(c)
	if !ok {
		return
	}
	var req cancelTripReq
	_ = c.ShouldBindJSON(&req)
	t, err := h.booking.CancelTrip(c.Request.Context(), booking.CancelTripCommand{TripID: id, Reason: req.Reason})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripResponse(t))
}

// Recalculate rebuilds the seat count from live bookings (drift repair).
func (h *TripHandler) Recalculate(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	if !middleware.HasRole(c, "admin") {
		writeError(c, http.StatusForbidden, "admin role required")
		return
	}
	available, err := h.trip.Recalculate(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"trip_id": id, "available_seats": available})
}

func (h *TripHandler) driverAction(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return "", false
	}
	if !middleware.HasRole(c, "driver") {
		writeError(c, http.StatusForbidden, "driver role required")
		return "", false
	}
	t, err := h.trip.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return "", false
	}
	if middleware.UID(c) != string(t.DriverID) {
		writeError(c, http.StatusForbidden, "not the trip's driver")
		return "", false
	}
	return t.ID, true
}

func tripResponse(t *trip.Trip) map[string]any {
	return map[string]any{
		"trip_id":         t.ID,
		"driver_id":       t.DriverID,
		"origin":          t.Origin,
		"destination":     t.Destination,
		"total_seats":     t.TotalSeats,
		"available_seats": t.AvailableSeats,
		"status":          t.Status,
		"travel_estimate": t.TravelEstimate,
	}
}
