// README: Booking handlers for the lifecycle operations.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/types"
)

type BookingHandler struct {
	booking *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{booking: svc}
}

type createBookingReq struct {
	TripID      string `json:"trip_id"`
	PassengerID string `json:"passenger_id"`
	Seats       int    `json:"seats"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.TripID) || req.PassengerID == "" {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	if req.PassengerID != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot book for another user")
		return
	}
	b, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		TripID:      types.ID(req.TripID),
		PassengerID: types.ID(req.PassengerID),
		Seats:       req.Seats,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, bookingResponse(b))
}

func (h *BookingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	b, err := h.booking.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingResponse(b))
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	b, ok := h.driverTransition(c)
	if !ok {
		return
	}
	res, err := h.booking.Confirm(c.Request.Context(), booking.ConfirmCommand{BookingID: b})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingResponse(res))
}

func (h *BookingHandler) Start(c *gin.Context) {
	b, ok := h.driverTransition(c)
	if !ok {
		return
	}
	res, err := h.booking.Start(c.Request.Context(), booking.StartCommand{BookingID: b})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingResponse(res))
}

func (h *BookingHandler) Complete(c *gin.Context) {
	b, ok := h.driverTransition(c)
	if !ok {
		return
	}
	res, err := h.booking.CompleteBooking(c.Request.Context(), booking.CompleteCommand{BookingID: b})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingResponse(res))
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	var req cancelBookingReq
	_ = c.ShouldBindJSON(&req)

	b, err := h.booking.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return
	}

	// Only the parties to the booking may cancel it; the cancellation event
	// is recorded against the actor, so identity matters here.
	uid := middleware.UID(c)
	var actorType string
	switch {
	case uid == string(b.PassengerID):
		actorType = "passenger"
	case middleware.HasRole(c, "driver") && uid == string(b.DriverID):
		actorType = "driver"
	default:
		writeError(c, http.StatusForbidden, "not a party to this booking")
		return
	}
	res, err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID:   types.ID(id),
		ActorType:   actorType,
		Reason:      req.Reason,
		Attribution: sanction.AttributionUser,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingResponse(res))
}

func (h *BookingHandler) driverTransition(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return "", false
	}
	if !middleware.HasRole(c, "driver") {
		writeError(c, http.StatusForbidden, "driver role required")
		return "", false
	}
	b, err := h.booking.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeEngineError(c, err)
		return "", false
	}
	if middleware.UID(c) != string(b.DriverID) {
		writeError(c, http.StatusForbidden, "not the booking's driver")
		return "", false
	}
	return b.ID, true
}

func bookingResponse(b *booking.Booking) map[string]any {
	return map[string]any{
		"booking_id":   b.ID,
		"trip_id":      b.TripID,
		"passenger_id": b.PassengerID,
		"driver_id":    b.DriverID,
		"seats":        b.Seats,
		"status":       b.Status,
		"created_at":   b.CreatedAt,
		"updated_at":   b.UpdatedAt,
	}
}
