// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ridepool/internal/http/handlers"
	"ridepool/internal/http/middleware"
	"ridepool/internal/infra"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/modules/sweeper"
	"ridepool/internal/modules/trip"
)

type RouterDeps struct {
	Trip     *trip.Service
	Booking  *booking.Service
	Sanction *sanction.Service
	Sweeper  *sweeper.Service
	Verifier infra.TokenVerifier
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	tripHandler := handlers.NewTripHandler(deps.Trip, deps.Booking)
	bookingHandler := handlers.NewBookingHandler(deps.Booking)
	adminHandler := handlers.NewAdminHandler(deps.Sweeper, deps.Sanction)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier))

	api.POST("/trips", tripHandler.Create)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/complete", tripHandler.Complete)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)
	api.POST("/trips/:id/recalculate", tripHandler.Recalculate)

	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	api.POST("/bookings/:id/start", bookingHandler.Start)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.POST("/bookings/:id/complete", bookingHandler.Complete)

	api.POST("/admin/sweep", adminHandler.Sweep)
	api.GET("/users/:id/suspension", adminHandler.GetSuspension)
	api.GET("/users/:id/cancellations", adminHandler.GetCancellationCount)

	return r
}
