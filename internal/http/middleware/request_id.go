// README: Request-id middleware; echoes an inbound id or mints one.
package middleware

import (
	"github.com/gin-gonic/gin"

	"ridepool/internal/types"
)

const HeaderRequestID = "X-Request-Id"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = string(types.NewID())
		}
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}
