package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/utils"
)

// Context keys set by StaffMiddleware.
const (
	StaffKey = "staff"
	ActorKey = "actor"
)

// StaffMiddleware attaches the staff identity of the request. The actor is the
// source recorded on kitchen notifications sent by the request. The POS server
// authorizes every call itself, so a missing or unreadable token only falls
// back to the device token.
func StaffMiddleware(deviceToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			token = deviceToken
		}

		if token == "" {
			c.Next()
			return
		}

		if name := utils.StaffName(token); name != "" {
			c.Set(StaffKey, name)
		}
		c.Set(ActorKey, utils.ActorRole(token))
		c.Next()
	}
}
