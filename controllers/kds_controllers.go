package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-core/kds"
	"github.com/yeremiapane/restaurant-core/middlewares"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// KDSHandler -> GET /ws?token=
// Staff screens receive order, stock and register events. Incoming messages are ignored.
func KDSHandler(c *gin.Context) {
	role := c.GetString(middlewares.ContextRole)
	switch role {
	case "chef", "staff", "cashier", "manager", "admin":
	default:
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	kds.RegisterClient(ws, role)
	defer kds.UnregisterClient(ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
