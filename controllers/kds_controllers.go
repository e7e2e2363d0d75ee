package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/waiter-pos/kds"
	"github.com/yeremiapane/waiter-pos/middlewares"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
)

var upgrader = websocket.Upgrader{
	// the UI is served from the same device
	CheckOrigin: func(r *http.Request) bool { return true },
}

type KDSController struct {
	Hub  *kds.Hub
	Flow *services.KitchenFlow
}

func NewKDSController(hub *kds.Hub, flow *services.KitchenFlow) *KDSController {
	return &KDSController{Hub: hub, Flow: flow}
}

// KDSHandler -> UI websocket. ?table_id= gets the current view right away.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	who := c.GetString(middlewares.StaffKey)
	if who == "" {
		who = c.ClientIP()
	}

	if tableID := c.Query("table_id"); tableID != "" {
		if err := ws.WriteJSON(kds.Message{Event: services.UIEventOrderView, Data: kc.Flow.View(tableID)}); err != nil {
			ws.Close()
			return
		}
	}
	kc.Hub.RegisterClient(ws, who)

	// clients only listen; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	kc.Hub.UnregisterClient(ws)
}
