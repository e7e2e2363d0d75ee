package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/middlewares"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
)

type NotificationController struct {
	Flow *services.KitchenFlow
}

func NewNotificationController(flow *services.KitchenFlow) *NotificationController {
	return &NotificationController{Flow: flow}
}

// Notify -> send the table's pending deltas to the kitchen, recorded under
// the caller's role
func (nc *NotificationController) Notify(c *gin.Context) {
	tableID := c.Param("table_id")

	var body struct {
		Note     string `json:"note"`
		Priority bool   `json:"priority"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	actor := models.Actor(c.GetString(middlewares.ActorKey))
	res, err := nc.Flow.DispatchAs(c.Request.Context(), tableID, body.Note, body.Priority, actor)
	if err != nil {
		respondEngineError(c, err, res)
		return
	}
	if !res.Sent {
		utils.RespondJSON(c, http.StatusOK, "Nothing to notify", res)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Kitchen notified", res)
}

// GetHistory -> batches and voids journaled on this device for an order
func (nc *NotificationController) GetHistory(c *gin.Context) {
	orderID := c.Param("order_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	history := gin.H{
		"batches": []models.NotificationBatch{},
		"voids":   []models.VoidEvent{},
	}
	store := nc.Flow.History()
	if store == nil || store.DB == nil {
		utils.RespondJSON(c, http.StatusOK, "History disabled", history)
		return
	}

	batches, err := store.Batches(orderID, limit)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	voids, err := store.Voids(orderID, limit)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	history["batches"] = batches
	history["voids"] = voids
	utils.RespondJSON(c, http.StatusOK, "Order history", history)
}
