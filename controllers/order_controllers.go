package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
)

type OrderController struct {
	Flow *services.KitchenFlow
}

func NewOrderController(flow *services.KitchenFlow) *OrderController {
	return &OrderController{Flow: flow}
}

// GetTableView -> lines, pending deltas and banners of the table's order.
// ?refresh=1 refetches from the server first.
func (oc *OrderController) GetTableView(c *gin.Context) {
	tableID := c.Param("table_id")

	if c.Query("refresh") == "1" {
		if err := oc.Flow.RefreshTable(c.Request.Context(), tableID); err != nil {
			respondEngineError(c, err, oc.Flow.View(tableID))
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Table view", oc.Flow.View(tableID))
}

// Increment -> one more unit of a menu item
func (oc *OrderController) Increment(c *gin.Context) {
	tableID := c.Param("table_id")
	menuItemID := c.Param("menu_item_id")

	view, err := oc.Flow.Increment(c.Request.Context(), tableID, menuItemID)
	if err != nil {
		respondEngineError(c, err, view)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item added", view)
}

// Decrement -> reduce a line; answers free, rejected or negotiate
func (oc *OrderController) Decrement(c *gin.Context) {
	tableID := c.Param("table_id")
	menuItemID := c.Param("menu_item_id")

	var body struct {
		Delta *int `json:"delta"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}
	delta := -1
	if body.Delta != nil {
		delta = *body.Delta
	}

	decision, err := oc.Flow.RequestDecrement(c.Request.Context(), tableID, menuItemID, delta)
	if err != nil {
		respondEngineError(c, err, decision)
		return
	}

	msg := "Quantity reduced"
	switch decision.Kind {
	case services.DecisionNegotiate:
		msg = "Cancellation needs confirmation"
	case services.DecisionFree:
		if decision.ApplyQty == 0 {
			msg = "Nothing to reduce"
		}
	}
	utils.RespondJSON(c, http.StatusOK, msg, decision)
}

// ConfirmCancellation -> submit a confirmed partial cancel
func (oc *OrderController) ConfirmCancellation(c *gin.Context) {
	tableID := c.Param("table_id")

	var body struct {
		LineID     string `json:"line_id"`
		MenuItemID string `json:"menu_item_id" binding:"required"`
		Qty        int    `json:"qty"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := oc.Flow.ConfirmCancellation(c.Request.Context(), models.CancellationRequest{
		TableID:    tableID,
		LineID:     body.LineID,
		MenuItemID: body.MenuItemID,
		Qty:        body.Qty,
		Reason:     body.Reason,
	})
	if err != nil {
		respondEngineError(c, err, result)
		return
	}

	msg := "Cancellation confirmed"
	if result.ConfirmedQty < result.RequestedQty {
		msg = "Cancellation partially confirmed"
	}
	utils.RespondJSON(c, http.StatusOK, msg, result)
}

// GetVoidEvents -> today's kitchen voids for the table, from the server
func (oc *OrderController) GetVoidEvents(c *gin.Context) {
	rows, err := oc.Flow.VoidHistory(c.Request.Context(), c.Param("table_id"))
	if err != nil {
		respondEngineError(c, err, nil)
		return
	}
	if rows == nil {
		rows = []models.VoidHistoryRow{}
	}
	utils.RespondJSON(c, http.StatusOK, "Void events", rows)
}
