package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
)

type VoidBannerController struct {
	Flow *services.KitchenFlow
}

func NewVoidBannerController(flow *services.KitchenFlow) *VoidBannerController {
	return &VoidBannerController{Flow: flow}
}

func (vc *VoidBannerController) GetBanners(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Void banners", vc.Flow.Banners().List(c.Param("order_id")))
}

// DismissBanners -> dismiss one menu item's banners, or all of the order's
func (vc *VoidBannerController) DismissBanners(c *gin.Context) {
	orderID := c.Param("order_id")
	if menuItemID := c.Param("menu_item_id"); menuItemID != "" {
		n := vc.Flow.DismissBanner(orderID, menuItemID)
		utils.RespondJSON(c, http.StatusOK, "Banners dismissed", gin.H{"dismissed": n})
		return
	}
	vc.Flow.DismissAllBanners(orderID)
	utils.RespondJSON(c, http.StatusOK, "Banners dismissed", nil)
}
