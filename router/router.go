package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/controllers"
	"github.com/yeremiapane/waiter-pos/kds"
	"github.com/yeremiapane/waiter-pos/middlewares"
	"github.com/yeremiapane/waiter-pos/services"
)

type Options struct {
	CORSOrigin     string
	DeviceToken    string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(flow *services.KitchenFlow, hub *kds.Hub, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigin))
	r.Use(middlewares.StaffMiddleware(opts.DeviceToken))
	r.Use(middlewares.LoggerMiddleware())

	orderCtrl := controllers.NewOrderController(flow)
	notificationCtrl := controllers.NewNotificationController(flow)
	bannerCtrl := controllers.NewVoidBannerController(flow)
	kdsCtrl := controllers.NewKDSController(hub, flow)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// UI push
	r.GET("/ws", kdsCtrl.KDSHandler)

	api := r.Group("/api")
	if opts.RateLimitRPS > 0 {
		api.Use(middlewares.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).RateLimit())
	}

	// TABLES
	api.GET("/tables/:table_id/view", orderCtrl.GetTableView)
	api.POST("/tables/:table_id/items/:menu_item_id/increment", orderCtrl.Increment)
	api.POST("/tables/:table_id/items/:menu_item_id/decrement", orderCtrl.Decrement)
	api.POST("/tables/:table_id/cancellations", orderCtrl.ConfirmCancellation)
	api.POST("/tables/:table_id/notify", notificationCtrl.Notify)
	api.GET("/tables/:table_id/void-events", orderCtrl.GetVoidEvents)

	// ORDERS
	api.GET("/orders/:order_id/void-banners", bannerCtrl.GetBanners)
	api.DELETE("/orders/:order_id/void-banners", bannerCtrl.DismissBanners)
	api.DELETE("/orders/:order_id/void-banners/:menu_item_id", bannerCtrl.DismissBanners)
	api.GET("/orders/:order_id/history", notificationCtrl.GetHistory)

	return r
}
