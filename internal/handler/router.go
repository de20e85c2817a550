package handler

import (
	"github.com/J0kerL/Buff-like/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组，全部接口需要登录态
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware())
	{
		// 市场挂单相关
		listing := api.Group("/listing")
		{
			listing.POST("/create", h.CreateListing)
			listing.GET("/market", h.GetMarketListings)
			listing.GET("/my", h.GetMyListings)
			listing.GET("/:id", h.GetListingDetail)
			listing.POST("/:id/cancel", h.CancelListing)
		}

		// 订单相关
		order := api.Group("/order")
		{
			order.POST("/create", h.CreateOrder)
			order.GET("/buy", h.GetMyBuyOrders)
			order.GET("/sell", h.GetMySellOrders)
			order.GET("/:id", h.GetOrderDetail)
			order.POST("/:id/pay", h.PayOrder)
			order.POST("/:id/deliver", h.DeliverOrder)
			order.POST("/:id/confirm", h.ConfirmOrder)
			order.POST("/:id/cancel", h.CancelOrder)
		}

		// 钱包相关
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/recharge", h.Recharge)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.GET("/logs", h.GetWalletLogs)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
