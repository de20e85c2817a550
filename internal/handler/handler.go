package handler

import (
	"strconv"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/internal/service"
	"github.com/J0kerL/Buff-like/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	listingService *service.ListingService
	orderService   *service.OrderService
	walletService  *service.WalletService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		listingService: service.NewListingService(db, cfg),
		orderService:   service.NewOrderService(db, rdb, cfg),
		walletService:  service.NewWalletService(db, cfg),
	}
}

func parsePathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}

// ============================================================
// 市场挂单相关接口
// ============================================================

// CreateListingRequest 上架请求
type CreateListingRequest struct {
	InventoryID int64           `json:"inventory_id" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"required"`
}

// CreateListing 上架商品
// POST /api/v1/listing/create
func (h *Handler) CreateListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	listingID, err := h.listingService.CreateListing(c.Request.Context(), getUserID(c), req.InventoryID, req.Price)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"listing_id": listingID,
	})
}

// CancelListing 下架商品
// POST /api/v1/listing/:id/cancel
func (h *Handler) CancelListing(c *gin.Context) {
	listingID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	if err := h.listingService.CancelListing(c.Request.Context(), getUserID(c), listingID); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "下架成功",
	})
}

// GetListingDetail 查询挂单详情
// GET /api/v1/listing/:id
func (h *Handler) GetListingDetail(c *gin.Context) {
	listingID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	listing, err := h.listingService.GetListingDetail(c.Request.Context(), listingID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, listing)
}

// GetMarketListings 分页查询市场在售商品
// GET /api/v1/listing/market?page=1&page_size=10
func (h *Handler) GetMarketListings(c *gin.Context) {
	page, pageSize := parsePage(c)

	listings, total, err := h.listingService.GetMarketListings(c.Request.Context(), page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, response.PageData{
		List:     listings,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetMyListings 分页查询我的挂单
// GET /api/v1/listing/my?status=ON_SALE&page=1&page_size=10
func (h *Handler) GetMyListings(c *gin.Context) {
	page, pageSize := parsePage(c)
	status := model.ListingStatus(c.Query("status"))

	listings, total, err := h.listingService.GetMyListings(c.Request.Context(), getUserID(c), status, page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, response.PageData{
		List:     listings,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	ListingID int64 `json:"listing_id" binding:"required"`
}

// CreateOrder 创建订单（抢购挂单）
// POST /api/v1/order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), getUserID(c), req.ListingID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_id":     order.ID,
		"order_no":     order.OrderNo,
		"status":       order.Status,
		"total_amount": order.TotalAmount,
	})
}

// PayOrder 支付订单
// POST /api/v1/order/:id/pay
func (h *Handler) PayOrder(c *gin.Context) {
	orderID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.PayOrder(c.Request.Context(), getUserID(c), orderID); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "支付成功",
	})
}

// DeliverOrder 卖家发货
// POST /api/v1/order/:id/deliver
func (h *Handler) DeliverOrder(c *gin.Context) {
	orderID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.DeliverOrder(c.Request.Context(), getUserID(c), orderID); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "发货成功",
	})
}

// ConfirmOrder 买家确认收货
// POST /api/v1/order/:id/confirm
func (h *Handler) ConfirmOrder(c *gin.Context) {
	orderID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.ConfirmOrder(c.Request.Context(), getUserID(c), orderID); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "确认收货成功",
	})
}

// CancelOrder 取消订单
// POST /api/v1/order/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), getUserID(c), orderID); err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "订单已取消",
	})
}

// GetOrderDetail 查询订单详情
// GET /api/v1/order/:id
func (h *Handler) GetOrderDetail(c *gin.Context) {
	orderID, ok := parsePathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrderDetail(c.Request.Context(), getUserID(c), orderID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, order)
}

// GetMyBuyOrders 分页查询我的买入订单
// GET /api/v1/order/buy?status=PENDING_PAY&page=1&page_size=10
func (h *Handler) GetMyBuyOrders(c *gin.Context) {
	page, pageSize := parsePage(c)
	status := model.OrderStatus(c.Query("status"))

	orders, total, err := h.orderService.GetMyBuyOrders(c.Request.Context(), getUserID(c), status, page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, response.PageData{
		List:     orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetMySellOrders 分页查询我的卖出订单
// GET /api/v1/order/sell?status=PAID_WAIT_DELIVERY&page=1&page_size=10
func (h *Handler) GetMySellOrders(c *gin.Context) {
	page, pageSize := parsePage(c)
	status := model.OrderStatus(c.Query("status"))

	orders, total, err := h.orderService.GetMySellOrders(c.Request.Context(), getUserID(c), status, page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, response.PageData{
		List:     orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询钱包余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.walletService.GetBalance(c.Request.Context(), getUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": getUserID(c),
		"balance": balance,
	})
}

// AmountRequest 充值/提现请求
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Recharge 充值（简化版，实际应该走支付渠道回调）
// POST /api/v1/wallet/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	balance, err := h.walletService.Recharge(c.Request.Context(), getUserID(c), req.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"balance": balance,
	})
}

// Withdraw 提现（简化版，实际应该走打款渠道）
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	balance, err := h.walletService.Withdraw(c.Request.Context(), getUserID(c), req.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"balance": balance,
	})
}

// GetWalletLogs 分页查询钱包流水
// GET /api/v1/wallet/logs?type=RECHARGE&page=1&page_size=10
func (h *Handler) GetWalletLogs(c *gin.Context) {
	page, pageSize := parsePage(c)
	logType := model.WalletLogType(c.Query("type"))

	logs, total, err := h.walletService.GetWalletLogs(c.Request.Context(), getUserID(c), logType, page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, response.PageData{
		List:     logs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}
