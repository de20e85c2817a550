package model

import (
	"github.com/shopspring/decimal"
)

// OrderConfirmedMessage 订单确认收货事件
// 买家确认收货后由主事务经发件箱投递，消费者异步完成：
// 卖家余额打款、资金流水记录、库存所有权转移、挂单标记已售出
type OrderConfirmedMessage struct {
	OrderID     int64           `json:"order_id"`
	OrderNo     string          `json:"order_no"`
	BuyerID     int64           `json:"buyer_id"`  // 买家ID（库存新归属人）
	SellerID    int64           `json:"seller_id"` // 卖家ID（收款方）
	Amount      decimal.Decimal `json:"amount"`    // 交易金额
	InventoryID int64           `json:"inventory_id"`
	ListingID   int64           `json:"listing_id"`
}
