package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPendingPay       OrderStatus = "PENDING_PAY"        // 待支付
	OrderStatusPaidWaitDelivery OrderStatus = "PAID_WAIT_DELIVERY" // 待发货
	OrderStatusDelivered        OrderStatus = "DELIVERED"          // 已发货
	OrderStatusSuccess          OrderStatus = "SUCCESS"            // 交易成功
	OrderStatusCancelled        OrderStatus = "CANCELLED"          // 已取消
)

// ValidOrderTransitions 订单状态机
// 只有两条合法路径：
//
//	PENDING_PAY -> PAID_WAIT_DELIVERY -> DELIVERED -> SUCCESS
//	PENDING_PAY -> CANCELLED
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPay:       {OrderStatusPaidWaitDelivery, OrderStatusCancelled},
	OrderStatusPaidWaitDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:        {OrderStatusSuccess},
}

// CanTransitionTo 校验订单状态流转是否合法
func CanTransitionTo(currentStatus, targetStatus OrderStatus) bool {
	allowedStatuses, exists := ValidOrderTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// TradeOrder 交易订单表
// totalAmount 在创建时快照挂单价格，此后不再随挂单变动
type TradeOrder struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"` // 订单号（全局唯一）
	BuyerID     int64           `gorm:"index;not null" json:"buyer_id"`                        // 买家ID
	SellerID    int64           `gorm:"index;not null" json:"seller_id"`                       // 卖家ID
	ListingID   int64           `gorm:"index;not null" json:"listing_id"`                      // 关联挂单ID
	InventoryID int64           `gorm:"not null" json:"inventory_id"`                          // 关联库存ID
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`       // 成交金额（创建时快照）
	Status      OrderStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	PayTime     *time.Time      `json:"pay_time"`     // 支付时间
	DeliverTime *time.Time      `json:"deliver_time"` // 发货时间
	FinishTime  *time.Time      `json:"finish_time"`  // 完成时间
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TradeOrder) TableName() string {
	return "trade_order"
}
