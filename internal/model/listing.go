package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus 挂单状态
type ListingStatus string

const (
	ListingStatusOnSale    ListingStatus = "ON_SALE"   // 上架中
	ListingStatusPurchased ListingStatus = "PURCHASED" // 已被购买（已生成订单）
	ListingStatusOffSale   ListingStatus = "OFF_SALE"  // 已下架
	ListingStatusSold      ListingStatus = "SOLD"      // 已售出
)

// MarketListing 市场挂单表
// 状态变更全部走版本号 CAS 更新，不加任何行锁
type MarketListing struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID    int64           `gorm:"index;not null" json:"seller_id"`               // 卖家ID
	InventoryID int64           `gorm:"index;not null" json:"inventory_id"`            // 关联库存ID
	TemplateID  int64           `gorm:"index;not null" json:"template_id"`             // 冗余模板ID，方便查询
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`      // 出售价格
	Status      ListingStatus   `gorm:"type:varchar(20);index;not null" json:"status"` // 挂单状态
	Version     int             `gorm:"not null;default:0" json:"version"`             // 乐观锁版本号
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MarketListing) TableName() string {
	return "market_listing"
}
