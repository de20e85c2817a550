package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryStatus 库存状态
type InventoryStatus string

const (
	InventoryStatusInStock InventoryStatus = "IN_STOCK" // 在库
	InventoryStatusOnSale  InventoryStatus = "ON_SALE"  // 出售中
	InventoryStatusLocked  InventoryStatus = "LOCKED"   // 交易锁定
)

// UserInventory 用户库存表
// 库存的归属与状态由本核心在上架、下架、结算时变更
type UserInventory struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64           `gorm:"index;not null" json:"user_id"`           // 归属用户ID
	TemplateID   int64           `gorm:"index;not null" json:"template_id"`       // 关联模板ID
	WearValue    decimal.Decimal `gorm:"type:decimal(6,4)" json:"wear_value"`     // 磨损度 (0.00-1.00)
	PatternIndex int             `gorm:"not null;default:0" json:"pattern_index"` // 图案模板编号
	Status       InventoryStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserInventory) TableName() string {
	return "user_inventory"
}
