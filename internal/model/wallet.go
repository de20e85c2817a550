package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 用户钱包表
// 记录用户余额，所有资金变动的唯一入口
type Wallet struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"balance"` // 可用余额，任何时刻 >= 0
	Version   int             `gorm:"not null;default:0" json:"version"`          // 乐观锁版本号
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

// WalletLogType 资金流水类型
type WalletLogType string

const (
	WalletLogTypeRecharge   WalletLogType = "RECHARGE"    // 充值
	WalletLogTypeWithdraw   WalletLogType = "WITHDRAW"    // 提现
	WalletLogTypePurchase   WalletLogType = "PURCHASE"    // 购买支出
	WalletLogTypeSaleIncome WalletLogType = "SALE_INCOME" // 出售收入
)

// WalletLog 资金流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 记录变动后余额 —— 按创建顺序累加所有流水金额必须等于当前余额
// 3. 每条流水与余额变更在同一事务内落库
type WalletLog struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64           `gorm:"index;not null" json:"user_id"`
	Type         WalletLogType   `gorm:"type:varchar(20);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`        // 变动金额（正数入账，负数出账）
	BalanceAfter decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"balance_after"` // 变动后余额
	OrderNo      string          `gorm:"type:varchar(64);index" json:"order_no"`           // 关联订单号（充值/提现为空）
	Remark       string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletLog) TableName() string {
	return "wallet_log"
}
