package service

import (
	"testing"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建内存 SQLite 测试库
// 限制单连接，模拟串行化的写入，保证条件更新的 RowsAffected 语义与 MySQL 一致
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Wallet{},
		&model.WalletLog{},
		&model.UserInventory{},
		&model.MarketListing{},
		&model.TradeOrder{},
		&model.OutboxMessage{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "buff-settlement",
			Topic: config.KafkaTopicConfig{
				OrderConfirmed:    "buff.order.confirmed",
				OrderConfirmedDLQ: "buff.order.confirmed.dlq",
			},
		},
		Business: config.BusinessConfig{MaxRetryCount: 3},
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// seedWallet 初始化用户钱包并预置余额
func seedWallet(t *testing.T, db *gorm.DB, userID int64, balance string) {
	t.Helper()
	wallet := &model.Wallet{
		UserID:  userID,
		Balance: mustDecimal(t, balance),
	}
	require.NoError(t, db.Create(wallet).Error)
}

// seedInventory 初始化一件在库饰品
func seedInventory(t *testing.T, db *gorm.DB, userID, templateID int64) *model.UserInventory {
	t.Helper()
	inventory := &model.UserInventory{
		UserID:     userID,
		TemplateID: templateID,
		WearValue:  mustDecimal(t, "0.1523"),
		Status:     model.InventoryStatusInStock,
	}
	require.NoError(t, db.Create(inventory).Error)
	return inventory
}

// seedOnSaleListing 初始化一条上架中的挂单及其库存
func seedOnSaleListing(t *testing.T, db *gorm.DB, sellerID int64, price string) (*model.MarketListing, *model.UserInventory) {
	t.Helper()
	inventory := seedInventory(t, db, sellerID, 1001)
	require.NoError(t, db.Model(inventory).Update("status", model.InventoryStatusOnSale).Error)

	listing := &model.MarketListing{
		SellerID:    sellerID,
		InventoryID: inventory.ID,
		TemplateID:  inventory.TemplateID,
		Price:       mustDecimal(t, price),
		Status:      model.ListingStatusOnSale,
	}
	require.NoError(t, db.Create(listing).Error)

	inventory.Status = model.InventoryStatusOnSale
	return listing, inventory
}
