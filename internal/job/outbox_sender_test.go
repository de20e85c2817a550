package job

import (
	"context"
	"errors"
	"testing"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{MaxRetryCount: 3},
	}
}

type sentRecord struct {
	topic string
	key   string
	value string
}

func seedPendingMessage(t *testing.T, db *gorm.DB, key string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      "buff.order.confirmed",
		Payload:    `{"order_no":"` + key + `"}`,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestOutboxSenderDeliversPendingMessages(t *testing.T) {
	db := setupTestDB(t)
	sender := NewOutboxSender(db, newTestConfig())

	var sent []sentRecord
	sender.SetSender(func(topic, key, value string) error {
		sent = append(sent, sentRecord{topic, key, value})
		return nil
	})

	seedPendingMessage(t, db, "N1")
	seedPendingMessage(t, db, "N2")

	sender.ProcessPendingMessages(context.Background())

	// 两条消息都投递成功并标记 SENT
	require.Len(t, sent, 2)
	assert.Equal(t, "buff.order.confirmed", sent[0].topic)
	assert.Equal(t, "N1", sent[0].key)

	var count int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).
		Where("status = ?", model.OutboxStatusSent).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// 再跑一轮不会重复投递
	sender.ProcessPendingMessages(context.Background())
	assert.Len(t, sent, 2)
}

func TestOutboxSenderRetryAndFail(t *testing.T) {
	db := setupTestDB(t)
	sender := NewOutboxSender(db, newTestConfig())

	attempts := 0
	sender.SetSender(func(topic, key, value string) error {
		attempts++
		return errors.New("broker不可用")
	})

	msg := seedPendingMessage(t, db, "N1")

	// 前两轮失败后仍是 PENDING，累计重试次数
	sender.ProcessPendingMessages(context.Background())
	sender.ProcessPendingMessages(context.Background())

	var pending model.OutboxMessage
	require.NoError(t, db.First(&pending, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusPending, pending.Status)
	assert.Equal(t, 2, pending.RetryCount)

	// 达到最大重试次数后标记 FAILED，不再投递
	sender.ProcessPendingMessages(context.Background())

	var failed model.OutboxMessage
	require.NoError(t, db.First(&failed, msg.ID).Error)
	assert.Equal(t, model.OutboxStatusFailed, failed.Status)

	sender.ProcessPendingMessages(context.Background())
	assert.Equal(t, 3, attempts)
}
