package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "150.50")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPendingPay, order.Status)
	assert.Equal(t, int64(2), order.BuyerID)
	assert.Equal(t, int64(1), order.SellerID)
	assert.NotEmpty(t, order.OrderNo)
	// 成交金额快照挂单价格
	assert.True(t, order.TotalAmount.Equal(mustDecimal(t, "150.50")))

	// 挂单锁定为已被购买
	var updated model.MarketListing
	require.NoError(t, db.First(&updated, listing.ID).Error)
	assert.Equal(t, model.ListingStatusPurchased, updated.Status)
	assert.Equal(t, listing.Version+1, updated.Version)

	// 已被购买的挂单不能再次下单
	_, err = svc.CreateOrder(ctx, 3, listing.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeListingSoldOut, ""))
}

func TestCreateOrderSelfPurchase(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	listing, _ := seedOnSaleListing(t, db, 1, "100.00")

	_, err := svc.CreateOrder(context.Background(), 1, listing.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))
}

// 并发抢购同一挂单，只能有一个买家成功
func TestCreateOrderConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "100.00")

	const buyers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		buyerID := int64(10 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, buyerID, listing.ID)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var success, soldOut int
	for err := range errCh {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, errs.New(errs.CodeListingSoldOut, ""))
		soldOut++
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, buyers-1, soldOut)

	// 只生成了一笔订单
	var count int64
	require.NoError(t, db.Model(&model.TradeOrder{}).Where("listing_id = ?", listing.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPayOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	walletSvc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "150.50")
	seedWallet(t, db, 2, "200.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)

	require.NoError(t, svc.PayOrder(ctx, 2, order.ID))

	// 订单流转到待发货并记录支付时间
	paid, err := svc.GetOrderDetail(ctx, 2, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaidWaitDelivery, paid.Status)
	assert.NotNil(t, paid.PayTime)

	// 买家余额扣减，流水为负数且关联订单号
	balance, err := walletSvc.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "49.50")))

	logs, _, err := walletSvc.GetWalletLogs(ctx, 2, model.WalletLogTypePurchase, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Amount.Equal(mustDecimal(t, "-150.50")))
	assert.Equal(t, order.OrderNo, logs[0].OrderNo)

	// 已支付的订单不能重复支付
	err = svc.PayOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeOrderStatusError, ""))
}

func TestPayOrderInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	walletSvc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "150.50")
	seedWallet(t, db, 2, "100.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)

	err = svc.PayOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeBalanceNotEnough, ""))

	// 扣款失败时订单和余额都不能变化
	pending, err := svc.GetOrderDetail(ctx, 2, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPendingPay, pending.Status)

	balance, err := walletSvc.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "100.00")))
}

func TestPayOrderOnlyBuyer(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "100.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)

	err = svc.PayOrder(ctx, 1, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))
}

func TestDeliverAndConfirmOrder(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig()
	svc := NewOrderService(db, newTestRedis(t), cfg)
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "150.50")
	seedWallet(t, db, 2, "200.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)
	require.NoError(t, svc.PayOrder(ctx, 2, order.ID))

	// 买家不能发货
	err = svc.DeliverOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))

	require.NoError(t, svc.DeliverOrder(ctx, 1, order.ID))

	// 卖家不能确认收货
	err = svc.ConfirmOrder(ctx, 1, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))

	require.NoError(t, svc.ConfirmOrder(ctx, 2, order.ID))

	finished, err := svc.GetOrderDetail(ctx, 2, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusSuccess, finished.Status)
	assert.NotNil(t, finished.DeliverTime)
	assert.NotNil(t, finished.FinishTime)

	// 结算事件与订单终态同事务写入发件箱
	var outbox model.OutboxMessage
	require.NoError(t, db.Where("message_key = ?", order.OrderNo).First(&outbox).Error)
	assert.Equal(t, cfg.Kafka.Topic.OrderConfirmed, outbox.Topic)
	assert.Equal(t, model.OutboxStatusPending, outbox.Status)

	var msg model.OrderConfirmedMessage
	require.NoError(t, json.Unmarshal([]byte(outbox.Payload), &msg))
	assert.Equal(t, order.ID, msg.OrderID)
	assert.Equal(t, int64(2), msg.BuyerID)
	assert.Equal(t, int64(1), msg.SellerID)
	assert.True(t, msg.Amount.Equal(mustDecimal(t, "150.50")))

	// 终态订单不能再次确认
	err = svc.ConfirmOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeOrderStatusError, ""))
}

func TestCancelOrderThenRebuy(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "100.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)

	// 无关用户不能取消
	err = svc.CancelOrder(ctx, 3, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))

	// 买家取消后挂单恢复上架
	require.NoError(t, svc.CancelOrder(ctx, 2, order.ID))

	cancelled, err := svc.GetOrderDetail(ctx, 2, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)

	var restored model.MarketListing
	require.NoError(t, db.First(&restored, listing.ID).Error)
	assert.Equal(t, model.ListingStatusOnSale, restored.Status)

	// 其他买家可以再次下单
	order2, err := svc.CreateOrder(ctx, 3, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), order2.BuyerID)

	// 已取消的订单不能再取消
	err = svc.CancelOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeOrderStatusError, ""))
}

func TestCancelOrderBySeller(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()
	listing, _ := seedOnSaleListing(t, db, 1, "100.00")

	order, err := svc.CreateOrder(ctx, 2, listing.ID)
	require.NoError(t, err)

	// 卖家也可以取消待支付订单
	require.NoError(t, svc.CancelOrder(ctx, 1, order.ID))

	var restored model.MarketListing
	require.NoError(t, db.First(&restored, listing.ID).Error)
	assert.Equal(t, model.ListingStatusOnSale, restored.Status)
}

func TestListOrders(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db, newTestRedis(t), newTestConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		listing, _ := seedOnSaleListing(t, db, 1, "10.00")
		_, err := svc.CreateOrder(ctx, 2, listing.ID)
		require.NoError(t, err)
	}

	buyOrders, total, err := svc.GetMyBuyOrders(ctx, 2, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, buyOrders, 3)

	sellOrders, total, err := svc.GetMySellOrders(ctx, 1, model.OrderStatusPendingPay, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, sellOrders, 2)

	// 订单详情只对买卖双方可见
	_, err = svc.GetOrderDetail(ctx, 99, buyOrders[0].ID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))
}
