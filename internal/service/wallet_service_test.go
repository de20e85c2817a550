package service

import (
	"context"
	"sync"
	"testing"

	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRecharge(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	// 钱包不存在时充值会自动初始化
	balance, err := svc.Recharge(ctx, 1, mustDecimal(t, "150.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "150.50")))

	// 再充一笔
	balance, err = svc.Recharge(ctx, 1, mustDecimal(t, "49.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "200")))

	// 每笔充值都有对应流水
	logs, total, err := svc.GetWalletLogs(ctx, 1, model.WalletLogTypeRecharge, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, model.WalletLogTypeRecharge, l.Type)
		assert.True(t, l.Amount.IsPositive())
	}
}

func TestWalletWithdraw(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	seedWallet(t, db, 1, "100.00")

	balance, err := svc.Withdraw(ctx, 1, mustDecimal(t, "30.00"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "70.00")))

	// 提现流水金额记为负数
	logs, _, err := svc.GetWalletLogs(ctx, 1, model.WalletLogTypeWithdraw, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Amount.Equal(mustDecimal(t, "-30.00")))
	assert.True(t, logs[0].BalanceAfter.Equal(mustDecimal(t, "70.00")))
}

func TestWalletWithdrawInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	seedWallet(t, db, 1, "100.00")

	_, err := svc.Withdraw(ctx, 1, mustDecimal(t, "100.01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.New(errs.CodeBalanceNotEnough, ""))

	// 余额和流水都不应有变化
	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "100.00")))

	_, total, err := svc.GetWalletLogs(ctx, 1, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestWalletInvalidAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	seedWallet(t, db, 1, "100.00")

	_, err := svc.Recharge(ctx, 1, decimal.Zero)
	assert.ErrorIs(t, err, errs.New(errs.CodeParamError, ""))

	_, err = svc.Withdraw(ctx, 1, mustDecimal(t, "-5"))
	assert.ErrorIs(t, err, errs.New(errs.CodeParamError, ""))
}

func TestWalletDebitUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())

	_, err := svc.Debit(context.Background(), 999, mustDecimal(t, "10"), model.WalletLogTypePurchase, "N1", "购买商品")
	assert.ErrorIs(t, err, errs.New(errs.CodeUserNotFound, ""))
}

// 按创建顺序累加全部流水金额必须恒等于当前余额
func TestWalletBalanceEqualsSumOfLogs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.Recharge(ctx, 1, mustDecimal(t, "200.00"))
	require.NoError(t, err)
	_, err = svc.Debit(ctx, 1, mustDecimal(t, "150.50"), model.WalletLogTypePurchase, "N1", "购买商品")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, 1, mustDecimal(t, "80.00"), model.WalletLogTypeSaleIncome, "N2", "出售商品收入")
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, 1, mustDecimal(t, "29.50"))
	require.NoError(t, err)

	var logs []*model.WalletLog
	require.NoError(t, db.Where("user_id = ?", 1).Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 4)

	sum := decimal.Zero
	for _, l := range logs {
		sum = sum.Add(l.Amount)
		// 每条流水记录的变动后余额与累加值一致
		assert.True(t, l.BalanceAfter.Equal(sum), "log %d balance_after mismatch", l.ID)
	}

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(sum))
	assert.True(t, balance.Equal(mustDecimal(t, "100.00")))
}

func TestWalletConcurrentCredit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()
	seedWallet(t, db, 1, "0")

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Credit(ctx, 1, mustDecimal(t, "10.00"), model.WalletLogTypeSaleIncome, "", "并发入账")
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "80.00")))

	_, total, err := svc.GetWalletLogs(ctx, 1, "", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), total)
}
