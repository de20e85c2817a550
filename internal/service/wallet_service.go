package service

import (
	"context"
	"errors"
	"log"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/internal/repository"
	"github.com/J0kerL/Buff-like/pkg/errs"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包服务
//
// 余额变更的唯一入口。任何一次余额变动都与一条资金流水在同一事务内落库，
// 保证按创建顺序累加某用户的全部流水金额恒等于其当前余额。
// 余额写入使用版本号 CAS，冲突时在有限次数内重试，超过次数返回并发错误。
type WalletService struct {
	db         *gorm.DB
	cfg        *config.Config
	walletRepo *repository.WalletRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:         db,
		cfg:        cfg,
		walletRepo: repository.NewWalletRepository(db),
	}
}

func (s *WalletService) maxRetry() int {
	if s.cfg != nil && s.cfg.Business.MaxRetryCount > 0 {
		return s.cfg.Business.MaxRetryCount
	}
	return 3
}

// GetBalance 查询余额，钱包不存在时以零余额初始化
func (s *WalletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// CreditTx 单次入账尝试：读余额、CAS 写入、同事务追加流水
// 版本冲突返回 repository.ErrOptimisticLock，由调用方决定重试
func (s *WalletService) CreditTx(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, logType model.WalletLogType, orderNo, remark string) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return decimal.Zero, errs.New(errs.CodeUserNotFound, "用户钱包不存在")
		}
		return decimal.Zero, err
	}

	newBalance := wallet.Balance.Add(amount)
	ok, err := s.walletRepo.CASUpdateBalance(ctx, tx, userID, newBalance, wallet.Version)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, repository.ErrOptimisticLock
	}

	walletLog := &model.WalletLog{
		UserID:       userID,
		Type:         logType,
		Amount:       amount,
		BalanceAfter: newBalance,
		OrderNo:      orderNo,
		Remark:       remark,
	}
	if err := s.walletRepo.CreateLog(ctx, tx, walletLog); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// DebitTx 单次扣款尝试，扣款前校验余额充足，流水金额记为负数
func (s *WalletService) DebitTx(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, logType model.WalletLogType, orderNo, remark string) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return decimal.Zero, errs.New(errs.CodeUserNotFound, "用户钱包不存在")
		}
		return decimal.Zero, err
	}

	if wallet.Balance.LessThan(amount) {
		return decimal.Zero, errs.New(errs.CodeBalanceNotEnough, "余额不足")
	}

	newBalance := wallet.Balance.Sub(amount)
	ok, err := s.walletRepo.CASUpdateBalance(ctx, tx, userID, newBalance, wallet.Version)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, repository.ErrOptimisticLock
	}

	walletLog := &model.WalletLog{
		UserID:       userID,
		Type:         logType,
		Amount:       amount.Neg(),
		BalanceAfter: newBalance,
		OrderNo:      orderNo,
		Remark:       remark,
	}
	if err := s.walletRepo.CreateLog(ctx, tx, walletLog); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// Credit 入账（带乐观锁重试），每次尝试都是独立事务
func (s *WalletService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, logType model.WalletLogType, orderNo, remark string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.New(errs.CodeParamError, "金额必须大于0")
	}

	maxRetry := s.maxRetry()
	for i := 0; i < maxRetry; i++ {
		var newBalance decimal.Decimal
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			newBalance, txErr = s.CreditTx(ctx, tx, userID, amount, logType, orderNo, remark)
			return txErr
		})
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[WalletService] 入账乐观锁冲突，第 %d 次重试: userID=%d", i+1, userID)
			continue
		}
		return newBalance, err
	}

	return decimal.Zero, errs.New(errs.CodeConcurrentError, "并发操作失败，请重试")
}

// Debit 扣款（带乐观锁重试），每次尝试都是独立事务
func (s *WalletService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, logType model.WalletLogType, orderNo, remark string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.New(errs.CodeParamError, "金额必须大于0")
	}

	maxRetry := s.maxRetry()
	for i := 0; i < maxRetry; i++ {
		var newBalance decimal.Decimal
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			newBalance, txErr = s.DebitTx(ctx, tx, userID, amount, logType, orderNo, remark)
			return txErr
		})
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[WalletService] 扣款乐观锁冲突，第 %d 次重试: userID=%d", i+1, userID)
			continue
		}
		return newBalance, err
	}

	return decimal.Zero, errs.New(errs.CodeConcurrentError, "并发操作失败，请重试")
}

// Recharge 账户充值
func (s *WalletService) Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if _, err := s.walletRepo.GetOrCreate(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	newBalance, err := s.Credit(ctx, userID, amount, model.WalletLogTypeRecharge, "", "账户充值")
	if err != nil {
		return decimal.Zero, err
	}

	log.Printf("[WalletService] 用户充值成功: userID=%d, amount=%s, newBalance=%s", userID, amount, newBalance)
	return newBalance, nil
}

// Withdraw 账户提现
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	newBalance, err := s.Debit(ctx, userID, amount, model.WalletLogTypeWithdraw, "", "账户提现")
	if err != nil {
		return decimal.Zero, err
	}

	log.Printf("[WalletService] 用户提现成功: userID=%d, amount=%s, newBalance=%s", userID, amount, newBalance)
	return newBalance, nil
}

// GetWalletLogs 分页查询资金流水
func (s *WalletService) GetWalletLogs(ctx context.Context, userID int64, logType model.WalletLogType, page, pageSize int) ([]*model.WalletLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.walletRepo.ListLogs(ctx, userID, logType, page, pageSize)
}
