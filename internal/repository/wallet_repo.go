package repository

import (
	"context"
	"errors"

	"github.com/J0kerL/Buff-like/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound   = errors.New("钱包不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 不存在则以零余额初始化，并发创建由唯一索引 + DoNothing 保证安全
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, nil, userID)
	if err == nil {
		return wallet, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.Wallet{
		UserID:  userID,
		Balance: decimal.Zero,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, nil, userID)
}

// CASUpdateBalance 按读取时的版本号条件写入新余额
// 返回 false 表示版本已变化，由调用方在有限次数内重试
func (r *WalletRepository) CASUpdateBalance(ctx context.Context, tx *gorm.DB, userID int64, newBalance decimal.Decimal, expectedVersion int) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND version = ?", userID, expectedVersion).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateLog 追加资金流水，必须与余额变更在同一事务内调用
func (r *WalletRepository) CreateLog(ctx context.Context, tx *gorm.DB, walletLog *model.WalletLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(walletLog).Error
}

// ListLogs 分页查询资金流水，logType 为空表示不过滤类型
func (r *WalletRepository) ListLogs(ctx context.Context, userID int64, logType model.WalletLogType, page, pageSize int) ([]*model.WalletLog, int64, error) {
	var logs []*model.WalletLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletLog{}).Where("user_id = ?", userID)
	if logType != "" {
		query = query.Where("type = ?", logType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}
