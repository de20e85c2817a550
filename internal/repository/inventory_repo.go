package repository

import (
	"context"
	"errors"

	"github.com/J0kerL/Buff-like/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInventoryNotFound = errors.New("库存不存在")
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Create(ctx context.Context, tx *gorm.DB, inventory *model.UserInventory) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(inventory).Error
}

func (r *InventoryRepository) GetByID(ctx context.Context, id int64) (*model.UserInventory, error) {
	var inventory model.UserInventory
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inventory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInventoryNotFound
		}
		return nil, err
	}
	return &inventory, nil
}

// UpdateStatus 条件更新库存状态，WHERE 带上前置状态
func (r *InventoryRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus model.InventoryStatus) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.UserInventory{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateOwnerAndStatus 转移库存归属并重置状态，结算时调用
func (r *InventoryRepository) UpdateOwnerAndStatus(ctx context.Context, tx *gorm.DB, id, ownerID int64, status model.InventoryStatus) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.UserInventory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"user_id": ownerID,
			"status":  status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInventoryNotFound
	}
	return nil
}
