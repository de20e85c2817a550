package repository

import (
	"context"
	"errors"

	"github.com/J0kerL/Buff-like/internal/model"

	"gorm.io/gorm"
)

var (
	ErrListingNotFound = errors.New("挂单不存在")
)

type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, tx *gorm.DB, listing *model.MarketListing) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(listing).Error
}

func (r *ListingRepository) GetByID(ctx context.Context, id int64) (*model.MarketListing, error) {
	var listing model.MarketListing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// GetActiveByInventoryID 查询库存对应的未终结挂单（上架中或已被购买），不存在返回 nil
func (r *ListingRepository) GetActiveByInventoryID(ctx context.Context, inventoryID int64) (*model.MarketListing, error) {
	var listing model.MarketListing
	err := r.db.WithContext(ctx).
		Where("inventory_id = ? AND status IN ?", inventoryID,
			[]model.ListingStatus{model.ListingStatusOnSale, model.ListingStatusPurchased}).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// CASUpdateStatus 按读取时的版本号条件更新挂单状态
// 返回 false 表示版本已变化（挂单被并发操作），由调用方决定如何处理，不在此处重试
func (r *ListingRepository) CASUpdateStatus(ctx context.Context, tx *gorm.DB, id int64, newStatus model.ListingStatus, expectedVersion int) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.MarketListing{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":  newStatus,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListOnSale 分页查询上架中的挂单
func (r *ListingRepository) ListOnSale(ctx context.Context, page, pageSize int) ([]*model.MarketListing, int64, error) {
	var listings []*model.MarketListing
	var total int64

	query := r.db.WithContext(ctx).Model(&model.MarketListing{}).
		Where("status = ?", model.ListingStatusOnSale)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&listings).Error

	return listings, total, err
}

// ListBySellerID 分页查询卖家的挂单，status 为空表示不过滤状态
func (r *ListingRepository) ListBySellerID(ctx context.Context, sellerID int64, status model.ListingStatus, page, pageSize int) ([]*model.MarketListing, int64, error) {
	var listings []*model.MarketListing
	var total int64

	query := r.db.WithContext(ctx).Model(&model.MarketListing{}).Where("seller_id = ?", sellerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&listings).Error

	return listings, total, err
}
