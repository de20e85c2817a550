package repository

import (
	"context"
	"errors"
	"time"

	"github.com/J0kerL/Buff-like/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.TradeOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.TradeOrder, error) {
	var order model.TradeOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.TradeOrder, error) {
	var order model.TradeOrder
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 条件更新订单状态，WHERE 同时带上前置状态防止并发下的状态跳变
// 随目标状态一并记录对应的时间戳（支付/发货/完成）
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus model.OrderStatus) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.OrderStatusPaidWaitDelivery:
		updates["pay_time"] = &now
	case model.OrderStatusDelivered:
		updates["deliver_time"] = &now
	case model.OrderStatusSuccess:
		updates["finish_time"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.TradeOrder{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// ListByBuyerID 分页查询买家订单，status 为空表示不过滤状态
func (r *OrderRepository) ListByBuyerID(ctx context.Context, buyerID int64, status model.OrderStatus, page, pageSize int) ([]*model.TradeOrder, int64, error) {
	return r.listByUser(ctx, "buyer_id", buyerID, status, page, pageSize)
}

// ListBySellerID 分页查询卖家订单
func (r *OrderRepository) ListBySellerID(ctx context.Context, sellerID int64, status model.OrderStatus, page, pageSize int) ([]*model.TradeOrder, int64, error) {
	return r.listByUser(ctx, "seller_id", sellerID, status, page, pageSize)
}

func (r *OrderRepository) listByUser(ctx context.Context, column string, userID int64, status model.OrderStatus, page, pageSize int) ([]*model.TradeOrder, int64, error) {
	var orders []*model.TradeOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TradeOrder{}).Where(column+" = ?", userID)
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
		Find(&orders).Error

	return orders, total, err
}
