package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/infrastructure/lock"
	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/internal/repository"
	"github.com/J0kerL/Buff-like/pkg/errs"
	"github.com/J0kerL/Buff-like/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// OrderService 交易订单服务
//
// 订单状态机只有两条路径：
//
//	PENDING_PAY -> PAID_WAIT_DELIVERY -> DELIVERED -> SUCCESS
//	PENDING_PAY -> CANCELLED
//
// 挂单的抢购依赖版本号 CAS：并发购买同一挂单时只有一个请求能把状态
// 从 ON_SALE 置为 PURCHASED，其余请求直接失败返回"已被购买"，不做重试。
// 钱包扣款的 CAS 冲突则在有限次数内重试。
type OrderService struct {
	db            *gorm.DB
	redisClient   *redis.Client
	cfg           *config.Config
	orderRepo     *repository.OrderRepository
	listingRepo   *repository.ListingRepository
	outboxRepo    *repository.OutboxRepository
	walletService *WalletService
}

func NewOrderService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *OrderService {
	return &OrderService{
		db:            db,
		redisClient:   redisClient,
		cfg:           cfg,
		orderRepo:     repository.NewOrderRepository(db),
		listingRepo:   repository.NewListingRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
		walletService: NewWalletService(db, cfg),
	}
}

func (s *OrderService) maxRetry() int {
	if s.cfg != nil && s.cfg.Business.MaxRetryCount > 0 {
		return s.cfg.Business.MaxRetryCount
	}
	return 3
}

// CreateOrder 创建订单
// 抢购挂单：CAS 失败说明商品已被他人买走，业务结果已定，直接报错不重试
func (s *OrderService) CreateOrder(ctx context.Context, buyerID, listingID int64) (*model.TradeOrder, error) {
	// 1. 查询挂单信息
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, errs.New(errs.CodeListingNotFound, "挂单不存在")
		}
		return nil, err
	}

	// 2. 验证挂单状态（必须是上架中）
	if listing.Status != model.ListingStatusOnSale {
		return nil, errs.New(errs.CodeListingSoldOut, "该商品已下架或已售出")
	}

	// 3. 验证不能购买自己的商品
	if listing.SellerID == buyerID {
		return nil, errs.New(errs.CodeForbidden, "不能购买自己的商品")
	}

	// 4. 创建订单，价格在此刻快照进订单，此后挂单价格变化不影响成交金额
	order := &model.TradeOrder{
		OrderNo:     idgen.GenerateOrderNo(),
		BuyerID:     buyerID,
		SellerID:    listing.SellerID,
		ListingID:   listingID,
		InventoryID: listing.InventoryID,
		TotalAmount: listing.Price,
		Status:      model.OrderStatusPendingPay,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 挂单 CAS 置为已被购买，并发抢购只有一个请求能成功
		ok, txErr := s.listingRepo.CASUpdateStatus(ctx, tx, listingID,
			model.ListingStatusPurchased, listing.Version)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return errs.New(errs.CodeListingSoldOut, "商品已被他人购买，请选择其他商品")
		}

		// 订单号唯一索引兜底防止碰撞
		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 创建订单成功: orderNo=%s, buyerID=%d, sellerID=%d, amount=%s",
		order.OrderNo, buyerID, listing.SellerID, listing.Price)
	return order, nil
}

// PayOrder 支付订单
// 扣款、流水、订单状态流转在同一事务内提交；
// 钱包乐观锁冲突时整个事务重试，最多 maxRetry 次
func (s *OrderService) PayOrder(ctx context.Context, buyerID, orderID int64) error {
	order, err := s.getOwnedOrder(ctx, orderID, buyerID, partyBuyer)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusPendingPay {
		return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法支付")
	}

	// 按订单维度加防重锁，拦截同一订单的重复提交
	payLock := lock.NewOrderLock(s.redisClient, orderID)
	if err := payLock.Lock(ctx, 100*time.Millisecond, 10); err != nil {
		return errs.New(errs.CodeConcurrentError, "操作过于频繁，请稍后重试")
	}
	defer payLock.Unlock(ctx)

	// 获取锁后重新确认订单状态
	order, err = s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusPendingPay {
		return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法支付")
	}

	maxRetry := s.maxRetry()
	for i := 0; i < maxRetry; i++ {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			// 扣除买家余额并记录 PURCHASE 流水
			if _, txErr := s.walletService.DebitTx(ctx, tx, buyerID, order.TotalAmount,
				model.WalletLogTypePurchase, order.OrderNo, "购买商品"); txErr != nil {
				return txErr
			}

			// 订单状态置为待发货
			return s.orderRepo.UpdateStatus(ctx, tx, orderID,
				model.OrderStatusPendingPay, model.OrderStatusPaidWaitDelivery)
		})
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[OrderService] 支付扣款乐观锁冲突，第 %d 次重试: orderID=%d", i+1, orderID)
			continue
		}
		if err != nil {
			return err
		}

		log.Printf("[OrderService] 订单支付成功: orderID=%d, buyerID=%d, amount=%s",
			orderID, buyerID, order.TotalAmount)
		return nil
	}

	return errs.New(errs.CodeConcurrentError, "支付失败，请重试")
}

// DeliverOrder 卖家发货
func (s *OrderService) DeliverOrder(ctx context.Context, sellerID, orderID int64) error {
	order, err := s.getOwnedOrder(ctx, orderID, sellerID, partySeller)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusPaidWaitDelivery {
		return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法发货")
	}

	if err := s.orderRepo.UpdateStatus(ctx, nil, orderID,
		model.OrderStatusPaidWaitDelivery, model.OrderStatusDelivered); err != nil {
		if errors.Is(err, repository.ErrOrderStatusInvalid) {
			return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法发货")
		}
		return err
	}

	log.Printf("[OrderService] 订单发货成功: orderID=%d, sellerID=%d", orderID, sellerID)
	return nil
}

// ConfirmOrder 买家确认收货
// 同步路径只把订单置为终态 SUCCESS，并把结算事件写入发件箱（同一事务）；
// 卖家打款、库存转移、挂单售出全部由结算消费者异步完成
func (s *OrderService) ConfirmOrder(ctx context.Context, buyerID, orderID int64) error {
	order, err := s.getOwnedOrder(ctx, orderID, buyerID, partyBuyer)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusDelivered {
		return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法确认收货")
	}

	msg := &model.OrderConfirmedMessage{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Amount:      order.TotalAmount,
		InventoryID: order.InventoryID,
		ListingID:   order.ListingID,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化结算事件失败: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := s.orderRepo.UpdateStatus(ctx, tx, orderID,
			model.OrderStatusDelivered, model.OrderStatusSuccess); txErr != nil {
			if errors.Is(txErr, repository.ErrOrderStatusInvalid) {
				return errs.New(errs.CodeOrderStatusError, "订单状态异常，无法确认收货")
			}
			return txErr
		}

		// 结算事件与订单终态同事务落库，订单提交成功则事件必达
		outboxMsg := &model.OutboxMessage{
			MessageKey: order.OrderNo,
			Topic:      s.cfg.Kafka.Topic.OrderConfirmed,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})
	if err != nil {
		return err
	}

	log.Printf("[OrderService] 订单确认收货成功: orderID=%d, buyerID=%d, sellerID=%d, amount=%s",
		orderID, buyerID, order.SellerID, order.TotalAmount)
	return nil
}

// CancelOrder 取消订单，买家或卖家都可以取消待支付的订单
// 挂单恢复上架同样走 CAS：失败说明挂单状态已偏离预期，必须报错回滚，
// 否则挂单会永远滞留在 PURCHASED 状态
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) error {
	order, err := s.getOwnedOrder(ctx, orderID, userID, partyAny)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusPendingPay {
		return errs.New(errs.CodeOrderStatusError, "该订单无法取消")
	}

	listing, err := s.listingRepo.GetByID(ctx, order.ListingID)
	if err != nil {
		return err
	}
	if listing.Status != model.ListingStatusPurchased {
		return errs.New(errs.CodeConcurrentError, "挂单状态已变化，取消失败")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := s.orderRepo.UpdateStatus(ctx, tx, orderID,
			model.OrderStatusPendingPay, model.OrderStatusCancelled); txErr != nil {
			if errors.Is(txErr, repository.ErrOrderStatusInvalid) {
				return errs.New(errs.CodeOrderStatusError, "该订单无法取消")
			}
			return txErr
		}

		// 挂单恢复上架，买家可以再次下单购买
		ok, txErr := s.listingRepo.CASUpdateStatus(ctx, tx, order.ListingID,
			model.ListingStatusOnSale, listing.Version)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return errs.New(errs.CodeConcurrentError, "挂单状态已变化，取消失败")
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[OrderService] 订单取消成功: orderID=%d, userID=%d", orderID, userID)
	return nil
}

// GetOrderDetail 查询订单详情，仅订单买卖双方可见
func (s *OrderService) GetOrderDetail(ctx context.Context, userID, orderID int64) (*model.TradeOrder, error) {
	return s.getOwnedOrder(ctx, orderID, userID, partyAny)
}

// GetMyBuyOrders 分页查询我的买入订单
func (s *OrderService) GetMyBuyOrders(ctx context.Context, buyerID int64, status model.OrderStatus, page, pageSize int) ([]*model.TradeOrder, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.orderRepo.ListByBuyerID(ctx, buyerID, status, page, pageSize)
}

// GetMySellOrders 分页查询我的卖出订单
func (s *OrderService) GetMySellOrders(ctx context.Context, sellerID int64, status model.OrderStatus, page, pageSize int) ([]*model.TradeOrder, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.orderRepo.ListBySellerID(ctx, sellerID, status, page, pageSize)
}

type orderParty int

const (
	partyBuyer orderParty = iota
	partySeller
	partyAny
)

func (s *OrderService) getOwnedOrder(ctx context.Context, orderID, userID int64, party orderParty) (*model.TradeOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, errs.New(errs.CodeOrderNotFound, "订单不存在")
		}
		return nil, err
	}

	switch party {
	case partyBuyer:
		if order.BuyerID != userID {
			return nil, errs.New(errs.CodeForbidden, "无权操作该订单")
		}
	case partySeller:
		if order.SellerID != userID {
			return nil, errs.New(errs.CodeForbidden, "无权操作该订单")
		}
	case partyAny:
		if order.BuyerID != userID && order.SellerID != userID {
			return nil, errs.New(errs.CodeForbidden, "无权操作该订单")
		}
	}

	return order, nil
}
