package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/internal/repository"

	"gorm.io/gorm"
)

// SettlementService 订单结算服务
//
// 消费"确认收货"事件，在一个事务内完成三件事：
//  1. 给卖家钱包入账（SALE_INCOME 流水）
//  2. 库存转移给买家并恢复 IN_STOCK
//  3. 挂单置为终态 SOLD
//
// 消息可能被重复投递，结算必须幂等：库存已属于买家且为 IN_STOCK
// 说明这笔订单已经结算过，直接返回成功
type SettlementService struct {
	db            *gorm.DB
	cfg           *config.Config
	walletService *WalletService
	listingRepo   *repository.ListingRepository
	inventoryRepo *repository.InventoryRepository
}

func NewSettlementService(db *gorm.DB, cfg *config.Config) *SettlementService {
	return &SettlementService{
		db:            db,
		cfg:           cfg,
		walletService: NewWalletService(db, cfg),
		listingRepo:   repository.NewListingRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
	}
}

func (s *SettlementService) maxRetry() int {
	if s.cfg != nil && s.cfg.Business.MaxRetryCount > 0 {
		return s.cfg.Business.MaxRetryCount
	}
	return 3
}

// HandleOrderConfirmed 处理确认收货事件
// 返回 error 表示本次结算失败，由消费者决定重试或进死信
func (s *SettlementService) HandleOrderConfirmed(ctx context.Context, msg *model.OrderConfirmedMessage) error {
	// 1. 幂等检查：库存已转移给买家说明该订单已结算，收到重复消息直接确认
	inventory, err := s.inventoryRepo.GetByID(ctx, msg.InventoryID)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			// 库存不存在属于脏数据，重试也不会成功，确认掉避免堵塞队列
			log.Printf("[SettlementService] 库存不存在，跳过结算: orderNo=%s, inventoryID=%d",
				msg.OrderNo, msg.InventoryID)
			return nil
		}
		return err
	}
	if inventory.UserID == msg.BuyerID && inventory.Status == model.InventoryStatusInStock {
		log.Printf("[SettlementService] 订单已结算，跳过重复消息: orderNo=%s", msg.OrderNo)
		return nil
	}

	// 2. 执行结算，卖家钱包的乐观锁冲突在有限次数内重试
	maxRetry := s.maxRetry()
	for i := 0; i < maxRetry; i++ {
		listing, err := s.listingRepo.GetByID(ctx, msg.ListingID)
		if err != nil {
			return err
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			// 卖家入账并记录流水
			if _, txErr := s.walletService.CreditTx(ctx, tx, msg.SellerID, msg.Amount,
				model.WalletLogTypeSaleIncome, msg.OrderNo, "出售商品收入"); txErr != nil {
				return txErr
			}

			// 库存转移给买家
			if txErr := s.inventoryRepo.UpdateOwnerAndStatus(ctx, tx, msg.InventoryID,
				msg.BuyerID, model.InventoryStatusInStock); txErr != nil {
				return txErr
			}

			// 挂单置为已售出终态
			if listing.Status != model.ListingStatusSold {
				ok, txErr := s.listingRepo.CASUpdateStatus(ctx, tx, msg.ListingID,
					model.ListingStatusSold, listing.Version)
				if txErr != nil {
					return txErr
				}
				if !ok {
					return repository.ErrOptimisticLock
				}
			}
			return nil
		})
		if errors.Is(err, repository.ErrOptimisticLock) {
			log.Printf("[SettlementService] 结算乐观锁冲突，第 %d 次重试: orderNo=%s", i+1, msg.OrderNo)
			continue
		}
		if err != nil {
			return err
		}

		log.Printf("[SettlementService] 订单结算成功: orderNo=%s, sellerID=%d, amount=%s, inventoryID=%d",
			msg.OrderNo, msg.SellerID, msg.Amount, msg.InventoryID)
		return nil
	}

	return fmt.Errorf("订单结算重试次数耗尽: orderNo=%s", msg.OrderNo)
}
