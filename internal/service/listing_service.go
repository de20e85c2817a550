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

// ListingService 市场挂单服务
type ListingService struct {
	db            *gorm.DB
	cfg           *config.Config
	listingRepo   *repository.ListingRepository
	inventoryRepo *repository.InventoryRepository
}

func NewListingService(db *gorm.DB, cfg *config.Config) *ListingService {
	return &ListingService{
		db:            db,
		cfg:           cfg,
		listingRepo:   repository.NewListingRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
	}
}

// CreateListing 上架商品
// 只有在库状态且归属卖家的库存才能上架，同一库存不允许重复挂单
func (s *ListingService) CreateListing(ctx context.Context, sellerID, inventoryID int64, price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, errs.New(errs.CodeListingPriceError, "价格设置错误")
	}

	// 1. 查询库存
	inventory, err := s.inventoryRepo.GetByID(ctx, inventoryID)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			return 0, errs.New(errs.CodeItemNotFound, "库存不存在")
		}
		return 0, err
	}

	// 2. 验证库存所有权
	if inventory.UserID != sellerID {
		return 0, errs.New(errs.CodeForbidden, "无权操作该库存")
	}

	// 3. 验证库存状态（必须在库）
	if inventory.Status != model.InventoryStatusInStock {
		return 0, errs.New(errs.CodeItemNotInInventory, "该饰品不在库中，无法上架")
	}

	// 4. 检查是否已经上架
	existing, err := s.listingRepo.GetActiveByInventoryID(ctx, inventoryID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, errs.New(errs.CodeItemAlreadyOnSale, "该饰品已上架，请勿重复操作")
	}

	listing := &model.MarketListing{
		SellerID:    sellerID,
		InventoryID: inventoryID,
		TemplateID:  inventory.TemplateID,
		Price:       price,
		Status:      model.ListingStatusOnSale,
		Version:     0,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 5. 库存状态置为出售中，条件更新防止并发重复上架
		ok, txErr := s.inventoryRepo.UpdateStatus(ctx, tx, inventoryID,
			model.InventoryStatusInStock, model.InventoryStatusOnSale)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return errs.New(errs.CodeConcurrentError, "更新库存状态失败，请重试")
		}

		// 6. 创建挂单
		return s.listingRepo.Create(ctx, tx, listing)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[ListingService] 用户上架商品成功: userID=%d, inventoryID=%d, price=%s", sellerID, inventoryID, price)
	return listing.ID, nil
}

// CancelListing 下架商品，只有卖家本人能下架上架中的挂单
func (s *ListingService) CancelListing(ctx context.Context, sellerID, listingID int64) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return errs.New(errs.CodeListingNotFound, "挂单不存在")
		}
		return err
	}

	if listing.SellerID != sellerID {
		return errs.New(errs.CodeForbidden, "无权操作该挂单")
	}

	if listing.Status != model.ListingStatusOnSale {
		return errs.New(errs.CodeListingNotOnSale, "该商品不在上架中，无法下架")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 挂单 CAS 下架，版本冲突说明已被购买或已下架，直接报错不重试
		ok, txErr := s.listingRepo.CASUpdateStatus(ctx, tx, listingID,
			model.ListingStatusOffSale, listing.Version)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return errs.New(errs.CodeConcurrentError, "下架失败，请重试")
		}

		// 恢复库存状态为在库
		if _, txErr := s.inventoryRepo.UpdateStatus(ctx, tx, listing.InventoryID,
			model.InventoryStatusOnSale, model.InventoryStatusInStock); txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[ListingService] 用户下架商品成功: userID=%d, listingID=%d", sellerID, listingID)
	return nil
}

// GetListingDetail 查询挂单详情
func (s *ListingService) GetListingDetail(ctx context.Context, listingID int64) (*model.MarketListing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, errs.New(errs.CodeListingNotFound, "挂单不存在")
		}
		return nil, err
	}
	return listing, nil
}

// GetMarketListings 分页查询市场在售挂单
func (s *ListingService) GetMarketListings(ctx context.Context, page, pageSize int) ([]*model.MarketListing, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.listingRepo.ListOnSale(ctx, page, pageSize)
}

// GetMyListings 分页查询我的挂单
func (s *ListingService) GetMyListings(ctx context.Context, sellerID int64, status model.ListingStatus, page, pageSize int) ([]*model.MarketListing, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.listingRepo.ListBySellerID(ctx, sellerID, status, page, pageSize)
}
