package service

import (
	"context"
	"testing"

	"github.com/J0kerL/Buff-like/internal/model"
	"github.com/J0kerL/Buff-like/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, newTestConfig())
	ctx := context.Background()
	inventory := seedInventory(t, db, 1, 1001)

	listingID, err := svc.CreateListing(ctx, 1, inventory.ID, mustDecimal(t, "150.50"))
	require.NoError(t, err)
	require.NotZero(t, listingID)

	// 挂单上架中，价格和模板ID正确
	listing, err := svc.GetListingDetail(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusOnSale, listing.Status)
	assert.True(t, listing.Price.Equal(mustDecimal(t, "150.50")))
	assert.Equal(t, inventory.TemplateID, listing.TemplateID)

	// 库存状态同步为出售中
	var updated model.UserInventory
	require.NoError(t, db.First(&updated, inventory.ID).Error)
	assert.Equal(t, model.InventoryStatusOnSale, updated.Status)
}

func TestCreateListingValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, newTestConfig())
	ctx := context.Background()
	inventory := seedInventory(t, db, 1, 1001)

	// 价格必须为正
	_, err := svc.CreateListing(ctx, 1, inventory.ID, decimal.Zero)
	assert.ErrorIs(t, err, errs.New(errs.CodeListingPriceError, ""))

	// 库存不存在
	_, err = svc.CreateListing(ctx, 1, 9999, mustDecimal(t, "10"))
	assert.ErrorIs(t, err, errs.New(errs.CodeItemNotFound, ""))

	// 不是自己的库存
	_, err = svc.CreateListing(ctx, 2, inventory.ID, mustDecimal(t, "10"))
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))
}

func TestCreateListingDuplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, newTestConfig())
	ctx := context.Background()
	inventory := seedInventory(t, db, 1, 1001)

	_, err := svc.CreateListing(ctx, 1, inventory.ID, mustDecimal(t, "100.00"))
	require.NoError(t, err)

	// 已上架的库存不能重复挂单
	_, err = svc.CreateListing(ctx, 1, inventory.ID, mustDecimal(t, "120.00"))
	assert.ErrorIs(t, err, errs.New(errs.CodeItemNotInInventory, ""))
}

func TestCancelListing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, newTestConfig())
	ctx := context.Background()
	inventory := seedInventory(t, db, 1, 1001)

	listingID, err := svc.CreateListing(ctx, 1, inventory.ID, mustDecimal(t, "100.00"))
	require.NoError(t, err)

	// 只有卖家本人能下架
	err = svc.CancelListing(ctx, 2, listingID)
	assert.ErrorIs(t, err, errs.New(errs.CodeForbidden, ""))

	require.NoError(t, svc.CancelListing(ctx, 1, listingID))

	listing, err := svc.GetListingDetail(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusOffSale, listing.Status)

	// 库存恢复在库，可以再次上架
	var updated model.UserInventory
	require.NoError(t, db.First(&updated, inventory.ID).Error)
	assert.Equal(t, model.InventoryStatusInStock, updated.Status)

	// 已下架的挂单不能再次下架
	err = svc.CancelListing(ctx, 1, listingID)
	assert.ErrorIs(t, err, errs.New(errs.CodeListingNotOnSale, ""))

	// 下架后同一库存可以重新挂单
	_, err = svc.CreateListing(ctx, 1, inventory.ID, mustDecimal(t, "110.00"))
	require.NoError(t, err)
}

func TestGetMarketListings(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, newTestConfig())
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		inventory := seedInventory(t, db, i, 1000+i)
		_, err := svc.CreateListing(ctx, i, inventory.ID, mustDecimal(t, "50.00"))
		require.NoError(t, err)
	}

	// 下架一条后市场只剩两条
	myListings, _, err := svc.GetMyListings(ctx, 1, model.ListingStatusOnSale, 1, 10)
	require.NoError(t, err)
	require.Len(t, myListings, 1)
	require.NoError(t, svc.CancelListing(ctx, 1, myListings[0].ID))

	listings, total, err := svc.GetMarketListings(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, listings, 2)
	for _, l := range listings {
		assert.Equal(t, model.ListingStatusOnSale, l.Status)
	}
}
