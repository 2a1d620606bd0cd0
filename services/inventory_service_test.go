package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
	"backend_cmms/testutils"
)

func TestReceiveStock(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	location := testutils.CreateTestLocation(t, env.db, env.company.ID, "main")
	part := testutils.CreateTestSparePart(t, env.db, env.company.ID, "bearing", decimal.NewFromInt(12), 0)
	user := testutils.CreateTestUser(t, env.db, env.company.ID, "storekeeper", models.RoleManager)

	result, err := env.inventory.ReceiveStock(ctx, env.company.ID, ReceiveInput{
		SparePartID: part.ID,
		LocationID:  location.ID,
		Quantity:    10,
		UserID:      &user.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Stock.QuantityOnHand)
	assert.Equal(t, models.TransactionTypeReceive, result.Transaction.Type)
	assert.True(t, result.Transaction.UnitCost.Equal(decimal.NewFromInt(12)), "цена по умолчанию из номенклатуры")
	assert.NotEmpty(t, result.Transaction.BatchID)

	result, err = env.inventory.ReceiveStock(ctx, env.company.ID, ReceiveInput{
		SparePartID: part.ID,
		LocationID:  location.ID,
		Quantity:    5,
		UnitCost:    decimal.NewNullDecimal(decimal.NewFromInt(15)),
	})
	require.NoError(t, err)
	assert.Equal(t, 15, result.Stock.QuantityOnHand)
	assert.True(t, result.Transaction.UnitCost.Equal(decimal.NewFromInt(15)))

	assert.Equal(t, int64(1), countRows(t, env.db, &models.Stock{}, "spare_part_id = ?", part.ID))
	assert.Equal(t, int64(2), countRows(t, env.db, &models.InventoryTransaction{}, "spare_part_id = ?", part.ID))
	assert.Equal(t, int64(2), countRows(t, env.db, &models.AuditLog{}, "action = ?", ActionStockReceive))
}

func TestReceiveStock_Validation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	location := testutils.CreateTestLocation(t, env.db, env.company.ID, "main")
	part := testutils.CreateTestSparePart(t, env.db, env.company.ID, "belt", decimal.NewFromInt(5), 0)
	other := testutils.CreateTestCompany(t, env.db, "other")
	foreignLocation := testutils.CreateTestLocation(t, env.db, other.ID, "foreign")

	tests := []struct {
		name  string
		input ReceiveInput
		kind  error
	}{
		{"нулевое количество", ReceiveInput{SparePartID: part.ID, LocationID: location.ID}, ErrValidation},
		{"отрицательное количество", ReceiveInput{SparePartID: part.ID, LocationID: location.ID, Quantity: -3}, ErrValidation},
		{"отрицательная цена", ReceiveInput{
			SparePartID: part.ID, LocationID: location.ID, Quantity: 1,
			UnitCost: decimal.NewNullDecimal(decimal.NewFromInt(-1)),
		}, ErrValidation},
		{"нет запчасти", ReceiveInput{SparePartID: 9999, LocationID: location.ID, Quantity: 1}, ErrNotFound},
		{"чужая площадка", ReceiveInput{SparePartID: part.ID, LocationID: foreignLocation.ID, Quantity: 1}, ErrAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.inventory.ReceiveStock(ctx, env.company.ID, tt.input)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
	assert.Equal(t, int64(0), countRows(t, env.db, &models.InventoryTransaction{}, ""))
}

func TestReconcileStock(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	location := testutils.CreateTestLocation(t, env.db, env.company.ID, "main")
	part := testutils.CreateTestSparePart(t, env.db, env.company.ID, "filter", decimal.NewFromInt(3), 0)

	rec, err := env.inventory.ReconcileStock(ctx, env.company.ID, part.ID, location.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "пустой остаток и пустой журнал совпадают")
	assert.Equal(t, 0, rec.TransactionCount)

	_, err = env.inventory.ReceiveStock(ctx, env.company.ID, ReceiveInput{SparePartID: part.ID, LocationID: location.ID, Quantity: 10})
	require.NoError(t, err)

	rec, err = env.inventory.ReconcileStock(ctx, env.company.ID, part.ID, location.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.QuantityOnHand)
	assert.Equal(t, 10, rec.LedgerQuantity)
	assert.True(t, rec.Consistent)

	// Правка остатка в обход журнала дает расхождение
	require.NoError(t, env.db.Model(&models.Stock{}).
		Where("spare_part_id = ? AND location_id = ?", part.ID, location.ID).
		UpdateColumn("quantity_on_hand", 7).Error)

	rec, err = env.inventory.ReconcileStock(ctx, env.company.ID, part.ID, location.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.Equal(t, -3, rec.Difference)

	other := testutils.CreateTestCompany(t, env.db, "other")
	_, err = env.inventory.ReconcileStock(ctx, other.ID, part.ID, location.ID)
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestCheckLowStockLevels(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	location := testutils.CreateTestLocation(t, env.db, env.company.ID, "main")
	low := testutils.CreateTestSparePart(t, env.db, env.company.ID, "fuse", decimal.NewFromInt(1), 10)
	fine := testutils.CreateTestSparePart(t, env.db, env.company.ID, "bolt", decimal.NewFromInt(1), 2)
	untracked := testutils.CreateTestSparePart(t, env.db, env.company.ID, "rag", decimal.NewFromInt(1), 0)
	testutils.CreateTestStock(t, env.db, env.company.ID, low.ID, location.ID, 3)
	testutils.CreateTestStock(t, env.db, env.company.ID, fine.ID, location.ID, 50)
	testutils.CreateTestStock(t, env.db, env.company.ID, untracked.ID, location.ID, 0)

	created, err := env.inventory.CheckLowStockLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var alert models.StockAlert
	require.NoError(t, env.db.Where("type = ?", AlertTypeLowStock).First(&alert).Error)
	assert.Equal(t, AlertStatusActive, alert.Status)
	assert.Equal(t, SeverityHigh, alert.Severity)

	created, err = env.inventory.CheckLowStockLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "активное уведомление не дублируется")
	assert.Equal(t, int64(1), countRows(t, env.db, &models.StockAlert{}, ""))

	_, err = env.inventory.ReceiveStock(ctx, env.company.ID, ReceiveInput{SparePartID: low.ID, LocationID: location.ID, Quantity: 20})
	require.NoError(t, err)
	require.NoError(t, env.db.First(&alert, alert.ID).Error)
	assert.Equal(t, AlertStatusResolved, alert.Status, "приход закрывает уведомление")
}

func TestDetermineSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, determineSeverity(0, 10))
	assert.Equal(t, SeverityHigh, determineSeverity(4, 10))
	assert.Equal(t, SeverityMedium, determineSeverity(5, 10))
	assert.Equal(t, SeverityLow, determineSeverity(10, 10))
}
