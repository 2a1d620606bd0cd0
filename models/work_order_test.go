package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB создает тестовую базу данных в памяти
func setupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func TestWorkOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to string
		allowed  bool
	}{
		{WorkOrderStatusOpen, WorkOrderStatusInProgress, true},
		{WorkOrderStatusOpen, WorkOrderStatusCompleted, true},
		{WorkOrderStatusOpen, WorkOrderStatusCancelled, true},
		{WorkOrderStatusInProgress, WorkOrderStatusCompleted, true},
		{WorkOrderStatusInProgress, WorkOrderStatusCancelled, true},
		{WorkOrderStatusInProgress, WorkOrderStatusInProgress, false},
		{WorkOrderStatusInProgress, WorkOrderStatusOpen, false},
		{WorkOrderStatusCompleted, WorkOrderStatusCancelled, false},
		{WorkOrderStatusCompleted, WorkOrderStatusInProgress, false},
		{WorkOrderStatusCancelled, WorkOrderStatusCompleted, false},
		{WorkOrderStatusOpen, "archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			wo := &WorkOrder{Status: tt.from}
			assert.Equal(t, tt.allowed, wo.CanTransitionTo(tt.to))
		})
	}
}

func TestWorkOrder_IsTerminal(t *testing.T) {
	assert.False(t, (&WorkOrder{Status: WorkOrderStatusOpen}).IsTerminal())
	assert.False(t, (&WorkOrder{Status: WorkOrderStatusInProgress}).IsTerminal())
	assert.True(t, (&WorkOrder{Status: WorkOrderStatusCompleted}).IsTerminal())
	assert.True(t, (&WorkOrder{Status: WorkOrderStatusCancelled}).IsTerminal())
}

func TestWorkOrderPart_LineCost(t *testing.T) {
	part := WorkOrderPart{QuantityUsed: 3, UnitCost: decimal.RequireFromString("12.50")}
	assert.True(t, part.LineCost().Equal(decimal.RequireFromString("37.50")))
}

func TestWorkOrderCost_TotalIsDerived(t *testing.T) {
	db := setupTestDB(t, &WorkOrderCost{})

	cost := &WorkOrderCost{
		WorkOrderID:         1,
		LaborCost:           decimal.NewFromInt(140),
		PartsCost:           decimal.NewFromInt(30),
		DowntimeCost:        decimal.NewFromInt(250),
		ExternalServiceCost: decimal.RequireFromString("75.50"),
		TotalCost:           decimal.NewFromInt(1),
		CompanyID:           1,
	}
	require.NoError(t, db.Create(cost).Error)
	assert.True(t, cost.TotalCost.Equal(decimal.RequireFromString("495.50")))

	cost.PartsCost = decimal.Zero
	require.NoError(t, db.Save(cost).Error)

	var stored WorkOrderCost
	require.NoError(t, db.First(&stored, cost.ID).Error)
	assert.True(t, stored.TotalCost.Equal(decimal.RequireFromString("465.50")))
	assert.True(t, stored.TotalCost.Equal(stored.ComponentsSum()))
}

func TestCompany_Location(t *testing.T) {
	assert.Equal(t, time.UTC, (&Company{}).Location())
	assert.Equal(t, time.UTC, (&Company{Timezone: "Mars/Olympus"}).Location())
	assert.Equal(t, "UTC", (&Company{Timezone: "UTC"}).Location().String())
}

func TestUser_GetFullName(t *testing.T) {
	assert.Equal(t, "Ivan Petrov", (&User{FirstName: "Ivan", LastName: "Petrov", Username: "ivan"}).GetFullName())
	assert.Equal(t, "ivan", (&User{Username: "ivan"}).GetFullName())
	assert.True(t, (&User{Role: RoleTechnician}).IsTechnician())
	assert.False(t, (&User{Role: RolePlanner}).IsTechnician())
}

func TestStock_AvailableQuantity(t *testing.T) {
	assert.Equal(t, 7, (&Stock{QuantityOnHand: 10, QuantityReserved: 3}).AvailableQuantity())
	assert.Equal(t, 0, (&Stock{QuantityOnHand: 2, QuantityReserved: 5}).AvailableQuantity())
}
