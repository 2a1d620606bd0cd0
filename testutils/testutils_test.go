package testutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)
	require.NotNil(t, db, "Database should not be nil")

	// Проверяем, что таблицы созданы
	var tableCount int64
	err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&tableCount).Error
	require.NoError(t, err, "Should be able to query sqlite_master")
	assert.Greater(t, tableCount, int64(20), "Should have created all tables")

	assert.True(t, db.Migrator().HasTable(&models.WorkOrderCost{}))
	assert.True(t, db.Migrator().HasTable(&models.PlanningSlot{}))
}

func TestCreateTestCompanyAndUser(t *testing.T) {
	db := SetupTestDB(t)

	company := CreateTestCompany(t, db, "acme")
	assert.NotZero(t, company.ID)
	assert.True(t, company.IsActive)

	user := CreateTestUser(t, db, company.ID, "tech1", models.RoleTechnician)
	assert.Equal(t, company.ID, user.CompanyID)
	assert.True(t, user.IsTechnician())
}

func TestCreateTestStock(t *testing.T) {
	db := SetupTestDB(t)

	company := CreateTestCompany(t, db, "acme")
	location := CreateTestLocation(t, db, company.ID, "Main")
	part := CreateTestSparePart(t, db, company.ID, "bearing", decimal.NewFromInt(25), 2)
	stock := CreateTestStock(t, db, company.ID, part.ID, location.ID, 10)

	var loaded models.Stock
	require.NoError(t, db.Preload("SparePart").First(&loaded, stock.ID).Error)
	assert.Equal(t, 10, loaded.QuantityOnHand)
	assert.True(t, loaded.SparePart.UnitCost.Equal(decimal.NewFromInt(25)))
}
