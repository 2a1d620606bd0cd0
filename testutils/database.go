package testutils

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"backend_cmms/database"
	"backend_cmms/logger"
	"backend_cmms/models"
)

// SetupTestDB создает тестовую базу данных SQLite в памяти.
// Одно соединение: каждая новая in-memory база пуста.
func SetupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	logger.Silence()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.AutoMigrate(db), "Failed to migrate test database")

	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// CleanupTestDB закрывает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// Date возвращает момент времени в UTC с точностью до минуты
func Date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// CreateTestCompany создает активную компанию
func CreateTestCompany(t testing.TB, db *gorm.DB, name string) *models.Company {
	t.Helper()
	company := &models.Company{
		Name:     name,
		Domain:   fmt.Sprintf("%s.example.com", name),
		IsActive: true,
		Timezone: "UTC",
	}
	require.NoError(t, db.Create(company).Error, "Failed to create test company")
	return company
}

// CreateTestUser создает активного пользователя компании с заданной ролью
func CreateTestUser(t testing.TB, db *gorm.DB, companyID uint, username, role string) *models.User {
	t.Helper()
	user := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "hashed_password",
		FirstName:  "Test",
		LastName:   username,
		Role:       role,
		IsActive:   true,
		TelegramID: "",
		CompanyID:  companyID,
	}
	require.NoError(t, db.Create(user).Error, "Failed to create test user")
	return user
}

// CreateTestLocation создает площадку компании
func CreateTestLocation(t testing.TB, db *gorm.DB, companyID uint, name string) *models.Location {
	t.Helper()
	location := &models.Location{Name: name, IsActive: true, CompanyID: companyID}
	require.NoError(t, db.Create(location).Error, "Failed to create test location")
	return location
}

// CreateTestMachine создает станок со стоимостью часа производства
func CreateTestMachine(t testing.TB, db *gorm.DB, companyID uint, name string, hourlyValue decimal.Decimal, locationID *uint) *models.Machine {
	t.Helper()
	machine := &models.Machine{
		Name:                  name,
		Status:                "operational",
		HourlyProductionValue: hourlyValue,
		LocationID:            locationID,
		CompanyID:             companyID,
	}
	require.NoError(t, db.Create(machine).Error, "Failed to create test machine")
	return machine
}

// CreateTestWorkOrder создает заявку в заданном статусе
func CreateTestWorkOrder(t testing.TB, db *gorm.DB, companyID uint, machineID *uint, status string) *models.WorkOrder {
	t.Helper()
	wo := &models.WorkOrder{
		Title:     "Test work order",
		Type:      models.WorkOrderTypeBreakdown,
		Status:    status,
		Priority:  "normal",
		MachineID: machineID,
		CompanyID: companyID,
	}
	require.NoError(t, db.Create(wo).Error, "Failed to create test work order")
	return wo
}

// CreateTestSparePart создает запчасть в номенклатуре
func CreateTestSparePart(t testing.TB, db *gorm.DB, companyID uint, name string, unitCost decimal.Decimal, minStock int) *models.SparePart {
	t.Helper()
	part := &models.SparePart{
		Name:          name,
		PartNumber:    "PN-" + name,
		Unit:          "pcs",
		UnitCost:      unitCost,
		MinStockLevel: minStock,
		IsActive:      true,
		CompanyID:     companyID,
	}
	require.NoError(t, db.Create(part).Error, "Failed to create test spare part")
	return part
}

// CreateTestStock создает остаток запчасти на площадке
func CreateTestStock(t testing.TB, db *gorm.DB, companyID, partID, locationID uint, quantity int) *models.Stock {
	t.Helper()
	stock := &models.Stock{
		SparePartID:    partID,
		LocationID:     locationID,
		QuantityOnHand: quantity,
		CompanyID:      companyID,
	}
	require.NoError(t, db.Create(stock).Error, "Failed to create test stock")
	return stock
}

// CreateTestLaborRate создает бессрочную ставку пользователя либо роли
func CreateTestLaborRate(t testing.TB, db *gorm.DB, companyID uint, userID *uint, role string, hourly decimal.Decimal, from time.Time) *models.LaborRate {
	t.Helper()
	rate := &models.LaborRate{
		UserID:        userID,
		Role:          role,
		HourlyRate:    hourly,
		EffectiveFrom: from,
		CompanyID:     companyID,
	}
	require.NoError(t, db.Create(rate).Error, "Failed to create test labor rate")
	return rate
}

// CreateTestDowntimeCategory создает категорию простоя
func CreateTestDowntimeCategory(t testing.TB, db *gorm.DB, companyID uint, name string, planned bool) *models.DowntimeCategory {
	t.Helper()
	category := &models.DowntimeCategory{Name: name, Code: name, IsPlanned: planned, CompanyID: companyID}
	require.NoError(t, db.Create(category).Error, "Failed to create test downtime category")
	return category
}
