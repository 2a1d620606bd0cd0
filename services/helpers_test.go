package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"backend_cmms/models"
	"backend_cmms/testutils"
)

// testEnv сервисы поверх общей тестовой базы без Redis и без уведомлений
type testEnv struct {
	db         *gorm.DB
	company    *models.Company
	audit      *AuditService
	cache      *CacheService
	costs      *CostService
	rates      *LaborRateService
	workOrders *WorkOrderService
	planning   *PlanningService
	capacity   *CapacityService
	accuracy   *PlanningAccuracyService
	inventory  *InventoryService
	production *ProductionService
	oee        *OeeService
	now        time.Time
}

func setupServiceTest(t *testing.T) *testEnv {
	t.Helper()
	db := testutils.SetupTestDB(t)
	now := testutils.Date(2024, time.March, 1, 10, 0)

	env := &testEnv{
		db:      db,
		company: testutils.CreateTestCompany(t, db, "acme"),
		now:     now,
	}
	clock := func() time.Time { return env.now }

	env.audit = NewAuditService(db)
	env.cache = NewCacheService(nil)
	env.costs = NewCostService(db)
	env.rates = NewLaborRateService(db, env.audit)
	env.workOrders = NewWorkOrderService(db, env.costs, env.rates, env.audit, nil, env.cache, StockPolicySkip)
	env.workOrders.Now = clock
	env.planning = NewPlanningService(db, env.audit, nil)
	env.capacity = NewCapacityService(db)
	env.accuracy = NewPlanningAccuracyService(db)
	env.inventory = NewInventoryService(db, env.audit, nil)
	env.production = NewProductionService(db, env.audit, env.cache)
	env.production.Now = clock
	env.oee = NewOeeService(db, env.cache, time.Minute)
	return env
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func timePtr(t time.Time) *time.Time {
	return &t
}
