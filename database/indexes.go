package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"backend_cmms/logger"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Type    string // btree, gin
}

// PerformanceIndexes составные индексы под запросы планирования и аналитики
var PerformanceIndexes = []DatabaseIndex{
	// Заявки
	{
		Name:    "idx_work_orders_company_status",
		Table:   "work_orders",
		Columns: []string{"company_id", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_work_orders_preventive_status",
		Table:   "work_orders",
		Columns: []string{"preventive_task_id", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_work_orders_fulltext",
		Table:   "work_orders",
		Columns: []string{"title", "description"},
		Type:    "gin",
	},

	// Слоты планирования: загрузка техника и пересечения
	{
		Name:    "idx_planning_slots_technician_period",
		Table:   "planning_slots",
		Columns: []string{"company_id", "technician_id", "status", "start_at", "end_at"},
		Type:    "btree",
	},
	{
		Name:    "idx_technician_availabilities_period",
		Table:   "technician_availabilities",
		Columns: []string{"company_id", "technician_id", "date"},
		Type:    "btree",
	},

	// Ставки: поиск действующей ставки на момент времени
	{
		Name:    "idx_labor_rates_user_effective",
		Table:   "labor_rates",
		Columns: []string{"company_id", "user_id", "effective_from"},
		Type:    "btree",
	},
	{
		Name:    "idx_labor_rates_role_effective",
		Table:   "labor_rates",
		Columns: []string{"company_id", "role", "effective_from"},
		Type:    "btree",
	},

	// Производство и простои
	{
		Name:    "idx_production_runs_company_period",
		Table:   "production_runs",
		Columns: []string{"company_id", "start_time", "end_time"},
		Type:    "btree",
	},
	{
		Name:    "idx_downtimes_company_period",
		Table:   "downtimes",
		Columns: []string{"company_id", "start_time", "category_id"},
		Type:    "btree",
	},

	// Склад
	{
		Name:    "idx_inventory_transactions_company_part",
		Table:   "inventory_transactions",
		Columns: []string{"company_id", "spare_part_id", "location_id"},
		Type:    "btree",
	},
	{
		Name:    "idx_stock_alerts_stock_status",
		Table:   "stock_alerts",
		Columns: []string{"stock_id", "type", "status"},
		Type:    "btree",
	},

	// Аудит
	{
		Name:    "idx_audit_logs_company_created",
		Table:   "audit_logs",
		Columns: []string{"company_id", "created_at"},
		Type:    "btree",
	},
}

// CreatePerformanceIndexes создает индексы для оптимизации производительности.
// GIN индексы создаются только в PostgreSQL.
func CreatePerformanceIndexes(db *gorm.DB) error {
	dialect := db.Dialector.Name()
	created := 0

	for _, index := range PerformanceIndexes {
		if index.Type == "gin" && dialect != "postgres" {
			continue
		}
		if err := CreateIndex(db, index); err != nil {
			// Продолжаем создание других индексов даже если один упал
			logger.Log.WithError(err).WithField("index", index.Name).Warn("Не удалось создать индекс")
			continue
		}
		created++
	}

	logger.Log.WithField("count", created).Info("Индексы производительности созданы")
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	var sql string

	switch index.Type {
	case "gin":
		// Для полнотекстового поиска
		parts := make([]string, len(index.Columns))
		for i, col := range index.Columns {
			parts[i] = fmt.Sprintf("COALESCE(%s, '')", col)
		}
		sql = fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (to_tsvector('russian', %s))",
			index.Name, index.Table, strings.Join(parts, " || ' ' || "),
		)
	default:
		uniqueStr := ""
		if index.Unique {
			uniqueStr = "UNIQUE "
		}
		sql = fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			uniqueStr, index.Name, index.Table, strings.Join(index.Columns, ", "),
		)
	}

	return db.Exec(sql).Error
}
