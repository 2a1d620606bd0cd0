package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// MaintenanceScheduler периодически создает заявки планового обслуживания
// и проверяет остатки запчастей
type MaintenanceScheduler struct {
	db        *gorm.DB
	inventory *InventoryService
	audit     *AuditService
	notifier  Dispatcher
	cron      *cron.Cron
	spec      string
	lead      time.Duration
	now       func() time.Time
}

// NewMaintenanceScheduler создает новый экземпляр MaintenanceScheduler.
// spec - cron выражение с секундами, leadDays - горизонт создания заявок.
func NewMaintenanceScheduler(db *gorm.DB, inventory *InventoryService, audit *AuditService, notifier Dispatcher, spec string, leadDays int) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		db:        db,
		inventory: inventory,
		audit:     audit,
		notifier:  notifier,
		cron:      cron.New(cron.WithSeconds()),
		spec:      spec,
		lead:      time.Duration(leadDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Start регистрирует периодическую задачу и запускает планировщик
func (ms *MaintenanceScheduler) Start() error {
	if _, err := ms.cron.AddFunc(ms.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		ms.RunPeriodicChecks(ctx)
	}); err != nil {
		return fmt.Errorf("ошибка добавления задачи планировщика: %w", err)
	}

	ms.cron.Start()
	logger.Log.WithField("cron", ms.spec).Info("Планировщик обслуживания запущен")
	return nil
}

// Stop останавливает планировщик и ждет завершения текущей задачи
func (ms *MaintenanceScheduler) Stop() {
	<-ms.cron.Stop().Done()
	logger.Log.Info("Планировщик обслуживания остановлен")
}

// RunPeriodicChecks выполняет все периодические проверки
func (ms *MaintenanceScheduler) RunPeriodicChecks(ctx context.Context) {
	created, err := ms.GenerateDuePreventiveWorkOrders(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Ошибка создания плановых заявок")
	}

	alerts := 0
	if ms.inventory != nil {
		alerts, err = ms.inventory.CheckLowStockLevels(ctx)
		if err != nil {
			logger.Log.WithError(err).Error("Ошибка проверки остатков")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"work_orders":  created,
		"stock_alerts": alerts,
	}).Info("Периодические проверки выполнены")
}

// GenerateDuePreventiveWorkOrders создает заявки по задачам, срок которых
// наступает в пределах горизонта и по которым нет открытой заявки
func (ms *MaintenanceScheduler) GenerateDuePreventiveWorkOrders(ctx context.Context) (int, error) {
	now := ms.now()
	var tasks []models.PreventiveTask
	if err := ms.db.WithContext(ctx).
		Where("is_active = ? AND next_due_date IS NOT NULL AND next_due_date <= ?", true, now.Add(ms.lead)).
		Order("next_due_date, id").
		Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("ошибка получения плановых задач: %w", err)
	}

	created := 0
	for i := range tasks {
		wo, err := ms.generateForTask(ctx, &tasks[i])
		if err != nil {
			logger.WithCompany(tasks[i].CompanyID).WithError(err).
				WithField("preventive_task_id", tasks[i].ID).
				Warn("Не удалось создать плановую заявку")
			continue
		}
		if wo == nil {
			continue
		}
		created++

		dispatchAsync(ms.notifier, Event{
			Type:        EventPreventiveDue,
			CompanyID:   wo.CompanyID,
			RelatedID:   wo.ID,
			RelatedType: "work_order",
			Message: fmt.Sprintf("🔧 Плановое обслуживание «%s» до %s, создана заявка #%d",
				tasks[i].Name, tasks[i].NextDueDate.Format("02.01.2006"), wo.ID),
		})
	}
	return created, nil
}

// generateForTask создает заявку, если по задаче нет незакрытой. nil - заявка уже есть.
func (ms *MaintenanceScheduler) generateForTask(ctx context.Context, task *models.PreventiveTask) (*models.WorkOrder, error) {
	var wo *models.WorkOrder
	err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.WorkOrder{}).
			Where("preventive_task_id = ? AND status NOT IN ?", task.ID, models.TerminalWorkOrderStatuses).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return nil
		}

		wo = &models.WorkOrder{
			Title:            fmt.Sprintf("ТО: %s", task.Name),
			Description:      task.Description,
			Type:             models.WorkOrderTypePreventive,
			Status:           models.WorkOrderStatusOpen,
			Priority:         "normal",
			MachineID:        task.MachineID,
			PreventiveTaskID: &task.ID,
			CompanyID:        task.CompanyID,
		}
		if err := tx.Create(wo).Error; err != nil {
			return err
		}

		return ms.audit.LogTx(tx, AuditContext{
			CompanyID:  task.CompanyID,
			Action:     ActionPreventiveGenerate,
			Resource:   "work_order",
			ResourceID: &wo.ID,
			Details: map[string]interface{}{
				"preventive_task_id": task.ID,
				"next_due_date":      task.NextDueDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return wo, nil
}
