package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// Политики при нехватке запчастей на складе
const (
	StockPolicySkip   = "skip"   // Позиция пропускается, заявка закрывается
	StockPolicyReject = "reject" // Закрытие заявки отклоняется целиком
)

// DefaultOvertimeFromHour час окончания работ, с которого действует ставка сверхурочных
const DefaultOvertimeFromHour = 18

// PartConsumption запрос на списание запчасти
type PartConsumption struct {
	SparePartID uint `json:"spare_part_id" binding:"required"`
	LocationID  uint `json:"location_id" binding:"required"`
	Quantity    int  `json:"quantity" binding:"required"`
}

// CompletionInput данные закрытия заявки
type CompletionInput struct {
	CompletedAt   time.Time         `json:"completed_at"`
	TimeStarted   string            `json:"time_started"`   // HH:MM
	TimeCompleted string            `json:"time_completed"` // HH:MM
	BreakTime     float64           `json:"break_time"`     // Часы
	CauseCategory string            `json:"cause_category"`
	Parts         []PartConsumption `json:"parts"`
	Notes         string            `json:"notes"`

	// Исполнитель, заполняется из контекста запроса
	UserID uint   `json:"-"`
	Role   string `json:"-"`
}

// hasTimeTracking проверяет, передан ли учет времени
func (in *CompletionInput) hasTimeTracking() bool {
	return in.TimeStarted != "" || in.TimeCompleted != ""
}

// SkippedItem позиция списания, пропущенная из-за нехватки остатка
type SkippedItem struct {
	Index       int    `json:"index"`
	SparePartID uint   `json:"spare_part_id"`
	LocationID  uint   `json:"location_id"`
	Requested   int    `json:"requested"`
	OnHand      int    `json:"on_hand"`
	Reason      string `json:"reason"`
}

// CompletionResult результат закрытия заявки
type CompletionResult struct {
	WorkOrder     *models.WorkOrder      `json:"work_order"`
	Cost          *models.WorkOrderCost  `json:"cost"`
	Log           *models.MaintenanceLog `json:"log"`
	ConsumedParts []models.WorkOrderPart `json:"consumed_parts"`
	SkippedItems  []SkippedItem          `json:"skipped_items"`
	BatchID       string                 `json:"batch_id"`
}

// WorkOrderService управляет жизненным циклом заявок
type WorkOrderService struct {
	DB               *gorm.DB
	Costs            *CostService
	Rates            *LaborRateService
	Audit            *AuditService
	Notifier         Dispatcher
	Cache            *CacheService
	StockPolicy      string
	OvertimeFromHour int
	Now              func() time.Time
}

// NewWorkOrderService создает новый экземпляр WorkOrderService
func NewWorkOrderService(db *gorm.DB, costs *CostService, rates *LaborRateService, audit *AuditService, notifier Dispatcher, cache *CacheService, stockPolicy string) *WorkOrderService {
	if stockPolicy == "" {
		stockPolicy = StockPolicySkip
	}
	return &WorkOrderService{
		DB:               db,
		Costs:            costs,
		Rates:            rates,
		Audit:            audit,
		Notifier:         notifier,
		Cache:            cache,
		StockPolicy:      stockPolicy,
		OvertimeFromHour: DefaultOvertimeFromHour,
		Now:              time.Now,
	}
}

// loadOwnedWorkOrder загружает заявку и проверяет принадлежность компании
func loadOwnedWorkOrder(tx *gorm.DB, op string, companyID, workOrderID uint) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := tx.First(&wo, workOrderID).Error; err != nil {
		return nil, lookupError(op, "work_order", err)
	}
	if wo.CompanyID != companyID {
		return nil, authorizationError(op, "work_order")
	}
	return &wo, nil
}

// parseClock разбирает время HH:MM в минуты от полуночи
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// computeHoursWorked считает отработанные часы: (конец - начало - перерыв) / 60
func computeHoursWorked(timeStarted, timeCompleted string, breakTime float64) (decimal.Decimal, int, error) {
	start, err := parseClock(timeStarted)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("time_started: ожидается формат HH:MM")
	}
	end, err := parseClock(timeCompleted)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("time_completed: ожидается формат HH:MM")
	}
	if end < start {
		return decimal.Zero, 0, fmt.Errorf("time_completed раньше time_started")
	}

	minutes := decimal.NewFromInt(int64(end - start)).Sub(decimal.NewFromFloat(breakTime).Mul(decimal.NewFromInt(60)))
	if minutes.IsNegative() {
		return decimal.Zero, 0, fmt.Errorf("перерыв длиннее отработанного времени")
	}
	return minutes.Div(decimal.NewFromInt(60)).Round(2), end / 60, nil
}

// validateCompletion проверяет входные данные до любых изменений
func (s *WorkOrderService) validateCompletion(op string, input *CompletionInput) error {
	if input.hasTimeTracking() {
		if input.TimeStarted == "" || input.TimeCompleted == "" {
			return validationError(op, "time_started", "нужно указать и начало, и окончание работ")
		}
		if input.BreakTime < 0 {
			return validationError(op, "break_time", "перерыв не может быть отрицательным")
		}
		if _, _, err := computeHoursWorked(input.TimeStarted, input.TimeCompleted, input.BreakTime); err != nil {
			return validationError(op, "time_completed", err.Error())
		}
	}

	for i, item := range input.Parts {
		if item.SparePartID == 0 || item.LocationID == 0 || item.Quantity <= 0 {
			idx := i
			return &ServiceError{
				Kind:     ErrValidation,
				Op:       op,
				Entity:   "work_order_part",
				Field:    "parts",
				LineItem: &idx,
				Message:  "позиция должна содержать запчасть, склад и положительное количество",
			}
		}
	}
	return nil
}

// Complete закрывает заявку: списывает запчасти, считает работу и стоимость,
// переносит срок планового обслуживания. Все изменения выполняются в одной транзакции.
func (s *WorkOrderService) Complete(ctx context.Context, companyID, workOrderID uint, input CompletionInput) (*CompletionResult, error) {
	const op = "work_order.complete"

	if err := s.validateCompletion(op, &input); err != nil {
		return nil, err
	}

	completedAt := input.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.Now()
	}

	result := &CompletionResult{
		BatchID:       uuid.New().String(),
		ConsumedParts: []models.WorkOrderPart{},
		SkippedItems:  []SkippedItem{},
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wo, err := loadOwnedWorkOrder(tx, op, companyID, workOrderID)
		if err != nil {
			return err
		}
		if wo.IsTerminal() {
			return conflictError(op, "work_order", "заявка уже закрыта или отменена")
		}
		if wo.StartedAt != nil && completedAt.Before(*wo.StartedAt) {
			return validationError(op, "completed_at", "время закрытия раньше начала работ")
		}

		// 1. Статус и время закрытия. Условие по статусу отсекает параллельное закрытие.
		updates := map[string]interface{}{
			"status":       models.WorkOrderStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   s.Now(),
		}
		if input.CauseCategory != "" {
			updates["cause_category"] = input.CauseCategory
			wo.CauseCategory = input.CauseCategory
		}
		if wo.StartedAt != nil {
			downtime := int(completedAt.Sub(*wo.StartedAt).Minutes())
			updates["downtime_minutes"] = downtime
			wo.DowntimeMinutes = &downtime
		}
		res := tx.Model(&models.WorkOrder{}).
			Where("id = ? AND company_id = ? AND status NOT IN ?", wo.ID, companyID, models.TerminalWorkOrderStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictError(op, "work_order", "заявка уже закрыта или отменена")
		}
		wo.Status = models.WorkOrderStatusCompleted
		wo.CompletedAt = &completedAt

		performerID := input.UserID
		if performerID == 0 && wo.AssignedToID != nil {
			performerID = *wo.AssignedToID
		}
		var actorID *uint
		if performerID != 0 {
			actorID = uintPtr(performerID)
		}

		// 2. Списание запчастей
		for i, item := range input.Parts {
			part, skipped, err := s.consumePart(tx, op, companyID, wo, i, item, actorID, result.BatchID)
			if err != nil {
				return err
			}
			if skipped != nil {
				result.SkippedItems = append(result.SkippedItems, *skipped)
				continue
			}
			result.ConsumedParts = append(result.ConsumedParts, *part)
		}

		// 3-4. Учет работы и запись в журнал
		maintenanceLog, err := s.recordLabor(tx, op, companyID, wo, performerID, input, completedAt)
		if err != nil {
			return err
		}
		result.Log = maintenanceLog

		// 5. Стоимость
		cost, err := s.Costs.RecalculateTx(tx, wo)
		if err != nil {
			return err
		}
		result.Cost = cost

		// 6. Плановое обслуживание
		if wo.PreventiveTaskID != nil {
			if err := s.reschedulePreventive(tx, op, companyID, *wo.PreventiveTaskID, completedAt); err != nil {
				return err
			}
		}

		if err := s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     actorID,
			Action:     ActionWorkOrderComplete,
			Resource:   "work_order",
			ResourceID: &wo.ID,
			Details: map[string]interface{}{
				"batch_id":       result.BatchID,
				"consumed":       len(result.ConsumedParts),
				"skipped":        len(result.SkippedItems),
				"total_cost":     cost.TotalCost.String(),
				"stock_policy":   s.StockPolicy,
				"cause_category": wo.CauseCategory,
			},
		}); err != nil {
			return err
		}

		result.WorkOrder = wo
		return nil
	})
	if err != nil {
		err = persistenceError(op, err)
		// Откат по нехватке остатка фиксируется в журнале вне транзакции
		if errors.Is(err, ErrInsufficientStock) {
			s.Audit.LogFailure(AuditContext{
				CompanyID:  companyID,
				UserID:     uintPtrOrNil(input.UserID),
				Action:     ActionWorkOrderComplete,
				Resource:   "work_order",
				ResourceID: uintPtr(workOrderID),
			}, err)
		}
		return nil, err
	}

	s.invalidateAnalytics(ctx, companyID)

	logger.WithCompany(companyID).WithFields(map[string]interface{}{
		"work_order_id": workOrderID,
		"batch_id":      result.BatchID,
		"skipped":       len(result.SkippedItems),
		"total_cost":    result.Cost.TotalCost.String(),
	}).Info("Заявка закрыта")

	dispatchAsync(s.Notifier, Event{
		Type:        EventWorkOrderCompleted,
		CompanyID:   companyID,
		RelatedID:   workOrderID,
		RelatedType: "work_order",
		Message: fmt.Sprintf("✅ Заявка #%d «%s» закрыта. Стоимость: %s",
			workOrderID, result.WorkOrder.Title, result.Cost.TotalCost.StringFixed(2)),
	})

	return result, nil
}

// consumePart списывает одну позицию. Возвращает пропущенную позицию, если остатка не хватает
// и действует политика skip.
func (s *WorkOrderService) consumePart(tx *gorm.DB, op string, companyID uint, wo *models.WorkOrder, index int, item PartConsumption, actorID *uint, batchID string) (*models.WorkOrderPart, *SkippedItem, error) {
	var part models.SparePart
	if err := tx.First(&part, item.SparePartID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			idx := index
			return nil, nil, &ServiceError{Kind: ErrNotFound, Op: op, Entity: "spare_part", LineItem: &idx, Message: "запчасть не найдена"}
		}
		return nil, nil, err
	}
	if part.CompanyID != companyID {
		idx := index
		return nil, nil, &ServiceError{Kind: ErrAuthorization, Op: op, Entity: "spare_part", LineItem: &idx, Message: "запчасть принадлежит другой компании"}
	}

	var stock models.Stock
	onHand := 0
	err := tx.Where("spare_part_id = ? AND location_id = ? AND company_id = ?", item.SparePartID, item.LocationID, companyID).
		First(&stock).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	decremented := false
	if err == nil {
		onHand = stock.QuantityOnHand
		// Атомарное списание: строка обновится только при достаточном остатке
		res := tx.Model(&models.Stock{}).
			Where("id = ? AND quantity_on_hand >= ?", stock.ID, item.Quantity).
			UpdateColumns(map[string]interface{}{
				"quantity_on_hand": gorm.Expr("quantity_on_hand - ?", item.Quantity),
				"updated_at":       s.Now(),
			})
		if res.Error != nil {
			return nil, nil, res.Error
		}
		decremented = res.RowsAffected == 1
	}

	if !decremented {
		message := fmt.Sprintf("недостаточно запчасти %q на складе: запрошено %d, в наличии %d",
			part.Name, item.Quantity, onHand)
		if s.StockPolicy == StockPolicyReject {
			return nil, nil, insufficientStockError(op, index, message)
		}
		return nil, &SkippedItem{
			Index:       index,
			SparePartID: item.SparePartID,
			LocationID:  item.LocationID,
			Requested:   item.Quantity,
			OnHand:      onHand,
			Reason:      message,
		}, nil
	}

	usage := models.WorkOrderPart{
		WorkOrderID:  wo.ID,
		SparePartID:  part.ID,
		LocationID:   item.LocationID,
		QuantityUsed: item.Quantity,
		UnitCost:     part.UnitCost,
		CompanyID:    companyID,
	}
	if err := tx.Create(&usage).Error; err != nil {
		return nil, nil, err
	}

	movement := models.InventoryTransaction{
		Type:        models.TransactionTypeConsume,
		SparePartID: part.ID,
		LocationID:  item.LocationID,
		Quantity:    -item.Quantity,
		UnitCost:    part.UnitCost,
		WorkOrderID: &wo.ID,
		BatchID:     batchID,
		UserID:      actorID,
		Notes:       fmt.Sprintf("Списание по заявке #%d", wo.ID),
		CompanyID:   companyID,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, nil, err
	}

	return &usage, nil, nil
}

// recordLabor считает работу по ставке и добавляет запись в журнал обслуживания
func (s *WorkOrderService) recordLabor(tx *gorm.DB, op string, companyID uint, wo *models.WorkOrder, performerID uint, input CompletionInput, completedAt time.Time) (*models.MaintenanceLog, error) {
	entry := &models.MaintenanceLog{
		WorkOrderID:   wo.ID,
		TimeStarted:   input.TimeStarted,
		TimeCompleted: input.TimeCompleted,
		BreakTime:     input.BreakTime,
		HoursWorked:   decimal.Zero,
		LaborCost:     decimal.Zero,
		Notes:         input.Notes,
		CompanyID:     companyID,
	}
	if performerID != 0 {
		entry.UserID = uintPtr(performerID)
	}

	if input.hasTimeTracking() {
		hours, completionHour, err := computeHoursWorked(input.TimeStarted, input.TimeCompleted, input.BreakTime)
		if err != nil {
			return nil, validationError(op, "time_completed", err.Error())
		}
		entry.HoursWorked = hours

		if performerID != 0 {
			role := input.Role
			if role == "" {
				var user models.User
				if err := tx.First(&user, performerID).Error; err != nil {
					return nil, lookupError(op, "user", err)
				}
				if user.CompanyID != companyID {
					return nil, authorizationError(op, "user")
				}
				role = user.Role
			}

			rate, err := s.Rates.ResolveRateTx(tx, companyID, performerID, role, completedAt)
			if err != nil {
				return nil, err
			}
			if rate != nil {
				amount, overtime := rate.RateFor(completionHour, s.OvertimeFromHour)
				entry.LaborCost = hours.Mul(amount).Round(2)
				entry.LaborRateID = &rate.ID
				entry.IsOvertime = overtime
			}
		}
	}

	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// reschedulePreventive переносит срок планового обслуживания от момента закрытия
func (s *WorkOrderService) reschedulePreventive(tx *gorm.DB, op string, companyID, taskID uint, completedAt time.Time) error {
	var task models.PreventiveTask
	if err := tx.First(&task, taskID).Error; err != nil {
		return lookupError(op, "preventive_task", err)
	}
	if task.CompanyID != companyID {
		return authorizationError(op, "preventive_task")
	}

	next := task.NextDueFrom(completedAt)
	task.LastCompletedAt = &completedAt
	task.NextDueDate = &next
	return tx.Save(&task).Error
}

// StartWorkOrder переводит заявку в работу
func (s *WorkOrderService) StartWorkOrder(ctx context.Context, companyID, workOrderID, userID uint) (*models.WorkOrder, error) {
	const op = "work_order.start"
	var wo *models.WorkOrder

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wo, err = loadOwnedWorkOrder(tx, op, companyID, workOrderID)
		if err != nil {
			return err
		}
		if !wo.CanTransitionTo(models.WorkOrderStatusInProgress) {
			return conflictError(op, "work_order", fmt.Sprintf("нельзя начать заявку в статусе %s", wo.Status))
		}

		now := s.Now()
		res := tx.Model(&models.WorkOrder{}).
			Where("id = ? AND company_id = ? AND status = ?", wo.ID, companyID, models.WorkOrderStatusOpen).
			Updates(map[string]interface{}{
				"status":     models.WorkOrderStatusInProgress,
				"started_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictError(op, "work_order", "статус заявки изменился")
		}
		wo.Status = models.WorkOrderStatusInProgress
		wo.StartedAt = &now

		var actorID *uint
		if userID != 0 {
			actorID = uintPtr(userID)
		}
		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     actorID,
			Action:     ActionWorkOrderStart,
			Resource:   "work_order",
			ResourceID: &wo.ID,
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return wo, nil
}

// CancelWorkOrder отменяет заявку и ее активные слоты планирования
func (s *WorkOrderService) CancelWorkOrder(ctx context.Context, companyID, workOrderID, userID uint, reason string) (*models.WorkOrder, error) {
	const op = "work_order.cancel"
	var wo *models.WorkOrder

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wo, err = loadOwnedWorkOrder(tx, op, companyID, workOrderID)
		if err != nil {
			return err
		}
		if wo.IsTerminal() {
			return conflictError(op, "work_order", "заявка уже закрыта или отменена")
		}

		res := tx.Model(&models.WorkOrder{}).
			Where("id = ? AND company_id = ? AND status NOT IN ?", wo.ID, companyID, models.TerminalWorkOrderStatuses).
			Updates(map[string]interface{}{
				"status":     models.WorkOrderStatusCancelled,
				"updated_at": s.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictError(op, "work_order", "заявка уже закрыта или отменена")
		}
		wo.Status = models.WorkOrderStatusCancelled

		if err := tx.Model(&models.PlanningSlot{}).
			Where("work_order_id = ? AND status IN ?", wo.ID, models.ActiveSlotStatuses).
			Update("status", models.SlotStatusCancelled).Error; err != nil {
			return err
		}

		var actorID *uint
		if userID != 0 {
			actorID = uintPtr(userID)
		}
		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     actorID,
			Action:     ActionWorkOrderCancel,
			Resource:   "work_order",
			ResourceID: &wo.ID,
			Details:    map[string]interface{}{"reason": reason},
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	dispatchAsync(s.Notifier, Event{
		Type:        EventWorkOrderCancelled,
		CompanyID:   companyID,
		RelatedID:   workOrderID,
		RelatedType: "work_order",
		Message:     fmt.Sprintf("❌ Заявка #%d «%s» отменена", workOrderID, wo.Title),
	})
	return wo, nil
}

// ExternalServiceInput работы подрядчика
type ExternalServiceInput struct {
	VendorName    string          `json:"vendor_name" binding:"required"`
	Description   string          `json:"description"`
	InvoiceNumber string          `json:"invoice_number"`
	Cost          decimal.Decimal `json:"cost"`
}

// AddExternalService добавляет работы подрядчика к открытой заявке
func (s *WorkOrderService) AddExternalService(ctx context.Context, companyID, workOrderID uint, input ExternalServiceInput) (*models.ExternalService, error) {
	const op = "work_order.external_service"

	if input.Cost.IsNegative() {
		return nil, validationError(op, "cost", "стоимость не может быть отрицательной")
	}

	record := &models.ExternalService{
		WorkOrderID:   workOrderID,
		VendorName:    input.VendorName,
		Description:   input.Description,
		InvoiceNumber: input.InvoiceNumber,
		Cost:          input.Cost,
		CompanyID:     companyID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wo, err := loadOwnedWorkOrder(tx, op, companyID, workOrderID)
		if err != nil {
			return err
		}
		if wo.IsTerminal() {
			return conflictError(op, "work_order", "заявка уже закрыта или отменена")
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return record, nil
}

// invalidateAnalytics сбрасывает кэш аналитики компании
func (s *WorkOrderService) invalidateAnalytics(ctx context.Context, companyID uint) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateAnalytics(ctx, companyID); err != nil {
		logger.WithCompany(companyID).WithError(err).Warn("Не удалось сбросить кэш аналитики")
	}
}
