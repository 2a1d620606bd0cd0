package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"backend_cmms/models"
)

// PlanningService управляет слотами планирования и их проекцией на заявки
type PlanningService struct {
	DB       *gorm.DB
	Audit    *AuditService
	Notifier Dispatcher
}

// NewPlanningService создает новый экземпляр PlanningService
func NewPlanningService(db *gorm.DB, audit *AuditService, notifier Dispatcher) *PlanningService {
	return &PlanningService{DB: db, Audit: audit, Notifier: notifier}
}

// SlotInput данные нового слота
type SlotInput struct {
	WorkOrderID  uint      `json:"work_order_id" binding:"required"`
	TechnicianID uint      `json:"technician_id" binding:"required"`
	StartAt      time.Time `json:"start_at" binding:"required"`
	EndAt        time.Time `json:"end_at" binding:"required"`
	Source       string    `json:"source"`
	Notes        string    `json:"notes"`
	ActorID      *uint     `json:"-"`
}

// SlotUpdate изменяемые поля слота, nil - без изменений
type SlotUpdate struct {
	TechnicianID *uint      `json:"technician_id"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	Status       *string    `json:"status"`
	Notes        *string    `json:"notes"`
	ActorID      *uint      `json:"-"`
}

// SlotWarnings пересечения, которые не блокируют запись слота
type SlotWarnings struct {
	OverlappingSlots []models.PlanningSlot    `json:"overlapping_slots"`
	Shutdowns        []models.PlannedShutdown `json:"shutdowns"`
}

// SlotResult слот после записи и предупреждения по нему
type SlotResult struct {
	Slot     *models.PlanningSlot `json:"slot"`
	Warnings SlotWarnings         `json:"warnings"`
}

// SlotOverlap двойное назначение техника
type SlotOverlap struct {
	TechnicianID   uint      `json:"technician_id"`
	FirstSlotID    uint      `json:"first_slot_id"`
	SecondSlotID   uint      `json:"second_slot_id"`
	OverlapStart   time.Time `json:"overlap_start"`
	OverlapEnd     time.Time `json:"overlap_end"`
	OverlapMinutes int       `json:"overlap_minutes"`
}

// mirrorSlot переносит плановое время слота на заявку
func mirrorSlot(tx *gorm.DB, slot *models.PlanningSlot) error {
	return tx.Model(&models.WorkOrder{}).Where("id = ?", slot.WorkOrderID).
		Updates(map[string]interface{}{
			"planned_start_at":         slot.StartAt,
			"planned_end_at":           slot.EndAt,
			"planned_duration_minutes": slot.ComputeDuration(),
		}).Error
}

// clearMirror сбрасывает плановое время заявки
func clearMirror(tx *gorm.DB, workOrderID uint) error {
	return tx.Model(&models.WorkOrder{}).Where("id = ?", workOrderID).
		Updates(map[string]interface{}{
			"planned_start_at":         nil,
			"planned_end_at":           nil,
			"planned_duration_minutes": nil,
		}).Error
}

// syncMirror проецирует на заявку самый поздний из оставшихся активных слотов.
// Если активных слотов нет, плановое время заявки сбрасывается.
func syncMirror(tx *gorm.DB, workOrderID uint) error {
	var slots []models.PlanningSlot
	if err := tx.Where("work_order_id = ? AND status IN ?", workOrderID, models.ActiveSlotStatuses).
		Order("start_at DESC, id DESC").
		Limit(1).
		Find(&slots).Error; err != nil {
		return err
	}
	if len(slots) == 0 {
		return clearMirror(tx, workOrderID)
	}
	return mirrorSlot(tx, &slots[0])
}

// loadTechnician проверяет, что техник существует и работает в той же компании
func loadTechnician(tx *gorm.DB, op string, companyID, technicianID uint) (*models.User, error) {
	var technician models.User
	if err := tx.First(&technician, technicianID).Error; err != nil {
		return nil, lookupError(op, "technician", err)
	}
	if technician.CompanyID != companyID {
		return nil, authorizationError(op, "technician")
	}
	return &technician, nil
}

// CreateSlot создает слот и проецирует его время на заявку
func (s *PlanningService) CreateSlot(ctx context.Context, companyID uint, input SlotInput) (*SlotResult, error) {
	const op = "planning_slot.create"

	if !input.EndAt.After(input.StartAt) {
		return nil, validationError(op, "end_at", "окончание слота должно быть позже начала")
	}
	source := input.Source
	if source == "" {
		source = models.SlotSourceManual
	}
	if !models.IsValidSlotSource(source) {
		return nil, validationError(op, "source", fmt.Sprintf("неизвестный источник слота: %s", source))
	}

	slot := &models.PlanningSlot{
		WorkOrderID:  input.WorkOrderID,
		TechnicianID: input.TechnicianID,
		StartAt:      input.StartAt,
		EndAt:        input.EndAt,
		Status:       models.SlotStatusPlanned,
		Source:       source,
		Notes:        input.Notes,
		CompanyID:    companyID,
	}
	result := &SlotResult{Slot: slot}
	var technician *models.User
	var wo *models.WorkOrder

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wo, err = loadOwnedWorkOrder(tx, op, companyID, input.WorkOrderID)
		if err != nil {
			return err
		}
		if wo.IsTerminal() {
			return conflictError(op, "work_order", "нельзя планировать закрытую или отмененную заявку")
		}
		technician, err = loadTechnician(tx, op, wo.CompanyID, input.TechnicianID)
		if err != nil {
			return err
		}

		if err := tx.Create(slot).Error; err != nil {
			return err
		}
		if err := mirrorSlot(tx, slot); err != nil {
			return err
		}

		result.Warnings, err = s.collectWarnings(tx, wo, slot)
		if err != nil {
			return err
		}

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     input.ActorID,
			Action:     ActionSlotCreate,
			Resource:   "planning_slot",
			ResourceID: &slot.ID,
			NewValues:  slot,
			Details:    map[string]interface{}{"overlaps": len(result.Warnings.OverlappingSlots)},
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	dispatchAsync(s.Notifier, Event{
		Type:        EventSlotAssigned,
		CompanyID:   companyID,
		RelatedID:   slot.ID,
		RelatedType: "planning_slot",
		Recipient:   technician.TelegramID,
		Message: fmt.Sprintf("🗓 Вам назначена заявка #%d «%s»: %s - %s",
			wo.ID, wo.Title, slot.StartAt.Format("02.01.2006 15:04"), slot.EndAt.Format("15:04")),
	})

	return result, nil
}

// UpdateSlot изменяет слот и повторно проецирует его время на заявку.
// После отмены слота на заявку проецируется оставшийся активный слот, если он есть.
func (s *PlanningService) UpdateSlot(ctx context.Context, companyID, slotID uint, input SlotUpdate) (*SlotResult, error) {
	const op = "planning_slot.update"
	result := &SlotResult{}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.PlanningSlot
		if err := tx.First(&slot, slotID).Error; err != nil {
			return lookupError(op, "planning_slot", err)
		}
		if slot.CompanyID != companyID {
			return authorizationError(op, "planning_slot")
		}
		if !slot.IsActive() {
			return conflictError(op, "planning_slot", fmt.Sprintf("слот в статусе %s нельзя изменить", slot.Status))
		}
		oldValues := slot

		wo, err := loadOwnedWorkOrder(tx, op, companyID, slot.WorkOrderID)
		if err != nil {
			return err
		}

		timesChanged := false
		if input.StartAt != nil && !input.StartAt.Equal(slot.StartAt) {
			slot.StartAt = *input.StartAt
			timesChanged = true
		}
		if input.EndAt != nil && !input.EndAt.Equal(slot.EndAt) {
			slot.EndAt = *input.EndAt
			timesChanged = true
		}
		if !slot.EndAt.After(slot.StartAt) {
			return validationError(op, "end_at", "окончание слота должно быть позже начала")
		}
		if timesChanged && wo.IsTerminal() {
			return conflictError(op, "work_order", "нельзя перепланировать закрытую или отмененную заявку")
		}

		if input.TechnicianID != nil && *input.TechnicianID != slot.TechnicianID {
			if _, err := loadTechnician(tx, op, companyID, *input.TechnicianID); err != nil {
				return err
			}
			slot.TechnicianID = *input.TechnicianID
		}
		if input.Status != nil {
			if !models.IsValidSlotStatus(*input.Status) {
				return validationError(op, "status", fmt.Sprintf("неизвестный статус слота: %s", *input.Status))
			}
			slot.Status = *input.Status
		}
		if input.Notes != nil {
			slot.Notes = *input.Notes
		}

		// duration_minutes пересчитывается хуком BeforeSave
		if err := tx.Save(&slot).Error; err != nil {
			return err
		}

		if slot.Status == models.SlotStatusCancelled {
			// У закрытой заявки плановые поля остаются как запись последнего плана
			if !wo.IsTerminal() {
				if err := syncMirror(tx, slot.WorkOrderID); err != nil {
					return err
				}
			}
		} else if timesChanged || oldValues.Status != slot.Status {
			if err := mirrorSlot(tx, &slot); err != nil {
				return err
			}
		}

		if slot.IsActive() {
			result.Warnings, err = s.collectWarnings(tx, wo, &slot)
			if err != nil {
				return err
			}
		}
		result.Slot = &slot

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     input.ActorID,
			Action:     ActionSlotUpdate,
			Resource:   "planning_slot",
			ResourceID: &slot.ID,
			OldValues:  oldValues,
			NewValues:  slot,
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return result, nil
}

// DeleteSlot удаляет слот заявки, которая еще не закрыта и не отменена.
// Плановое время заявки берется из оставшегося активного слота либо сбрасывается.
func (s *PlanningService) DeleteSlot(ctx context.Context, companyID, slotID uint, actorID *uint) error {
	const op = "planning_slot.delete"

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.PlanningSlot
		if err := tx.First(&slot, slotID).Error; err != nil {
			return lookupError(op, "planning_slot", err)
		}
		if slot.CompanyID != companyID {
			return authorizationError(op, "planning_slot")
		}

		wo, err := loadOwnedWorkOrder(tx, op, companyID, slot.WorkOrderID)
		if err != nil {
			return err
		}
		if wo.IsTerminal() {
			return conflictError(op, "work_order", fmt.Sprintf("нельзя удалить слот заявки в статусе %s", wo.Status))
		}

		if err := tx.Delete(&slot).Error; err != nil {
			return err
		}
		if err := syncMirror(tx, slot.WorkOrderID); err != nil {
			return err
		}

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     actorID,
			Action:     ActionSlotDelete,
			Resource:   "planning_slot",
			ResourceID: &slot.ID,
			OldValues:  slot,
		})
	})
	return persistenceError(op, err)
}

// collectWarnings ищет пересечения слота с другими слотами техника и плановыми остановками
func (s *PlanningService) collectWarnings(tx *gorm.DB, wo *models.WorkOrder, slot *models.PlanningSlot) (SlotWarnings, error) {
	warnings := SlotWarnings{
		OverlappingSlots: []models.PlanningSlot{},
		Shutdowns:        []models.PlannedShutdown{},
	}

	if err := tx.Where("company_id = ? AND technician_id = ? AND id <> ? AND status IN ? AND start_at < ? AND end_at > ?",
		slot.CompanyID, slot.TechnicianID, slot.ID, models.ActiveSlotStatuses, slot.EndAt, slot.StartAt).
		Order("start_at, id").
		Find(&warnings.OverlappingSlots).Error; err != nil {
		return warnings, err
	}

	if wo.MachineID == nil {
		return warnings, nil
	}

	var machine models.Machine
	if err := tx.First(&machine, *wo.MachineID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return warnings, nil
		}
		return warnings, err
	}

	query := tx.Where("company_id = ? AND start_at < ? AND end_at > ?", slot.CompanyID, slot.EndAt, slot.StartAt)
	if machine.LocationID != nil {
		query = query.Where("machine_id = ? OR location_id = ?", machine.ID, *machine.LocationID)
	} else {
		query = query.Where("machine_id = ?", machine.ID)
	}
	if err := query.Order("start_at, id").Find(&warnings.Shutdowns).Error; err != nil {
		return warnings, err
	}

	return warnings, nil
}

// FindSlotOverlaps находит двойные назначения техников в интервале
func (s *PlanningService) FindSlotOverlaps(ctx context.Context, companyID uint, technicianID *uint, from, to time.Time) ([]SlotOverlap, error) {
	const op = "planning_slot.overlaps"

	if !to.After(from) {
		return nil, validationError(op, "date_to", "конец интервала должен быть позже начала")
	}

	query := s.DB.WithContext(ctx).
		Where("company_id = ? AND status IN ? AND start_at < ? AND end_at > ?", companyID, models.ActiveSlotStatuses, to, from)
	if technicianID != nil {
		query = query.Where("technician_id = ?", *technicianID)
	}

	var slots []models.PlanningSlot
	if err := query.Order("technician_id, start_at, id").Find(&slots).Error; err != nil {
		return nil, persistenceError(op, err)
	}

	return detectOverlaps(slots), nil
}

// detectOverlaps ищет попарные пересечения слотов одного техника
func detectOverlaps(slots []models.PlanningSlot) []SlotOverlap {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].TechnicianID != slots[j].TechnicianID {
			return slots[i].TechnicianID < slots[j].TechnicianID
		}
		return slots[i].StartAt.Before(slots[j].StartAt)
	})

	overlaps := []SlotOverlap{}
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if slots[j].TechnicianID != slots[i].TechnicianID || !slots[j].StartAt.Before(slots[i].EndAt) {
				break
			}
			start := slots[j].StartAt
			end := slots[i].EndAt
			if slots[j].EndAt.Before(end) {
				end = slots[j].EndAt
			}
			overlaps = append(overlaps, SlotOverlap{
				TechnicianID:   slots[i].TechnicianID,
				FirstSlotID:    slots[i].ID,
				SecondSlotID:   slots[j].ID,
				OverlapStart:   start,
				OverlapEnd:     end,
				OverlapMinutes: int(end.Sub(start).Minutes()),
			})
		}
	}
	return overlaps
}
