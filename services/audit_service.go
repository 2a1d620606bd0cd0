package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// AuditAction типы действий для аудита
type AuditAction string

const (
	// Заявки
	ActionWorkOrderStart    AuditAction = "work_order.start"
	ActionWorkOrderComplete AuditAction = "work_order.complete"
	ActionWorkOrderCancel   AuditAction = "work_order.cancel"

	// Планирование
	ActionSlotCreate AuditAction = "planning_slot.create"
	ActionSlotUpdate AuditAction = "planning_slot.update"
	ActionSlotDelete AuditAction = "planning_slot.delete"

	// Ставки и склад
	ActionLaborRateCreate AuditAction = "labor_rate.create"
	ActionStockReceive    AuditAction = "stock.receive"

	// Производство
	ActionProductionRunEnd AuditAction = "production_run.end"

	// Плановое обслуживание
	ActionPreventiveGenerate AuditAction = "preventive_task.generate"
)

// AuditService сервис для аудит логов
type AuditService struct {
	db *gorm.DB
}

// NewAuditService создает новый сервис аудита
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditContext контекст для аудита
type AuditContext struct {
	CompanyID  uint
	UserID     *uint
	Action     AuditAction
	Resource   string
	ResourceID *uint
	OldValues  interface{}
	NewValues  interface{}
	Details    map[string]interface{}
	Success    bool
	ErrorMsg   string
}

// build собирает запись журнала из контекста
func (ctx AuditContext) build() *models.AuditLog {
	auditLog := &models.AuditLog{
		CompanyID:  ctx.CompanyID,
		UserID:     ctx.UserID,
		Action:     string(ctx.Action),
		Resource:   ctx.Resource,
		ResourceID: ctx.ResourceID,
		Success:    ctx.Success,
		ErrorMsg:   ctx.ErrorMsg,
		CreatedAt:  time.Now(),
	}

	// Сериализуем детали
	if ctx.Details != nil {
		if detailsJSON, err := json.Marshal(ctx.Details); err == nil {
			auditLog.Details = string(detailsJSON)
		}
	}

	// Сериализуем старые значения
	if ctx.OldValues != nil {
		if oldJSON, err := json.Marshal(ctx.OldValues); err == nil {
			auditLog.OldValues = string(oldJSON)
		}
	}

	// Сериализуем новые значения
	if ctx.NewValues != nil {
		if newJSON, err := json.Marshal(ctx.NewValues); err == nil {
			auditLog.NewValues = string(newJSON)
		}
	}

	return auditLog
}

// LogTx записывает успешное действие в рамках переданной транзакции
func (as *AuditService) LogTx(tx *gorm.DB, ctx AuditContext) error {
	ctx.Success = true
	if err := tx.Create(ctx.build()).Error; err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

// LogFailure записывает неуспешное действие вне транзакции
func (as *AuditService) LogFailure(ctx AuditContext, err error) {
	ctx.Success = false
	ctx.ErrorMsg = err.Error()
	if createErr := as.db.Create(ctx.build()).Error; createErr != nil {
		logger.WithCompany(ctx.CompanyID).WithError(createErr).Warn("Не удалось записать аудит")
	}
}

// AuditFilters фильтры для поиска аудит логов
type AuditFilters struct {
	UserID     *uint
	Action     string
	Resource   string
	ResourceID *uint
	Success    *bool
	StartDate  time.Time
	EndDate    time.Time
	Limit      int
	Offset     int
}

// GetAuditLogs получает аудит логи с фильтрацией
func (as *AuditService) GetAuditLogs(companyID uint, filters AuditFilters) ([]models.AuditLog, error) {
	query := as.db.Where("company_id = ?", companyID)

	// Применяем фильтры
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	if !filters.StartDate.IsZero() {
		query = query.Where("created_at >= ?", filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		query = query.Where("created_at <= ?", filters.EndDate)
	}

	// Сортировка и пагинация
	query = query.Order("created_at DESC, id DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения аудит логов: %w", err)
	}
	return logs, nil
}

func uintPtr(v uint) *uint {
	return &v
}

// uintPtrOrNil возвращает nil для нулевого идентификатора
func uintPtrOrNil(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
