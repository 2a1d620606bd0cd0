package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_cmms/models"
)

// CostService сводит стоимость заявки из связанных записей
type CostService struct {
	DB *gorm.DB
}

// NewCostService создает новый экземпляр CostService
func NewCostService(db *gorm.DB) *CostService {
	return &CostService{DB: db}
}

// CostBreakdown компоненты стоимости заявки до сохранения
type CostBreakdown struct {
	LaborCost           decimal.Decimal `json:"labor_cost"`
	PartsCost           decimal.Decimal `json:"parts_cost"`
	DowntimeCost        decimal.Decimal `json:"downtime_cost"`
	ExternalServiceCost decimal.Decimal `json:"external_service_cost"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	DowntimeHours       decimal.Decimal `json:"downtime_hours"`
}

// Compute считает компоненты стоимости по записям заявки, ничего не сохраняя
func (s *CostService) Compute(tx *gorm.DB, wo *models.WorkOrder) (*CostBreakdown, error) {
	b := &CostBreakdown{
		LaborCost:           decimal.Zero,
		PartsCost:           decimal.Zero,
		DowntimeCost:        decimal.Zero,
		ExternalServiceCost: decimal.Zero,
		DowntimeHours:       decimal.Zero,
	}

	// Работа: сумма по журналу
	var logs []models.MaintenanceLog
	if err := tx.Where("work_order_id = ?", wo.ID).Find(&logs).Error; err != nil {
		return nil, err
	}
	for _, l := range logs {
		b.LaborCost = b.LaborCost.Add(l.LaborCost)
	}

	// Запчасти: количество на цену
	var parts []models.WorkOrderPart
	if err := tx.Where("work_order_id = ?", wo.ID).Find(&parts).Error; err != nil {
		return nil, err
	}
	for i := range parts {
		b.PartsCost = b.PartsCost.Add(parts[i].LineCost())
	}

	// Простой: часы между началом и окончанием на стоимость часа станка
	if wo.StartedAt != nil && wo.CompletedAt != nil && wo.MachineID != nil && wo.CompletedAt.After(*wo.StartedAt) {
		var machine models.Machine
		err := tx.First(&machine, *wo.MachineID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			seconds := int64(wo.CompletedAt.Sub(*wo.StartedAt) / time.Second)
			b.DowntimeHours = decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600))
			b.DowntimeCost = b.DowntimeHours.Mul(machine.HourlyProductionValue).Round(2)
		}
	}

	// Подрядчики
	var services []models.ExternalService
	if err := tx.Where("work_order_id = ?", wo.ID).Find(&services).Error; err != nil {
		return nil, err
	}
	for _, es := range services {
		b.ExternalServiceCost = b.ExternalServiceCost.Add(es.Cost)
	}

	b.TotalCost = b.LaborCost.Add(b.PartsCost).Add(b.DowntimeCost).Add(b.ExternalServiceCost)
	return b, nil
}

// RecalculateTx пересчитывает и сохраняет стоимость заявки. Запись создается при первом вызове.
func (s *CostService) RecalculateTx(tx *gorm.DB, wo *models.WorkOrder) (*models.WorkOrderCost, error) {
	b, err := s.Compute(tx, wo)
	if err != nil {
		return nil, err
	}

	var cost models.WorkOrderCost
	err = tx.Where("work_order_id = ?", wo.ID).First(&cost).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cost.WorkOrderID = wo.ID
	cost.CompanyID = wo.CompanyID
	cost.LaborCost = b.LaborCost
	cost.PartsCost = b.PartsCost
	cost.DowntimeCost = b.DowntimeCost
	cost.ExternalServiceCost = b.ExternalServiceCost

	// total_cost выставляется хуком BeforeSave
	if err := tx.Save(&cost).Error; err != nil {
		return nil, err
	}
	return &cost, nil
}

// GetCost возвращает стоимость заявки. Для незакрытой заявки считает предварительную оценку.
func (s *CostService) GetCost(ctx context.Context, companyID, workOrderID uint) (*CostBreakdown, error) {
	const op = "work_order.cost"
	db := s.DB.WithContext(ctx)

	var wo models.WorkOrder
	if err := db.First(&wo, workOrderID).Error; err != nil {
		return nil, lookupError(op, "work_order", err)
	}
	if wo.CompanyID != companyID {
		return nil, authorizationError(op, "work_order")
	}

	var stored models.WorkOrderCost
	err := db.Where("work_order_id = ?", wo.ID).First(&stored).Error
	if err == nil && wo.IsTerminal() {
		b, err := s.Compute(db, &wo)
		if err != nil {
			return nil, persistenceError(op, err)
		}
		return &CostBreakdown{
			LaborCost:           stored.LaborCost,
			PartsCost:           stored.PartsCost,
			DowntimeCost:        stored.DowntimeCost,
			ExternalServiceCost: stored.ExternalServiceCost,
			TotalCost:           stored.TotalCost,
			DowntimeHours:       b.DowntimeHours,
		}, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceError(op, err)
	}

	b, err := s.Compute(db, &wo)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return b, nil
}
