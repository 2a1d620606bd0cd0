package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// ProductionService ведет производственные прогоны и простои
type ProductionService struct {
	DB    *gorm.DB
	Audit *AuditService
	Cache *CacheService
	Now   func() time.Time
}

// NewProductionService создает новый экземпляр ProductionService
func NewProductionService(db *gorm.DB, audit *AuditService, cache *CacheService) *ProductionService {
	return &ProductionService{DB: db, Audit: audit, Cache: cache, Now: time.Now}
}

// StartRunInput данные начала прогона
type StartRunInput struct {
	MachineID       uint       `json:"machine_id" binding:"required"`
	Product         string     `json:"product"`
	Shift           string     `json:"shift"`
	StartTime       *time.Time `json:"start_time"`
	PlannedQuantity int        `json:"planned_quantity"`
}

// EndRunInput итоги прогона
type EndRunInput struct {
	EndTime        *time.Time `json:"end_time"`
	ActualQuantity int        `json:"actual_quantity"`
	GoodQuantity   int        `json:"good_quantity"`
	UserID         *uint      `json:"-"`
}

// StartDowntimeInput данные начала простоя
type StartDowntimeInput struct {
	ProductionRunID uint       `json:"production_run_id" binding:"required"`
	CategoryID      uint       `json:"category_id" binding:"required"`
	StartTime       *time.Time `json:"start_time"`
	Reason          string     `json:"reason"`
}

// OeeFigures показатели OEE прогона в процентах
type OeeFigures struct {
	AvailabilityPct float64 `json:"availability_pct"`
	PerformancePct  float64 `json:"performance_pct"`
	QualityPct      float64 `json:"quality_pct"`
	OeePct          float64 `json:"oee_pct"`
}

func clampPct(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeOee считает показатели прогона.
// Плановые простои уменьшают плановое время, внеплановые уменьшают время работы.
func ComputeOee(runMinutes, plannedStopMinutes, unplannedStopMinutes float64, plannedQty, actualQty, goodQty int) OeeFigures {
	plannedProduction := runMinutes - plannedStopMinutes
	operating := plannedProduction - unplannedStopMinutes

	var availability, performance, quality float64
	if plannedProduction > 0 {
		availability = operating / plannedProduction * 100
	}
	if plannedProduction > 0 && plannedQty > 0 && operating > 0 {
		expected := float64(plannedQty) * operating / plannedProduction
		performance = float64(actualQty) / expected * 100
	}
	if actualQty > 0 {
		quality = float64(goodQty) / float64(actualQty) * 100
	}

	// Итоговый OEE считается из округленных составляющих
	availability = round2(clampPct(availability))
	performance = round2(clampPct(performance))
	quality = round2(clampPct(quality))

	return OeeFigures{
		AvailabilityPct: availability,
		PerformancePct:  performance,
		QualityPct:      quality,
		OeePct:          round2(availability * performance * quality / 10000),
	}
}

// StartRun открывает прогон на станке. На станке может идти один прогон.
func (s *ProductionService) StartRun(ctx context.Context, companyID uint, input StartRunInput) (*models.ProductionRun, error) {
	const op = "production_run.start"

	if input.PlannedQuantity < 0 {
		return nil, validationError(op, "planned_quantity", "плановое количество не может быть отрицательным")
	}
	start := s.Now()
	if input.StartTime != nil {
		start = *input.StartTime
	}

	run := &models.ProductionRun{
		MachineID:       input.MachineID,
		Product:         input.Product,
		Shift:           input.Shift,
		StartTime:       start,
		PlannedQuantity: input.PlannedQuantity,
		CompanyID:       companyID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machine models.Machine
		if err := tx.First(&machine, input.MachineID).Error; err != nil {
			return lookupError(op, "machine", err)
		}
		if machine.CompanyID != companyID {
			return authorizationError(op, "machine")
		}

		var active int64
		if err := tx.Model(&models.ProductionRun{}).
			Where("machine_id = ? AND end_time IS NULL", machine.ID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return conflictError(op, "production_run", "на станке уже идет прогон")
		}

		return tx.Create(run).Error
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return run, nil
}

// loadOwnedRun загружает прогон с проверкой компании
func loadOwnedRun(tx *gorm.DB, op string, companyID, runID uint) (*models.ProductionRun, error) {
	var run models.ProductionRun
	if err := tx.First(&run, runID).Error; err != nil {
		return nil, lookupError(op, "production_run", err)
	}
	if run.CompanyID != companyID {
		return nil, authorizationError(op, "production_run")
	}
	return &run, nil
}

// EndRun закрывает прогон, закрывает его открытые простои и фиксирует OEE
func (s *ProductionService) EndRun(ctx context.Context, companyID, runID uint, input EndRunInput) (*models.ProductionRun, error) {
	const op = "production_run.end"

	if input.ActualQuantity < 0 || input.GoodQuantity < 0 {
		return nil, validationError(op, "actual_quantity", "количество не может быть отрицательным")
	}
	if input.GoodQuantity > input.ActualQuantity {
		return nil, validationError(op, "good_quantity", "годных изделий больше, чем выпущено")
	}
	end := s.Now()
	if input.EndTime != nil {
		end = *input.EndTime
	}

	var run *models.ProductionRun
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		run, err = loadOwnedRun(tx, op, companyID, runID)
		if err != nil {
			return err
		}
		if run.IsCompleted() {
			return conflictError(op, "production_run", "прогон уже завершен")
		}
		if end.Before(run.StartTime) {
			return validationError(op, "end_time", "окончание прогона раньше начала")
		}
		oldValues := *run

		var downtimes []models.Downtime
		if err := tx.Preload("Category").Where("production_run_id = ?", run.ID).Find(&downtimes).Error; err != nil {
			return err
		}

		plannedStop, unplannedStop := 0, 0
		for i := range downtimes {
			dt := &downtimes[i]
			if dt.IsActive() {
				closedAt := end
				dt.EndTime = &closedAt
				dt.DurationMinutes = dt.ComputeDuration()
				if err := tx.Model(dt).Select("end_time", "duration_minutes", "updated_at").Updates(dt).Error; err != nil {
					return err
				}
			}
			if dt.Category != nil && dt.Category.IsPlanned {
				plannedStop += dt.ComputeDuration()
			} else {
				unplannedStop += dt.ComputeDuration()
			}
		}

		figures := ComputeOee(end.Sub(run.StartTime).Minutes(), float64(plannedStop), float64(unplannedStop),
			run.PlannedQuantity, input.ActualQuantity, input.GoodQuantity)

		result := tx.Model(&models.ProductionRun{}).
			Where("id = ? AND end_time IS NULL", run.ID).
			Updates(map[string]interface{}{
				"end_time":         end,
				"actual_quantity":  input.ActualQuantity,
				"good_quantity":    input.GoodQuantity,
				"availability_pct": figures.AvailabilityPct,
				"performance_pct":  figures.PerformancePct,
				"quality_pct":      figures.QualityPct,
				"oee_pct":          figures.OeePct,
				"updated_at":       s.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictError(op, "production_run", "прогон уже завершен")
		}

		run.EndTime = &end
		run.ActualQuantity = input.ActualQuantity
		run.GoodQuantity = input.GoodQuantity
		run.AvailabilityPct = figures.AvailabilityPct
		run.PerformancePct = figures.PerformancePct
		run.QualityPct = figures.QualityPct
		run.OeePct = figures.OeePct
		run.Downtimes = downtimes

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     input.UserID,
			Action:     ActionProductionRunEnd,
			Resource:   "production_run",
			ResourceID: &run.ID,
			OldValues:  oldValues,
			NewValues:  figures,
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	if err := s.Cache.InvalidateAnalytics(ctx, companyID); err != nil {
		logger.WithCompany(companyID).WithError(err).Warn("Не удалось сбросить кэш аналитики")
	}
	logger.WithCompany(companyID).WithFields(map[string]interface{}{
		"production_run_id": run.ID,
		"oee_pct":           run.OeePct,
	}).Info("Прогон завершен")

	return run, nil
}

// StartDowntime открывает простой в рамках идущего прогона
func (s *ProductionService) StartDowntime(ctx context.Context, companyID uint, input StartDowntimeInput) (*models.Downtime, error) {
	const op = "downtime.start"

	start := s.Now()
	if input.StartTime != nil {
		start = *input.StartTime
	}

	downtime := &models.Downtime{
		ProductionRunID: input.ProductionRunID,
		CategoryID:      input.CategoryID,
		StartTime:       start,
		Reason:          input.Reason,
		CompanyID:       companyID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run, err := loadOwnedRun(tx, op, companyID, input.ProductionRunID)
		if err != nil {
			return err
		}
		if run.IsCompleted() {
			return conflictError(op, "production_run", "прогон уже завершен")
		}
		if start.Before(run.StartTime) {
			return validationError(op, "start_time", "простой начинается раньше прогона")
		}

		var category models.DowntimeCategory
		if err := tx.First(&category, input.CategoryID).Error; err != nil {
			return lookupError(op, "downtime_category", err)
		}
		if category.CompanyID != companyID {
			return authorizationError(op, "downtime_category")
		}

		if err := tx.Create(downtime).Error; err != nil {
			return err
		}
		downtime.Category = &category
		return nil
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return downtime, nil
}

// EndDowntime закрывает простой, длительность пересчитывается по границам
func (s *ProductionService) EndDowntime(ctx context.Context, companyID, downtimeID uint, endTime *time.Time) (*models.Downtime, error) {
	const op = "downtime.end"

	end := s.Now()
	if endTime != nil {
		end = *endTime
	}

	var downtime models.Downtime
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&downtime, downtimeID).Error; err != nil {
			return lookupError(op, "downtime", err)
		}
		if downtime.CompanyID != companyID {
			return authorizationError(op, "downtime")
		}
		if !downtime.IsActive() {
			return conflictError(op, "downtime", "простой уже закрыт")
		}
		if end.Before(downtime.StartTime) {
			return validationError(op, "end_time", fmt.Sprintf("окончание простоя раньше начала (%s)", downtime.StartTime.Format(time.RFC3339)))
		}

		downtime.EndTime = &end
		downtime.DurationMinutes = downtime.ComputeDuration()
		return tx.Model(&downtime).Select("end_time", "duration_minutes", "updated_at").Updates(&downtime).Error
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	if err := s.Cache.InvalidateAnalytics(ctx, companyID); err != nil {
		logger.WithCompany(companyID).WithError(err).Warn("Не удалось сбросить кэш аналитики")
	}
	return &downtime, nil
}
