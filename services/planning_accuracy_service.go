package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"backend_cmms/models"
)

// OnTimeToleranceMinutes допустимое отклонение фактического начала от планового
const OnTimeToleranceMinutes = 15

// minDurationAccuracy нижняя граница точности длительности в формуле соблюдения графика
const minDurationAccuracy = 0.5

// SlotVariance отклонение факта от плана по одному слоту
type SlotVariance struct {
	SlotID                 uint      `json:"slot_id"`
	WorkOrderID            uint      `json:"work_order_id"`
	TechnicianID           uint      `json:"technician_id"`
	PlannedStart           time.Time `json:"planned_start"`
	ActualStart            time.Time `json:"actual_start"`
	StartVarianceMinutes   int       `json:"start_variance_minutes"`
	OnTime                 bool      `json:"on_time"`
	PlannedDurationMinutes int       `json:"planned_duration_minutes"`
	ActualDurationMinutes  *int      `json:"actual_duration_minutes"`
	DurationVariance       *int      `json:"duration_variance"`
}

// ScheduleAdherence сводка соблюдения графика за период
type ScheduleAdherence struct {
	DateFrom          time.Time      `json:"date_from"`
	DateTo            time.Time      `json:"date_to"`
	TotalSlots        int            `json:"total_slots"`
	OnTimeCount       int            `json:"on_time_count"`
	OnTimeStartRate   float64        `json:"on_time_start_rate"`
	DurationAccuracy  float64        `json:"duration_accuracy"`
	AvgDelayMinutes   float64        `json:"avg_delay_minutes"`
	ScheduleAdherence float64        `json:"schedule_adherence"`
	Slots             []SlotVariance `json:"slots"`
}

// PlanningAccuracyService сравнивает плановое и фактическое выполнение заявок
type PlanningAccuracyService struct {
	DB *gorm.DB
}

// NewPlanningAccuracyService создает новый экземпляр PlanningAccuracyService
func NewPlanningAccuracyService(db *gorm.DB) *PlanningAccuracyService {
	return &PlanningAccuracyService{DB: db}
}

// ComputeScheduleAdherence считает соблюдение графика по завершенным слотам
// завершенных заявок, начатых в периоде
func (s *PlanningAccuracyService) ComputeScheduleAdherence(ctx context.Context, companyID uint, dateFrom, dateTo time.Time) (*ScheduleAdherence, error) {
	const op = "analytics.schedule_adherence"

	if dateTo.Before(dateFrom) {
		return nil, validationError(op, "date_to", "конец периода раньше начала")
	}

	start, end := dayBounds(dateFrom, dateTo)
	db := s.DB.WithContext(ctx)
	completed := db.Model(&models.WorkOrder{}).Select("id").
		Where("company_id = ? AND status = ?", companyID, models.WorkOrderStatusCompleted)

	var slots []models.PlanningSlot
	err := db.Preload("WorkOrder").
		Where("company_id = ? AND status = ? AND start_at >= ? AND start_at < ?",
			companyID, models.SlotStatusCompleted, start, end).
		Where("work_order_id IN (?)", completed).
		Order("start_at, id").
		Find(&slots).Error
	if err != nil {
		return nil, persistenceError(op, err)
	}

	result := AnalyzeAdherence(slots)
	result.DateFrom = dateFrom
	result.DateTo = dateTo
	return result, nil
}

// AnalyzeAdherence считает метрики по слотам с загруженной заявкой.
// Слоты без фактического начала заявки не учитываются.
func AnalyzeAdherence(slots []models.PlanningSlot) *ScheduleAdherence {
	result := &ScheduleAdherence{Slots: []SlotVariance{}}

	var ratioSum, delaySum float64
	ratioCount := 0

	for i := range slots {
		slot := &slots[i]
		wo := slot.WorkOrder
		if wo == nil || wo.StartedAt == nil {
			continue
		}

		startVariance := int(math.Round(wo.StartedAt.Sub(slot.StartAt).Minutes()))
		row := SlotVariance{
			SlotID:                 slot.ID,
			WorkOrderID:            slot.WorkOrderID,
			TechnicianID:           slot.TechnicianID,
			PlannedStart:           slot.StartAt,
			ActualStart:            *wo.StartedAt,
			StartVarianceMinutes:   startVariance,
			OnTime:                 absInt(startVariance) <= OnTimeToleranceMinutes,
			PlannedDurationMinutes: slot.DurationMinutes,
		}

		if wo.DowntimeMinutes != nil {
			actual := *wo.DowntimeMinutes
			variance := actual - slot.DurationMinutes
			row.ActualDurationMinutes = &actual
			row.DurationVariance = &variance
			if slot.DurationMinutes > 0 {
				ratioSum += float64(actual) / float64(slot.DurationMinutes)
				ratioCount++
			}
		}

		if row.OnTime {
			result.OnTimeCount++
		}
		if startVariance > 0 {
			delaySum += float64(startVariance)
		}
		result.Slots = append(result.Slots, row)
	}

	result.TotalSlots = len(result.Slots)
	result.DurationAccuracy = 1
	if ratioCount > 0 {
		result.DurationAccuracy = ratioSum / float64(ratioCount)
	}
	if result.TotalSlots > 0 {
		result.OnTimeStartRate = float64(result.OnTimeCount) / float64(result.TotalSlots) * 100
		result.AvgDelayMinutes = delaySum / float64(result.TotalSlots)
	}

	result.ScheduleAdherence = round2(math.Min(100, result.OnTimeStartRate/math.Max(result.DurationAccuracy, minDurationAccuracy)))
	result.OnTimeStartRate = round2(result.OnTimeStartRate)
	result.DurationAccuracy = round2(result.DurationAccuracy)
	result.AvgDelayMinutes = round2(result.AvgDelayMinutes)
	return result
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
