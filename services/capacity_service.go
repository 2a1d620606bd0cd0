package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"backend_cmms/models"
)

// Статусы загрузки техника
const (
	CapacityOverbooked = "overbooked"
	CapacityHigh       = "high"
	CapacityOptimal    = "optimal"
	CapacityLow        = "low"
)

// WorkHoursPerDay стандартная длительность рабочего дня
const WorkHoursPerDay = 8

// CapacityService считает доступное и запланированное время техников
type CapacityService struct {
	DB *gorm.DB
}

// NewCapacityService создает новый экземпляр CapacityService
func NewCapacityService(db *gorm.DB) *CapacityService {
	return &CapacityService{DB: db}
}

// Capacity загрузка техника за период
type Capacity struct {
	TechnicianID   uint    `json:"technician_id"`
	TechnicianName string  `json:"technician_name,omitempty"`
	WorkDays       int     `json:"work_days"`
	AvailableHours float64 `json:"available_hours"`
	PlannedHours   float64 `json:"planned_hours"`
	UtilizationPct float64 `json:"utilization_pct"`
	Status         string  `json:"status"`
}

// TeamCapacity загрузка всех техников компании
type TeamCapacity struct {
	DateFrom       time.Time  `json:"date_from"`
	DateTo         time.Time  `json:"date_to"`
	Technicians    []Capacity `json:"technicians"`
	AvailableHours float64    `json:"available_hours"`
	PlannedHours   float64    `json:"planned_hours"`
	UtilizationPct float64    `json:"utilization_pct"`
	Status         string     `json:"status"`
}

// CountWorkDays считает будние дни в [from, to] включительно
func CountWorkDays(from, to time.Time) int {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, from.Location())

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days++
		}
	}
	return days
}

// CapacityStatus классифицирует процент загрузки
func CapacityStatus(utilizationPct float64) string {
	switch {
	case utilizationPct > 100:
		return CapacityOverbooked
	case utilizationPct > 90:
		return CapacityHigh
	case utilizationPct < 50:
		return CapacityLow
	default:
		return CapacityOptimal
	}
}

func utilization(planned, available float64) float64 {
	if available <= 0 {
		return 0
	}
	return planned / available * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dayBounds возвращает полуоткрытый интервал [начало from, начало дня после to)
func dayBounds(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, from.Location()).AddDate(0, 0, 1)
	return start, end
}

// CalculateCapacity считает доступные и запланированные часы техника
func (s *CapacityService) CalculateCapacity(ctx context.Context, companyID, technicianID uint, dateFrom, dateTo time.Time) (*Capacity, error) {
	const op = "capacity.calculate"

	if dateTo.Before(dateFrom) {
		return nil, validationError(op, "date_to", "конец периода раньше начала")
	}

	db := s.DB.WithContext(ctx)
	technician, err := loadTechnician(db, op, companyID, technicianID)
	if err != nil {
		return nil, err
	}

	capacity, err := s.calculate(db, companyID, technicianID, dateFrom, dateTo)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	capacity.TechnicianName = technician.GetFullName()
	return capacity, nil
}

func (s *CapacityService) calculate(db *gorm.DB, companyID, technicianID uint, dateFrom, dateTo time.Time) (*Capacity, error) {
	start, end := dayBounds(dateFrom, dateTo)
	workDays := CountWorkDays(dateFrom, dateTo)
	defaultAvailableHours := float64(workDays * WorkHoursPerDay)

	var records []models.TechnicianAvailability
	if err := db.Where("company_id = ? AND technician_id = ? AND date >= ? AND date < ?",
		companyID, technicianID, start, end).Find(&records).Error; err != nil {
		return nil, err
	}

	customAvailableMinutes, unavailableMinutes := 0, 0
	hasCustom := false
	for i := range records {
		switch records[i].Type {
		case models.AvailabilityAvailable:
			customAvailableMinutes += records[i].Minutes()
			hasCustom = true
		case models.AvailabilityUnavailable:
			unavailableMinutes += records[i].Minutes()
		}
	}

	availableHours := math.Max(0, defaultAvailableHours-float64(unavailableMinutes)/60)
	if hasCustom {
		availableHours = float64(customAvailableMinutes) / 60
	}

	var slots []models.PlanningSlot
	if err := db.Select("duration_minutes").
		Where("company_id = ? AND technician_id = ? AND status IN ? AND start_at < ? AND end_at > ?",
			companyID, technicianID, models.ActiveSlotStatuses, end, start).
		Find(&slots).Error; err != nil {
		return nil, err
	}
	plannedMinutes := 0
	for i := range slots {
		plannedMinutes += slots[i].DurationMinutes
	}
	plannedHours := float64(plannedMinutes) / 60

	// Статус по неокругленному проценту
	pct := utilization(plannedHours, availableHours)
	return &Capacity{
		TechnicianID:   technicianID,
		WorkDays:       workDays,
		AvailableHours: round2(availableHours),
		PlannedHours:   round2(plannedHours),
		UtilizationPct: round2(pct),
		Status:         CapacityStatus(pct),
	}, nil
}

// CalculateTeamCapacity считает загрузку всех активных техников компании
func (s *CapacityService) CalculateTeamCapacity(ctx context.Context, companyID uint, dateFrom, dateTo time.Time) (*TeamCapacity, error) {
	const op = "capacity.team"

	if dateTo.Before(dateFrom) {
		return nil, validationError(op, "date_to", "конец периода раньше начала")
	}

	db := s.DB.WithContext(ctx)
	var technicians []models.User
	if err := db.Where("company_id = ? AND role = ? AND is_active = ?", companyID, models.RoleTechnician, true).
		Order("id").Find(&technicians).Error; err != nil {
		return nil, persistenceError(op, err)
	}

	team := &TeamCapacity{DateFrom: dateFrom, DateTo: dateTo, Technicians: []Capacity{}}
	for i := range technicians {
		capacity, err := s.calculate(db, companyID, technicians[i].ID, dateFrom, dateTo)
		if err != nil {
			return nil, persistenceError(op, err)
		}
		capacity.TechnicianName = technicians[i].GetFullName()
		team.Technicians = append(team.Technicians, *capacity)
		team.AvailableHours += capacity.AvailableHours
		team.PlannedHours += capacity.PlannedHours
	}

	team.AvailableHours = round2(team.AvailableHours)
	team.PlannedHours = round2(team.PlannedHours)
	pct := utilization(team.PlannedHours, team.AvailableHours)
	team.UtilizationPct = round2(pct)
	team.Status = CapacityStatus(pct)
	return team, nil
}
