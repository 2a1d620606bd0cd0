package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы слота планирования
const (
	SlotStatusPlanned    = "planned"
	SlotStatusInProgress = "in_progress"
	SlotStatusCompleted  = "completed"
	SlotStatusCancelled  = "cancelled"
)

// Источник слота
const (
	SlotSourceManual   = "manual"
	SlotSourceShutdown = "shutdown"
	SlotSourceAuto     = "auto"
)

// ActiveSlotStatuses статусы, занимающие время техника
var ActiveSlotStatuses = []string{SlotStatusPlanned, SlotStatusInProgress}

// Типы записей доступности техника
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
)

// PlanningSlot назначение заявки технику на интервал времени
type PlanningSlot struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	WorkOrderID  uint       `json:"work_order_id" gorm:"not null;index"`
	WorkOrder    *WorkOrder `json:"work_order,omitempty" gorm:"foreignKey:WorkOrderID"`
	TechnicianID uint       `json:"technician_id" gorm:"not null;index"`
	Technician   *User      `json:"technician,omitempty" gorm:"foreignKey:TechnicianID"`

	StartAt time.Time `json:"start_at" gorm:"not null;index"`
	EndAt   time.Time `json:"end_at" gorm:"not null"`

	// Производное поле: end_at - start_at
	DurationMinutes int `json:"duration_minutes"`

	Status string `json:"status" gorm:"default:'planned';type:varchar(20);index"` // planned, in_progress, completed, cancelled
	Source string `json:"source" gorm:"default:'manual';type:varchar(20)"`        // manual, shutdown, auto
	Notes  string `json:"notes" gorm:"type:text"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели PlanningSlot
func (PlanningSlot) TableName() string {
	return "planning_slots"
}

// ComputeDuration возвращает длительность слота в минутах
func (s *PlanningSlot) ComputeDuration() int {
	if !s.EndAt.After(s.StartAt) {
		return 0
	}
	return int(s.EndAt.Sub(s.StartAt).Minutes())
}

// BeforeSave пересчитывает длительность по границам слота
func (s *PlanningSlot) BeforeSave(tx *gorm.DB) error {
	s.DurationMinutes = s.ComputeDuration()
	return nil
}

// IsActive проверяет, занимает ли слот время техника
func (s *PlanningSlot) IsActive() bool {
	return s.Status == SlotStatusPlanned || s.Status == SlotStatusInProgress
}

// Overlaps проверяет пересечение двух слотов по времени
func (s *PlanningSlot) Overlaps(other *PlanningSlot) bool {
	return s.StartAt.Before(other.EndAt) && other.StartAt.Before(s.EndAt)
}

// IsValidSlotStatus проверяет статус слота
func IsValidSlotStatus(status string) bool {
	switch status {
	case SlotStatusPlanned, SlotStatusInProgress, SlotStatusCompleted, SlotStatusCancelled:
		return true
	}
	return false
}

// IsValidSlotSource проверяет источник слота
func IsValidSlotSource(source string) bool {
	switch source {
	case SlotSourceManual, SlotSourceShutdown, SlotSourceAuto:
		return true
	}
	return false
}

// TechnicianAvailability корректировка календаря техника на дату
type TechnicianAvailability struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	TechnicianID uint      `json:"technician_id" gorm:"not null;index"`
	Date         time.Time `json:"date" gorm:"not null;index"`
	StartTime    time.Time `json:"start_time" gorm:"not null"`
	EndTime      time.Time `json:"end_time" gorm:"not null"`
	Type         string    `json:"type" gorm:"not null;type:varchar(20)"` // available, unavailable
	Reason       string    `json:"reason" gorm:"type:varchar(200)"`       // отпуск, больничный, сверхурочные

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели TechnicianAvailability
func (TechnicianAvailability) TableName() string {
	return "technician_availabilities"
}

// Minutes возвращает длительность интервала в минутах
func (a *TechnicianAvailability) Minutes() int {
	if !a.EndTime.After(a.StartTime) {
		return 0
	}
	return int(a.EndTime.Sub(a.StartTime).Minutes())
}

// PlannedShutdown плановая остановка станка или площадки
type PlannedShutdown struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Title      string    `json:"title" gorm:"not null;type:varchar(200)"`
	MachineID  *uint     `json:"machine_id" gorm:"index"`  // Остановка станка
	LocationID *uint     `json:"location_id" gorm:"index"` // Либо всей площадки
	StartAt    time.Time `json:"start_at" gorm:"not null;index"`
	EndAt      time.Time `json:"end_at" gorm:"not null"`
	Notes      string    `json:"notes" gorm:"type:text"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели PlannedShutdown
func (PlannedShutdown) TableName() string {
	return "planned_shutdowns"
}

// Covers проверяет пересечение остановки с интервалом
func (p *PlannedShutdown) Covers(start, end time.Time) bool {
	return p.StartAt.Before(end) && start.Before(p.EndAt)
}
