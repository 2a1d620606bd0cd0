package models

import (
	"time"

	"gorm.io/gorm"
)

// Единицы интервала планового обслуживания
const (
	IntervalDays   = "days"
	IntervalWeeks  = "weeks"
	IntervalMonths = "months"
)

// PreventiveTask описание регулярного обслуживания
type PreventiveTask struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name        string `json:"name" gorm:"not null;type:varchar(200)"`
	Description string `json:"description" gorm:"type:text"`

	MachineID *uint    `json:"machine_id" gorm:"index"`
	Machine   *Machine `json:"machine,omitempty" gorm:"foreignKey:MachineID"`

	ScheduleIntervalValue int    `json:"schedule_interval_value" gorm:"not null"`
	ScheduleIntervalUnit  string `json:"schedule_interval_unit" gorm:"not null;type:varchar(10)"` // days, weeks, months
	EstimatedMinutes      int    `json:"estimated_minutes" gorm:"default:60"`

	LastCompletedAt *time.Time `json:"last_completed_at"`
	NextDueDate     *time.Time `json:"next_due_date" gorm:"index"`
	IsActive        bool       `json:"is_active" gorm:"default:true"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели PreventiveTask
func (PreventiveTask) TableName() string {
	return "preventive_tasks"
}

// IsValidIntervalUnit проверяет единицу интервала
func IsValidIntervalUnit(unit string) bool {
	return unit == IntervalDays || unit == IntervalWeeks || unit == IntervalMonths
}

// NextDueFrom рассчитывает следующую дату обслуживания от момента выполнения
func (p *PreventiveTask) NextDueFrom(completedAt time.Time) time.Time {
	n := p.ScheduleIntervalValue
	switch p.ScheduleIntervalUnit {
	case IntervalWeeks:
		return completedAt.AddDate(0, 0, 7*n)
	case IntervalMonths:
		return completedAt.AddDate(0, n, 0)
	default:
		return completedAt.AddDate(0, 0, n)
	}
}

// IsDue проверяет, наступает ли срок в пределах горизонта
func (p *PreventiveTask) IsDue(now time.Time, lead time.Duration) bool {
	if !p.IsActive || p.NextDueDate == nil {
		return false
	}
	return !p.NextDueDate.After(now.Add(lead))
}
