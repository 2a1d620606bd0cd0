package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductionRun производственный прогон: станок + продукт + смена
type ProductionRun struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	MachineID uint     `json:"machine_id" gorm:"not null;index"`
	Machine   *Machine `json:"machine,omitempty" gorm:"foreignKey:MachineID"`
	Product   string   `json:"product" gorm:"type:varchar(100)"`
	Shift     string   `json:"shift" gorm:"type:varchar(20)"`

	StartTime time.Time  `json:"start_time" gorm:"not null;index"`
	EndTime   *time.Time `json:"end_time"` // Заполнено - прогон завершен

	PlannedQuantity int `json:"planned_quantity"`
	ActualQuantity  int `json:"actual_quantity"`
	GoodQuantity    int `json:"good_quantity"`

	// Показатели OEE в процентах [0,100]
	AvailabilityPct float64 `json:"availability_pct"`
	PerformancePct  float64 `json:"performance_pct"`
	QualityPct      float64 `json:"quality_pct"`
	OeePct          float64 `json:"oee_pct"`

	Downtimes []Downtime `json:"downtimes,omitempty" gorm:"foreignKey:ProductionRunID"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели ProductionRun
func (ProductionRun) TableName() string {
	return "production_runs"
}

// IsCompleted проверяет, завершен ли прогон
func (r *ProductionRun) IsCompleted() bool {
	return r.EndTime != nil
}

// DowntimeCategory категория причин простоя
type DowntimeCategory struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name      string `json:"name" gorm:"not null;type:varchar(100)"`
	Code      string `json:"code" gorm:"type:varchar(20)"`
	IsPlanned bool   `json:"is_planned" gorm:"default:false"` // Плановый простой (переналадка, обед)
	Color     string `json:"color" gorm:"type:varchar(7)"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели DowntimeCategory
func (DowntimeCategory) TableName() string {
	return "downtime_categories"
}

// Downtime интервал простоя в рамках прогона
type Downtime struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	ProductionRunID uint              `json:"production_run_id" gorm:"not null;index"`
	ProductionRun   *ProductionRun    `json:"production_run,omitempty" gorm:"foreignKey:ProductionRunID"`
	CategoryID      uint              `json:"category_id" gorm:"not null;index"`
	Category        *DowntimeCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`

	StartTime time.Time  `json:"start_time" gorm:"not null;index"`
	EndTime   *time.Time `json:"end_time"` // nil - простой продолжается

	// Производное поле, пересчитывается при каждой записи
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason" gorm:"type:text"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели Downtime
func (Downtime) TableName() string {
	return "downtimes"
}

// IsActive проверяет, продолжается ли простой
func (d *Downtime) IsActive() bool {
	return d.EndTime == nil
}

// ComputeDuration возвращает длительность в минутах, 0 для активного простоя
func (d *Downtime) ComputeDuration() int {
	if d.EndTime == nil || d.EndTime.Before(d.StartTime) {
		return 0
	}
	return int(d.EndTime.Sub(d.StartTime).Minutes())
}

// BeforeSave пересчитывает длительность по границам интервала
func (d *Downtime) BeforeSave(tx *gorm.DB) error {
	d.DurationMinutes = d.ComputeDuration()
	return nil
}
