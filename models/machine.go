package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Location представляет площадку или склад компании
type Location struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name     string `json:"name" gorm:"not null;type:varchar(100)"`
	Code     string `json:"code" gorm:"type:varchar(30)"`
	Address  string `json:"address" gorm:"type:text"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели Location
func (Location) TableName() string {
	return "locations"
}

// Machine представляет единицу оборудования на производстве
type Machine struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name         string `json:"name" gorm:"not null;type:varchar(100)"`
	Code         string `json:"code" gorm:"type:varchar(50)"`
	Manufacturer string `json:"manufacturer" gorm:"type:varchar(100)"`
	Model        string `json:"model" gorm:"type:varchar(100)"`
	Status       string `json:"status" gorm:"default:'operational';type:varchar(20)"` // operational, down, maintenance, retired

	// Стоимость простоя: сколько продукции оборудование производит за час
	HourlyProductionValue decimal.Decimal `json:"hourly_production_value" gorm:"type:decimal(12,2)"`

	LocationID *uint     `json:"location_id" gorm:"index"`
	Location   *Location `json:"location,omitempty" gorm:"foreignKey:LocationID"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели Machine
func (Machine) TableName() string {
	return "machines"
}
