package models

import (
	"time"

	"gorm.io/gorm"
)

// Company представляет компанию (tenant) в мультитенантной системе
type Company struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля компании
	Name   string `json:"name" gorm:"not null;type:varchar(100)"`
	Domain string `json:"domain" gorm:"type:varchar(100)"` // Поддомен или домен

	// Контактная информация
	ContactEmail  string `json:"contact_email" gorm:"type:varchar(100)"`
	ContactPhone  string `json:"contact_phone" gorm:"type:varchar(20)"`
	ContactPerson string `json:"contact_person" gorm:"type:varchar(100)"`

	// Настройки и статус
	IsActive bool `json:"is_active" gorm:"default:true"`

	// Настройки локализации
	Language string `json:"language" gorm:"default:'ru';type:varchar(5)"`
	Timezone string `json:"timezone" gorm:"default:'Europe/Moscow';type:varchar(50)"`
	Currency string `json:"currency" gorm:"default:'RUB';type:varchar(3)"`
}

// TableName задает имя таблицы для модели Company
func (Company) TableName() string {
	return "companies"
}

// Location возвращает часовой пояс компании, UTC если пояс не распознан
func (c *Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
