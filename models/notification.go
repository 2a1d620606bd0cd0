package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы отправки уведомлений
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusSkipped = "skipped"
)

// NotificationLog представляет лог отправленных уведомлений
type NotificationLog struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Type         string     `json:"type" gorm:"not null;type:varchar(50);index"` // work_order_completed, low_stock, ...
	Channel      string     `json:"channel" gorm:"not null;type:varchar(20)"`    // telegram, log
	Recipient    string     `json:"recipient" gorm:"type:varchar(100)"`
	Message      string     `json:"message" gorm:"type:text;not null"`
	Status       string     `json:"status" gorm:"default:'pending';type:varchar(20)"` // pending, sent, failed, skipped
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	SentAt       *time.Time `json:"sent_at"`

	// Связанная сущность
	RelatedID   *uint  `json:"related_id"`
	RelatedType string `json:"related_type" gorm:"type:varchar(50)"`
	ExternalID  string `json:"external_id" gorm:"type:varchar(50)"` // Telegram message_id

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели NotificationLog
func (NotificationLog) TableName() string {
	return "notification_logs"
}

// IsSent проверяет, доставлено ли уведомление
func (n *NotificationLog) IsSent() bool {
	return n.Status == NotificationStatusSent
}
