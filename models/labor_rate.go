package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Виды адресата ставки
const (
	RateTargetUser = "user"
	RateTargetRole = "role"
)

// RateTarget адресат ставки: конкретный пользователь либо роль, но не оба сразу
type RateTarget struct {
	Kind   string `json:"kind"`
	UserID uint   `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

// UserTarget ставка конкретного пользователя
func UserTarget(userID uint) RateTarget {
	return RateTarget{Kind: RateTargetUser, UserID: userID}
}

// RoleTarget ставка роли
func RoleTarget(role string) RateTarget {
	return RateTarget{Kind: RateTargetRole, Role: role}
}

// LaborRate почасовая ставка с периодом действия
type LaborRate struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	UserID *uint  `json:"user_id" gorm:"index"`
	Role   string `json:"role" gorm:"type:varchar(30);index"`

	HourlyRate   decimal.Decimal     `json:"hourly_rate" gorm:"type:decimal(10,2);not null"`
	OvertimeRate decimal.NullDecimal `json:"overtime_rate" gorm:"type:decimal(10,2)"`

	EffectiveFrom time.Time  `json:"effective_from" gorm:"not null;index"`
	EffectiveTo   *time.Time `json:"effective_to"` // nil - бессрочно

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели LaborRate
func (LaborRate) TableName() string {
	return "labor_rates"
}

// Target возвращает адресата ставки
func (r *LaborRate) Target() RateTarget {
	if r.UserID != nil {
		return UserTarget(*r.UserID)
	}
	return RoleTarget(r.Role)
}

// ValidateTarget проверяет, что ставка привязана ровно к одному адресату
func (r *LaborRate) ValidateTarget() error {
	hasUser := r.UserID != nil && *r.UserID != 0
	hasRole := r.Role != ""
	if hasUser && hasRole {
		return errors.New("ставка не может одновременно относиться к пользователю и роли")
	}
	if !hasUser && !hasRole {
		return errors.New("ставка должна относиться к пользователю или роли")
	}
	return nil
}

// IsEffectiveAt проверяет действие ставки в момент времени
func (r *LaborRate) IsEffectiveAt(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !at.After(*r.EffectiveTo)
}

// Overlaps проверяет пересечение периодов действия двух ставок
func (r *LaborRate) Overlaps(other *LaborRate) bool {
	if r.EffectiveTo != nil && r.EffectiveTo.Before(other.EffectiveFrom) {
		return false
	}
	if other.EffectiveTo != nil && other.EffectiveTo.Before(r.EffectiveFrom) {
		return false
	}
	return true
}

// RateFor выбирает ставку по часу окончания работ
func (r *LaborRate) RateFor(completionHour, overtimeFromHour int) (decimal.Decimal, bool) {
	if completionHour >= overtimeFromHour && r.OvertimeRate.Valid {
		return r.OvertimeRate.Decimal, true
	}
	return r.HourlyRate, false
}
