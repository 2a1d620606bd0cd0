package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_cmms/models"
)

// LaborRateService управляет ставками оплаты труда
type LaborRateService struct {
	DB    *gorm.DB
	Audit *AuditService
}

// NewLaborRateService создает новый экземпляр LaborRateService
func NewLaborRateService(db *gorm.DB, audit *AuditService) *LaborRateService {
	return &LaborRateService{DB: db, Audit: audit}
}

// CreateRateInput входные данные для новой ставки
type CreateRateInput struct {
	Target        models.RateTarget
	HourlyRate    decimal.Decimal
	OvertimeRate  decimal.NullDecimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	ActorID       *uint
}

// CreateRate создает ставку. Пересекающиеся периоды для одного адресата отклоняются.
func (s *LaborRateService) CreateRate(ctx context.Context, companyID uint, input CreateRateInput) (*models.LaborRate, error) {
	const op = "labor_rate.create"

	rate := &models.LaborRate{
		HourlyRate:    input.HourlyRate,
		OvertimeRate:  input.OvertimeRate,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
		CompanyID:     companyID,
	}
	switch input.Target.Kind {
	case models.RateTargetUser:
		rate.UserID = uintPtr(input.Target.UserID)
	case models.RateTargetRole:
		rate.Role = input.Target.Role
	default:
		return nil, validationError(op, "target", "неизвестный вид адресата ставки")
	}

	if err := rate.ValidateTarget(); err != nil {
		return nil, validationError(op, "target", err.Error())
	}
	if !rate.HourlyRate.IsPositive() {
		return nil, validationError(op, "hourly_rate", "ставка должна быть больше нуля")
	}
	if rate.OvertimeRate.Valid && rate.OvertimeRate.Decimal.IsNegative() {
		return nil, validationError(op, "overtime_rate", "ставка сверхурочных не может быть отрицательной")
	}
	if rate.EffectiveFrom.IsZero() {
		return nil, validationError(op, "effective_from", "не указано начало действия")
	}
	if rate.EffectiveTo != nil && rate.EffectiveTo.Before(rate.EffectiveFrom) {
		return nil, validationError(op, "effective_to", "окончание действия раньше начала")
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rate.UserID != nil {
			var user models.User
			if err := tx.First(&user, *rate.UserID).Error; err != nil {
				return lookupError(op, "user", err)
			}
			if user.CompanyID != companyID {
				return authorizationError(op, "user")
			}
		}

		existing, err := s.ratesForTarget(tx, companyID, rate.Target())
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].Overlaps(rate) {
				return conflictError(op, "labor_rate", "период действия пересекается с существующей ставкой")
			}
		}

		if err := tx.Create(rate).Error; err != nil {
			return err
		}

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     input.ActorID,
			Action:     ActionLaborRateCreate,
			Resource:   "labor_rate",
			ResourceID: &rate.ID,
			NewValues:  rate,
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	return rate, nil
}

// ratesForTarget возвращает все ставки адресата
func (s *LaborRateService) ratesForTarget(tx *gorm.DB, companyID uint, target models.RateTarget) ([]models.LaborRate, error) {
	query := tx.Where("company_id = ?", companyID)
	if target.Kind == models.RateTargetUser {
		query = query.Where("user_id = ?", target.UserID)
	} else {
		query = query.Where("user_id IS NULL AND role = ?", target.Role)
	}

	var rates []models.LaborRate
	if err := query.Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

// ResolveRate находит действующую ставку пользователя на момент времени
func (s *LaborRateService) ResolveRate(ctx context.Context, companyID, userID uint, role string, at time.Time) (*models.LaborRate, error) {
	rate, err := s.ResolveRateTx(s.DB.WithContext(ctx), companyID, userID, role, at)
	if err != nil {
		return nil, persistenceError("labor_rate.resolve", err)
	}
	return rate, nil
}

// ResolveRateTx находит ставку в рамках транзакции.
// Персональная ставка важнее ставки роли, среди нескольких берется самая поздняя по effective_from.
// Возвращает nil без ошибки, если ставки нет.
func (s *LaborRateService) ResolveRateTx(tx *gorm.DB, companyID, userID uint, role string, at time.Time) (*models.LaborRate, error) {
	targets := []models.RateTarget{models.UserTarget(userID)}
	if role != "" {
		targets = append(targets, models.RoleTarget(role))
	}

	for _, target := range targets {
		query := tx.Where("company_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)",
			companyID, at, at)
		if target.Kind == models.RateTargetUser {
			query = query.Where("user_id = ?", target.UserID)
		} else {
			query = query.Where("user_id IS NULL AND role = ?", target.Role)
		}

		var rate models.LaborRate
		err := query.Order("effective_from DESC, id DESC").First(&rate).Error
		if err == nil {
			return &rate, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, nil
}
