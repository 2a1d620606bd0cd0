package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// Типы событий для уведомлений
const (
	EventWorkOrderCompleted = "work_order_completed"
	EventWorkOrderCancelled = "work_order_cancelled"
	EventSlotAssigned       = "planning_slot_assigned"
	EventLowStock           = "low_stock"
	EventPreventiveDue      = "preventive_due"
)

// notificationTimeout ограничивает фоновую отправку одного уведомления
const notificationTimeout = 30 * time.Second

// Event событие, о котором нужно уведомить
type Event struct {
	Type        string
	CompanyID   uint
	RelatedID   uint
	RelatedType string
	Recipient   string // Telegram chat ID, пусто - чат по умолчанию
	Message     string
}

// Dispatcher принимает события о смене состояния. Вызывается после фиксации транзакции.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// dispatchAsync отправляет событие в фоне, результат не ожидается
func dispatchAsync(d Dispatcher, event Event) {
	if d == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		if err := d.Dispatch(ctx, event); err != nil {
			logger.WithCompany(event.CompanyID).WithError(err).
				WithField("event", event.Type).Warn("Не удалось отправить уведомление")
		}
	}()
}

// NotificationService сохраняет журнал уведомлений и доставляет их в Telegram
type NotificationService struct {
	DB            *gorm.DB
	Sender        MessageSender
	DefaultChatID string
}

// NewNotificationService создает новый экземпляр NotificationService.
// sender может быть nil, тогда уведомления только записываются в журнал.
func NewNotificationService(db *gorm.DB, sender MessageSender, defaultChatID string) *NotificationService {
	return &NotificationService{
		DB:            db,
		Sender:        sender,
		DefaultChatID: defaultChatID,
	}
}

// Dispatch записывает уведомление и пытается его доставить
func (s *NotificationService) Dispatch(ctx context.Context, event Event) error {
	recipient := event.Recipient
	if recipient == "" {
		recipient = s.DefaultChatID
	}

	entry := models.NotificationLog{
		Type:        event.Type,
		Channel:     "telegram",
		Recipient:   recipient,
		Message:     event.Message,
		Status:      models.NotificationStatusPending,
		RelatedType: event.RelatedType,
		CompanyID:   event.CompanyID,
	}
	if event.RelatedID != 0 {
		entry.RelatedID = uintPtr(event.RelatedID)
	}

	db := s.DB.WithContext(ctx)
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("ошибка записи журнала уведомлений: %w", err)
	}

	if s.Sender == nil || recipient == "" {
		entry.Channel = "log"
		entry.Status = models.NotificationStatusSkipped
		return db.Save(&entry).Error
	}

	externalID, sendErr := s.Sender.SendMessage(recipient, event.Message)
	if sendErr != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		entry.Status = models.NotificationStatusSent
		entry.SentAt = &now
		entry.ExternalID = externalID
	}

	if err := db.Save(&entry).Error; err != nil {
		return fmt.Errorf("ошибка обновления журнала уведомлений: %w", err)
	}
	return sendErr
}

// SendStockAlert уведомляет о низком остатке
func (s *NotificationService) SendStockAlert(ctx context.Context, alert models.StockAlert) error {
	message := fmt.Sprintf("⚠️ <b>%s</b>\n\n%s", alert.Title, alert.Description)
	return s.Dispatch(ctx, Event{
		Type:        EventLowStock,
		CompanyID:   alert.CompanyID,
		RelatedID:   alert.ID,
		RelatedType: "stock_alert",
		Message:     message,
	})
}

// GetNotificationLogs получает журнал уведомлений компании
func (s *NotificationService) GetNotificationLogs(companyID uint, limit, offset int) ([]models.NotificationLog, int64, error) {
	var logs []models.NotificationLog
	var total int64

	query := s.DB.Model(&models.NotificationLog{}).Where("company_id = ?", companyID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета уведомлений: %w", err)
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	return logs, total, nil
}
