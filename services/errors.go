package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Виды ошибок сервисного слоя. Проверяются через errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrAuthorization     = errors.New("authorization error")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPersistence       = errors.New("persistence error")
)

// ServiceError структурированная ошибка с деталями для вызывающей стороны
type ServiceError struct {
	Kind     error  // Один из Err* выше
	Op       string // Операция: work_order.complete, planning_slot.create, ...
	Entity   string // Сущность, к которой относится ошибка
	Field    string // Поле входных данных, если ошибка валидации
	LineItem *int   // Индекс позиции списания, если ошибка относится к ней
	Message  string
	Err      error // Исходная ошибка
}

// Error реализует интерфейс error
func (e *ServiceError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap позволяет errors.Is находить и вид ошибки, и исходную причину
func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName возвращает короткое имя вида ошибки для ответа API
func (e *ServiceError) KindName() string {
	switch e.Kind {
	case ErrValidation:
		return "validation"
	case ErrAuthorization:
		return "authorization"
	case ErrConflict:
		return "conflict"
	case ErrNotFound:
		return "not_found"
	case ErrInsufficientStock:
		return "insufficient_stock"
	default:
		return "persistence"
	}
}

// AsServiceError извлекает ServiceError из цепочки ошибок
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func validationError(op, field, message string) error {
	return &ServiceError{Kind: ErrValidation, Op: op, Field: field, Message: message}
}

func authorizationError(op, entity string) error {
	return &ServiceError{Kind: ErrAuthorization, Op: op, Entity: entity, Message: "сущность принадлежит другой компании"}
}

func conflictError(op, entity, message string) error {
	return &ServiceError{Kind: ErrConflict, Op: op, Entity: entity, Message: message}
}

func notFoundError(op, entity string) error {
	return &ServiceError{Kind: ErrNotFound, Op: op, Entity: entity, Message: entity + " не найден"}
}

func insufficientStockError(op string, lineItem int, message string) error {
	idx := lineItem
	return &ServiceError{Kind: ErrInsufficientStock, Op: op, Entity: "stock", LineItem: &idx, Message: message}
}

// persistenceError оборачивает ошибку хранилища. Уже классифицированные ошибки не трогает.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsServiceError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: ErrPersistence, Op: op, Message: "операция прервана", Err: err}
	}
	return &ServiceError{Kind: ErrPersistence, Op: op, Err: fmt.Errorf("ошибка базы данных: %w", err)}
}

// lookupError различает отсутствие записи и сбой хранилища
func lookupError(op, entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError(op, entity)
	}
	return persistenceError(op, err)
}
