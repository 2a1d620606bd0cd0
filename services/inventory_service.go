package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_cmms/logger"
	"backend_cmms/models"
)

// Типы и уровни уведомлений склада
const (
	AlertTypeLowStock = "low_stock"

	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"

	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// InventoryService ведет приход запчастей и сверку остатков с журналом
type InventoryService struct {
	DB       *gorm.DB
	Audit    *AuditService
	Notifier *NotificationService
}

// NewInventoryService создает новый экземпляр InventoryService
func NewInventoryService(db *gorm.DB, audit *AuditService, notifier *NotificationService) *InventoryService {
	return &InventoryService{DB: db, Audit: audit, Notifier: notifier}
}

// ReceiveInput приход запчасти на площадку
type ReceiveInput struct {
	SparePartID uint                `json:"spare_part_id" binding:"required"`
	LocationID  uint                `json:"location_id" binding:"required"`
	Quantity    int                 `json:"quantity" binding:"required"`
	UnitCost    decimal.NullDecimal `json:"unit_cost"`
	Notes       string              `json:"notes"`
	UserID      *uint               `json:"-"`
}

// ReceiveResult остаток после прихода и запись журнала
type ReceiveResult struct {
	Stock       *models.Stock                `json:"stock"`
	Transaction *models.InventoryTransaction `json:"transaction"`
}

// Reconciliation сверка остатка с суммой движений
type Reconciliation struct {
	SparePartID       uint `json:"spare_part_id"`
	LocationID        uint `json:"location_id"`
	QuantityOnHand    int  `json:"quantity_on_hand"`
	QuantityReserved  int  `json:"quantity_reserved"`
	AvailableQuantity int  `json:"available_quantity"`
	LedgerQuantity    int  `json:"ledger_quantity"`
	TransactionCount  int  `json:"transaction_count"`
	Difference        int  `json:"difference"`
	Consistent        bool `json:"consistent"`
}

// ownedPartAndLocation проверяет принадлежность запчасти и площадки компании
func ownedPartAndLocation(tx *gorm.DB, op string, companyID, partID, locationID uint) (*models.SparePart, error) {
	var part models.SparePart
	if err := tx.First(&part, partID).Error; err != nil {
		return nil, lookupError(op, "spare_part", err)
	}
	if part.CompanyID != companyID {
		return nil, authorizationError(op, "spare_part")
	}

	var location models.Location
	if err := tx.First(&location, locationID).Error; err != nil {
		return nil, lookupError(op, "location", err)
	}
	if location.CompanyID != companyID {
		return nil, authorizationError(op, "location")
	}
	return &part, nil
}

// ReceiveStock увеличивает остаток и пишет положительное движение в журнал
func (s *InventoryService) ReceiveStock(ctx context.Context, companyID uint, input ReceiveInput) (*ReceiveResult, error) {
	const op = "stock.receive"

	if input.Quantity <= 0 {
		return nil, validationError(op, "quantity", "количество прихода должно быть положительным")
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return nil, validationError(op, "unit_cost", "цена не может быть отрицательной")
	}

	result := &ReceiveResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		part, err := ownedPartAndLocation(tx, op, companyID, input.SparePartID, input.LocationID)
		if err != nil {
			return err
		}

		var stock models.Stock
		if err := tx.Where(models.Stock{SparePartID: part.ID, LocationID: input.LocationID}).
			Attrs(models.Stock{CompanyID: companyID}).
			FirstOrCreate(&stock).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Stock{}).Where("id = ?", stock.ID).
			UpdateColumns(map[string]interface{}{
				"quantity_on_hand": gorm.Expr("quantity_on_hand + ?", input.Quantity),
				"updated_at":       time.Now(),
			}).Error; err != nil {
			return err
		}
		if err := tx.First(&stock, stock.ID).Error; err != nil {
			return err
		}

		unitCost := part.UnitCost
		if input.UnitCost.Valid {
			unitCost = input.UnitCost.Decimal
		}
		txn := &models.InventoryTransaction{
			Type:        models.TransactionTypeReceive,
			SparePartID: part.ID,
			LocationID:  input.LocationID,
			Quantity:    input.Quantity,
			UnitCost:    unitCost,
			BatchID:     uuid.New().String(),
			UserID:      input.UserID,
			Notes:       input.Notes,
			CompanyID:   companyID,
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		// Приход закрывает уведомление о низком остатке
		if part.MinStockLevel > 0 && stock.QuantityOnHand > part.MinStockLevel {
			now := time.Now()
			if err := tx.Model(&models.StockAlert{}).
				Where("stock_id = ? AND type = ? AND status = ?", stock.ID, AlertTypeLowStock, AlertStatusActive).
				Updates(map[string]interface{}{"status": AlertStatusResolved, "resolved_at": now}).Error; err != nil {
				return err
			}
		}

		result.Stock = &stock
		result.Transaction = txn

		return s.Audit.LogTx(tx, AuditContext{
			CompanyID:  companyID,
			UserID:     input.UserID,
			Action:     ActionStockReceive,
			Resource:   "stock",
			ResourceID: &stock.ID,
			NewValues:  txn,
		})
	})
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return result, nil
}

// ReconcileStock сравнивает остаток на руках с суммой движений журнала
func (s *InventoryService) ReconcileStock(ctx context.Context, companyID, partID, locationID uint) (*Reconciliation, error) {
	const op = "stock.reconcile"

	db := s.DB.WithContext(ctx)
	if _, err := ownedPartAndLocation(db, op, companyID, partID, locationID); err != nil {
		return nil, err
	}

	rec := &Reconciliation{SparePartID: partID, LocationID: locationID}

	var stock models.Stock
	err := db.Where("spare_part_id = ? AND location_id = ?", partID, locationID).First(&stock).Error
	switch {
	case err == nil:
		rec.QuantityOnHand = stock.QuantityOnHand
		rec.QuantityReserved = stock.QuantityReserved
		rec.AvailableQuantity = stock.AvailableQuantity()
	case err != gorm.ErrRecordNotFound:
		return nil, persistenceError(op, err)
	}

	var entries []models.InventoryTransaction
	if err := db.Select("quantity").
		Where("company_id = ? AND spare_part_id = ? AND location_id = ?", companyID, partID, locationID).
		Find(&entries).Error; err != nil {
		return nil, persistenceError(op, err)
	}
	for i := range entries {
		rec.LedgerQuantity += entries[i].Quantity
	}
	rec.TransactionCount = len(entries)
	rec.Difference = rec.QuantityOnHand - rec.LedgerQuantity
	rec.Consistent = rec.Difference == 0

	if !rec.Consistent {
		logger.WithCompany(companyID).WithFields(map[string]interface{}{
			"spare_part_id": partID,
			"location_id":   locationID,
			"difference":    rec.Difference,
		}).Warn("Остаток расходится с журналом движений")
	}
	return rec, nil
}

// CheckLowStockLevels проверяет остатки всех компаний и создает уведомления
func (s *InventoryService) CheckLowStockLevels(ctx context.Context) (int, error) {
	var stocks []models.Stock
	if err := s.DB.WithContext(ctx).Preload("SparePart").Order("id").Find(&stocks).Error; err != nil {
		return 0, fmt.Errorf("ошибка при получении остатков: %w", err)
	}

	created := 0
	for i := range stocks {
		part := stocks[i].SparePart
		if part == nil || !part.IsActive || part.MinStockLevel <= 0 || stocks[i].QuantityOnHand > part.MinStockLevel {
			continue
		}
		isNew, err := s.raiseLowStockAlert(ctx, &stocks[i])
		if err != nil {
			logger.WithCompany(stocks[i].CompanyID).WithError(err).
				WithField("stock_id", stocks[i].ID).
				Warn("Ошибка при создании уведомления о низком остатке")
			continue
		}
		if isNew {
			created++
		}
	}
	return created, nil
}

// raiseLowStockAlert создает уведомление или обновляет уже активное
func (s *InventoryService) raiseLowStockAlert(ctx context.Context, stock *models.Stock) (bool, error) {
	part := stock.SparePart
	description := fmt.Sprintf("Низкий остаток %s: %d %s (минимум: %d)",
		part.Name, stock.QuantityOnHand, part.Unit, part.MinStockLevel)

	db := s.DB.WithContext(ctx)
	var existing models.StockAlert
	err := db.Where("stock_id = ? AND type = ? AND status = ?", stock.ID, AlertTypeLowStock, AlertStatusActive).
		First(&existing).Error
	if err == nil {
		existing.Description = description
		existing.Severity = determineSeverity(stock.QuantityOnHand, part.MinStockLevel)
		return false, db.Save(&existing).Error
	}
	if err != gorm.ErrRecordNotFound {
		return false, fmt.Errorf("ошибка при проверке существующих уведомлений: %w", err)
	}

	alert := models.StockAlert{
		Type:        AlertTypeLowStock,
		Title:       fmt.Sprintf("Низкий остаток: %s", part.Name),
		Description: description,
		Severity:    determineSeverity(stock.QuantityOnHand, part.MinStockLevel),
		StockID:     &stock.ID,
		Status:      AlertStatusActive,
		CompanyID:   stock.CompanyID,
	}
	if err := db.Create(&alert).Error; err != nil {
		return false, fmt.Errorf("ошибка при создании уведомления: %w", err)
	}

	if s.Notifier != nil {
		go func(alert models.StockAlert) {
			ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
			defer cancel()
			if err := s.Notifier.SendStockAlert(ctx, alert); err != nil {
				logger.WithCompany(alert.CompanyID).WithError(err).Warn("Не удалось отправить уведомление о низком остатке")
			}
		}(alert)
	}
	return true, nil
}

// determineSeverity определяет уровень важности уведомления
func determineSeverity(current, minimum int) string {
	if current <= 0 {
		return SeverityCritical
	}
	if current < minimum/2 {
		return SeverityHigh
	}
	if current < minimum {
		return SeverityMedium
	}
	return SeverityLow
}
