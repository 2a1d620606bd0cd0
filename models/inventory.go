package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Типы складских движений
const (
	TransactionTypeReceive    = "receive"
	TransactionTypeConsume    = "consume"
	TransactionTypeAdjustment = "adjustment"
)

// SparePart представляет запасную часть в номенклатуре
type SparePart struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name          string          `json:"name" gorm:"not null;type:varchar(200)"`
	PartNumber    string          `json:"part_number" gorm:"type:varchar(100)"`
	Unit          string          `json:"unit" gorm:"default:'pcs';type:varchar(10)"`
	UnitCost      decimal.Decimal `json:"unit_cost" gorm:"type:decimal(12,2)"`
	MinStockLevel int             `json:"min_stock_level" gorm:"default:0"` // Минимальный остаток для уведомлений
	IsActive      bool            `json:"is_active" gorm:"default:true"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели SparePart
func (SparePart) TableName() string {
	return "spare_parts"
}

// Stock остаток запчасти на конкретной площадке.
// quantity_on_hand никогда не уходит в минус, резерв учитывается отдельно.
type Stock struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SparePartID uint       `json:"spare_part_id" gorm:"not null;uniqueIndex:idx_stock_part_location"`
	SparePart   *SparePart `json:"spare_part,omitempty" gorm:"foreignKey:SparePartID"`
	LocationID  uint       `json:"location_id" gorm:"not null;uniqueIndex:idx_stock_part_location"`
	Location    *Location  `json:"location,omitempty" gorm:"foreignKey:LocationID"`

	QuantityOnHand   int `json:"quantity_on_hand" gorm:"not null;default:0"`
	QuantityReserved int `json:"quantity_reserved" gorm:"not null;default:0"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели Stock
func (Stock) TableName() string {
	return "stocks"
}

// AvailableQuantity возвращает свободный остаток (на руках минус резерв)
func (s *Stock) AvailableQuantity() int {
	available := s.QuantityOnHand - s.QuantityReserved
	if available < 0 {
		return 0
	}
	return available
}

// InventoryTransaction запись журнала движения запчастей. Только добавление.
type InventoryTransaction struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Type        string          `json:"type" gorm:"not null;type:varchar(20)"` // receive, consume, adjustment
	SparePartID uint            `json:"spare_part_id" gorm:"not null;index:idx_inv_tx_part_location"`
	LocationID  uint            `json:"location_id" gorm:"not null;index:idx_inv_tx_part_location"`
	Quantity    int             `json:"quantity" gorm:"not null"` // Со знаком: расход отрицательный
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:decimal(12,2)"`

	// Причина движения
	WorkOrderID *uint  `json:"work_order_id" gorm:"index"`
	BatchID     string `json:"batch_id" gorm:"type:varchar(36);index"` // Общий ID всех движений одной операции
	UserID      *uint  `json:"user_id"`
	Notes       string `json:"notes" gorm:"type:text"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели InventoryTransaction
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// StockAlert представляет уведомление о низких остатках
type StockAlert struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Type        string `json:"type" gorm:"not null;type:varchar(50)"` // low_stock, preventive_due
	Title       string `json:"title" gorm:"not null;type:varchar(200)"`
	Description string `json:"description" gorm:"type:text"`
	Severity    string `json:"severity" gorm:"default:'medium';type:varchar(20)"` // low, medium, high, critical

	StockID *uint `json:"stock_id" gorm:"index"`

	Status     string     `json:"status" gorm:"default:'active';type:varchar(20)"` // active, acknowledged, resolved
	ResolvedAt *time.Time `json:"resolved_at"`

	CompanyID uint `json:"company_id" gorm:"index"`
}

// TableName задает имя таблицы для модели StockAlert
func (StockAlert) TableName() string {
	return "stock_alerts"
}

// IsActive проверяет, активно ли уведомление
func (sa *StockAlert) IsActive() bool {
	return sa.Status == "active"
}
