package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы заявок на обслуживание
const (
	WorkOrderStatusOpen       = "open"
	WorkOrderStatusInProgress = "in_progress"
	WorkOrderStatusCompleted  = "completed"
	WorkOrderStatusCancelled  = "cancelled"
)

// Типы заявок
const (
	WorkOrderTypeBreakdown  = "breakdown"
	WorkOrderTypePreventive = "preventive"
	WorkOrderTypeCorrective = "corrective"
	WorkOrderTypeInspection = "inspection"
)

// TerminalWorkOrderStatuses статусы, из которых нет перехода
var TerminalWorkOrderStatuses = []string{WorkOrderStatusCompleted, WorkOrderStatusCancelled}

// WorkOrder представляет заявку на обслуживание оборудования
type WorkOrder struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Title         string `json:"title" gorm:"not null;type:varchar(200)"`
	Description   string `json:"description" gorm:"type:text"`
	Type          string `json:"type" gorm:"default:'breakdown';type:varchar(30)"` // breakdown, preventive, corrective, inspection
	Status        string `json:"status" gorm:"default:'open';type:varchar(20);index"`
	Priority      string `json:"priority" gorm:"default:'normal';type:varchar(20)"` // low, normal, high, urgent
	CauseCategory string `json:"cause_category" gorm:"type:varchar(50)"`            // mechanical, electrical, operator, ...
	Notes         string `json:"notes" gorm:"type:text"`

	// Связи
	MachineID    *uint    `json:"machine_id" gorm:"index"`
	Machine      *Machine `json:"machine,omitempty" gorm:"foreignKey:MachineID"`
	AssignedToID *uint    `json:"assigned_to_id" gorm:"index"`
	AssignedTo   *User    `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`

	// Источник: плановое обслуживание
	PreventiveTaskID *uint           `json:"preventive_task_id" gorm:"index"`
	PreventiveTask   *PreventiveTask `json:"preventive_task,omitempty" gorm:"foreignKey:PreventiveTaskID"`

	// Фактическое время
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DowntimeMinutes *int       `json:"downtime_minutes"` // completed_at - started_at, заполняется при закрытии

	// Плановое время: проекция слота планирования
	PlannedStartAt         *time.Time `json:"planned_start_at"`
	PlannedEndAt           *time.Time `json:"planned_end_at"`
	PlannedDurationMinutes *int       `json:"planned_duration_minutes"`

	Parts            []WorkOrderPart   `json:"parts,omitempty" gorm:"foreignKey:WorkOrderID"`
	Logs             []MaintenanceLog  `json:"logs,omitempty" gorm:"foreignKey:WorkOrderID"`
	ExternalServices []ExternalService `json:"external_services,omitempty" gorm:"foreignKey:WorkOrderID"`
	Cost             *WorkOrderCost    `json:"cost,omitempty" gorm:"foreignKey:WorkOrderID"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели WorkOrder
func (WorkOrder) TableName() string {
	return "work_orders"
}

// IsTerminal проверяет, закрыта ли заявка окончательно
func (w *WorkOrder) IsTerminal() bool {
	return w.Status == WorkOrderStatusCompleted || w.Status == WorkOrderStatusCancelled
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Жизненный цикл монотонный: open -> in_progress -> completed, отмена из любого нетерминального.
func (w *WorkOrder) CanTransitionTo(status string) bool {
	if w.IsTerminal() {
		return false
	}
	switch status {
	case WorkOrderStatusInProgress:
		return w.Status == WorkOrderStatusOpen
	case WorkOrderStatusCompleted, WorkOrderStatusCancelled:
		return true
	}
	return false
}

// MaintenanceLog запись о выполненной работе. Не изменяется после создания.
type MaintenanceLog struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	WorkOrderID uint  `json:"work_order_id" gorm:"not null;index"`
	UserID      *uint `json:"user_id" gorm:"index"`

	// Сырые данные учета времени
	TimeStarted   string  `json:"time_started" gorm:"type:varchar(5)"`   // HH:MM
	TimeCompleted string  `json:"time_completed" gorm:"type:varchar(5)"` // HH:MM
	BreakTime     float64 `json:"break_time"`                            // Перерыв в часах

	HoursWorked decimal.Decimal `json:"hours_worked" gorm:"type:decimal(8,2)"`
	LaborCost   decimal.Decimal `json:"labor_cost" gorm:"type:decimal(12,2)"`
	LaborRateID *uint           `json:"labor_rate_id"`
	IsOvertime  bool            `json:"is_overtime" gorm:"default:false"`
	Notes       string          `json:"notes" gorm:"type:text"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели MaintenanceLog
func (MaintenanceLog) TableName() string {
	return "maintenance_logs"
}

// WorkOrderPart запчасть, списанная на заявку
type WorkOrderPart struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	WorkOrderID  uint            `json:"work_order_id" gorm:"not null;index"`
	SparePartID  uint            `json:"spare_part_id" gorm:"not null;index"`
	SparePart    *SparePart      `json:"spare_part,omitempty" gorm:"foreignKey:SparePartID"`
	LocationID   uint            `json:"location_id" gorm:"not null"`
	QuantityUsed int             `json:"quantity_used" gorm:"not null"`
	UnitCost     decimal.Decimal `json:"unit_cost" gorm:"type:decimal(12,2)"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели WorkOrderPart
func (WorkOrderPart) TableName() string {
	return "work_order_parts"
}

// LineCost возвращает стоимость позиции
func (p *WorkOrderPart) LineCost() decimal.Decimal {
	return p.UnitCost.Mul(decimal.NewFromInt(int64(p.QuantityUsed)))
}

// ExternalService работы подрядчика по заявке
type ExternalService struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	WorkOrderID   uint            `json:"work_order_id" gorm:"not null;index"`
	VendorName    string          `json:"vendor_name" gorm:"type:varchar(200)"`
	Description   string          `json:"description" gorm:"type:text"`
	InvoiceNumber string          `json:"invoice_number" gorm:"type:varchar(50)"`
	Cost          decimal.Decimal `json:"cost" gorm:"type:decimal(12,2)"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели ExternalService
func (ExternalService) TableName() string {
	return "external_services"
}

// WorkOrderCost сводная стоимость заявки. Одна запись на заявку, total всегда сумма компонент.
type WorkOrderCost struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WorkOrderID uint `json:"work_order_id" gorm:"not null;uniqueIndex"`

	LaborCost           decimal.Decimal `json:"labor_cost" gorm:"type:decimal(12,2)"`
	PartsCost           decimal.Decimal `json:"parts_cost" gorm:"type:decimal(12,2)"`
	DowntimeCost        decimal.Decimal `json:"downtime_cost" gorm:"type:decimal(12,2)"`
	ExternalServiceCost decimal.Decimal `json:"external_service_cost" gorm:"type:decimal(12,2)"`
	TotalCost           decimal.Decimal `json:"total_cost" gorm:"type:decimal(14,2)"`

	CompanyID uint `json:"company_id" gorm:"not null;index"`
}

// TableName задает имя таблицы для модели WorkOrderCost
func (WorkOrderCost) TableName() string {
	return "work_order_costs"
}

// ComponentsSum возвращает сумму четырех компонент стоимости
func (c *WorkOrderCost) ComponentsSum() decimal.Decimal {
	return c.LaborCost.Add(c.PartsCost).Add(c.DowntimeCost).Add(c.ExternalServiceCost)
}

// BeforeSave пересчитывает итог, total_cost никогда не задается напрямую
func (c *WorkOrderCost) BeforeSave(tx *gorm.DB) error {
	c.TotalCost = c.ComponentsSum()
	return nil
}
