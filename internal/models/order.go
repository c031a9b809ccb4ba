package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	// Allocation-driven queue labels.
	OrderStatusReceived   = "received"
	OrderStatusToBuy      = "to_buy"
	OrderStatusToTransfer = "to_transfer"
	OrderStatusToTreat    = "to_treat"
	OrderStatusToPickPack = "to_pick_pack"

	// Platform-driven states.
	OrderStatusOnHold    = "on_hold"
	OrderStatusCancelled = "cancelled"
	OrderStatusComplete  = "complete"

	StepNew                   = "new"
	StepPurchaseInProgress    = "purchase_in_progress"
	StepTransferInProgress    = "transfer_in_progress"
	StepTreatmentInProgress   = "treatment_in_progress"
	StepPreparationInProgress = "preparation_in_progress"
	StepClosed                = "closed"

	DeliveryAtHome   = "at_home"
	DeliveryInAgency = "in_agency"
)

// TerminalOrderStatus reports whether a status came from the platform's own
// lifecycle end states. Allocation never moves an order out of these.
func TerminalOrderStatus(status string) bool {
	return status == OrderStatusCancelled || status == OrderStatusComplete
}

type Order struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ExternalID string `gorm:"type:varchar(100);not null;uniqueIndex"`

	Status string `gorm:"type:varchar(30);not null;index"`
	Step   string `gorm:"type:varchar(30);not null"`

	DeliveryMode   string `gorm:"type:varchar(20);not null"`
	StoragePointID uint64 `gorm:"not null;index"`

	Lines []OrderLine `gorm:"foreignKey:OrderID"`

	PlacedAt   *time.Time     `gorm:"type:timestamptz"`
	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderLine struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID   uint64          `gorm:"not null;index"`
	VariantID uint64          `gorm:"not null;index"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (OrderLine) TableName() string {
	return "order_lines"
}

// OrderProcessing is the append-only status/step history of an order. The open
// row (EndedAt nil) is closed when the next transition supersedes it.
type OrderProcessing struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	OrderID   uint64     `gorm:"not null;index"`
	Status    string     `gorm:"type:varchar(30);not null"`
	Step      string     `gorm:"type:varchar(30);not null"`
	StartedAt time.Time  `gorm:"type:timestamptz;not null"`
	EndedAt   *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (OrderProcessing) TableName() string {
	return "order_processings"
}
