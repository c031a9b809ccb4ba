package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransferStatusRequested = "requested"
	TransferStatusReceived  = "received"

	PurchaseStatusRequested = "requested"
	PurchaseStatusReceived  = "received"
)

// Transfer is a stock movement request from a source warehouse toward the
// warehouse preparing an order. Reference is sequential (TRF-000042).
type Transfer struct {
	ID                uint64  `gorm:"primaryKey;autoIncrement"`
	Reference         string  `gorm:"type:varchar(30);not null;uniqueIndex"`
	SourceWarehouseID uint64  `gorm:"not null;index"`
	TargetWarehouseID uint64  `gorm:"not null;index"`
	OrderID           *uint64 `gorm:"index"`
	Status            string  `gorm:"type:varchar(20);not null;default:'requested';index"`

	Lines []TransferLine `gorm:"foreignKey:TransferID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Transfer) TableName() string {
	return "transfers"
}

type TransferLine struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TransferID uint64 `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
	VariantID  uint64 `gorm:"not null;index"`
	Quantity   int    `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TransferLine) TableName() string {
	return "transfer_lines"
}

type PurchaseOrder struct {
	ID                uint64  `gorm:"primaryKey;autoIncrement"`
	Reference         string  `gorm:"type:varchar(30);not null;uniqueIndex"`
	SupplierID        *uint64 `gorm:"index"`
	TargetWarehouseID uint64  `gorm:"not null;index"`
	OrderID           *uint64 `gorm:"index"`
	Status            string  `gorm:"type:varchar(20);not null;default:'requested';index"`

	Lines []PurchaseLine `gorm:"foreignKey:PurchaseOrderID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// RefCounter backs the TRF-/PO- reference sequences. The counter row is read
// under a row lock inside the inserting transaction, so two transactions can
// never mint the same number.
type RefCounter struct {
	Name  string `gorm:"primaryKey;type:varchar(30)"`
	Value int64  `gorm:"not null;default:0"`
}

func (RefCounter) TableName() string {
	return "ref_counters"
}

type PurchaseLine struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	PurchaseOrderID uint64          `gorm:"not null;index"`
	Position        int             `gorm:"not null"`
	VariantID       uint64          `gorm:"not null;index"`
	Quantity        int             `gorm:"not null"`
	UnitCost        decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PurchaseLine) TableName() string {
	return "purchase_lines"
}
