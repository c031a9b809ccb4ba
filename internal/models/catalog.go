package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ExternalID string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name       string  `gorm:"type:text;not null"`
	CategoryID *uint64 `gorm:"index"`

	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}

// Variant is the sellable unit referenced by order lines and stock units.
type Variant struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ProductID  uint64  `gorm:"not null;index"`
	ExternalID string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	SKU        string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	SupplierID *uint64 `gorm:"index"`

	LastPurchaseCost *decimal.Decimal `gorm:"type:numeric(20,6)"`

	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Variant) TableName() string {
	return "variants"
}

type Category struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ExternalID string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name       string  `gorm:"type:text;not null"`
	ParentID   *uint64 `gorm:"index"`

	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Category) TableName() string {
	return "categories"
}

// AttributeOption is one value of a platform attribute (size, color, ...).
type AttributeOption struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AttributeCode string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attribute_option,priority:1"`
	ExternalID    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attribute_option,priority:2"`
	Label         string `gorm:"type:text;not null"`

	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AttributeOption) TableName() string {
	return "attribute_options"
}

type Supplier struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:text;not null;uniqueIndex"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Supplier) TableName() string {
	return "suppliers"
}
