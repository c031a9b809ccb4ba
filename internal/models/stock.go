package models

import "time"

const (
	StockAvailable = "available"
	StockReserved  = "reserved"
	StockOutgoing  = "outgoing"
	StockSold      = "sold"
)

type Warehouse struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:text;not null;uniqueIndex"`
	City string `gorm:"type:text;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}

// StorageLocation is a shelf/zone inside a warehouse. ParentID nests locations;
// availability counts walk the whole subtree of a warehouse.
type StorageLocation struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement"`
	WarehouseID uint64  `gorm:"not null;index"`
	ParentID    *uint64 `gorm:"index"`
	Name        string  `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StorageLocation) TableName() string {
	return "storage_locations"
}

// StockUnit is one physical unit of a variant sitting in a location.
type StockUnit struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	VariantID  uint64 `gorm:"not null;index:idx_stock_unit_variant_state,priority:1"`
	LocationID uint64 `gorm:"not null;index"`
	State      string `gorm:"type:varchar(20);not null;index:idx_stock_unit_variant_state,priority:2"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StockUnit) TableName() string {
	return "stock_units"
}
