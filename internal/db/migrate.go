package db

import (
	"stockroom/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.SyncCursor{},
		&models.SyncHistory{},
		&models.CrawlFailure{},
		&models.Category{},
		&models.Supplier{},
		&models.Product{},
		&models.Variant{},
		&models.AttributeOption{},
		&models.Warehouse{},
		&models.StorageLocation{},
		&models.StockUnit{},
		&models.Order{},
		&models.OrderLine{},
		&models.OrderProcessing{},
		&models.Transfer{},
		&models.TransferLine{},
		&models.PurchaseOrder{},
		&models.PurchaseLine{},
		&models.RefCounter{},
	)
}
