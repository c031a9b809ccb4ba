package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stockroom/internal/models"
)

var (
	ErrVariantNotFound   = errors.New("variant not found")
	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrOrderNotFound     = errors.New("order not found")
)

// WarehouseStock is the per-warehouse quantity of one variant, used to rank
// transfer candidates.
type WarehouseStock struct {
	WarehouseID uint64
	City        string
	Qty         int
}

type ListCursorsParams struct {
	ActionKind string
	EntityKind string
	Limit      int
}

type ListOrdersParams struct {
	Status string
	Limit  int
	Offset int
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Sync cursor ledger (append-only) and rolling history.
	LatestSuccessfulCursor(ctx context.Context, actionKind, entityKind string) (*models.SyncCursor, error)
	InsertSyncCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.SyncCursor) error
	ListSyncCursors(ctx context.Context, params ListCursorsParams) ([]models.SyncCursor, error)
	GetSyncHistory(ctx context.Context, entityKind string) (*models.SyncHistory, error)
	UpsertSyncHistoryTx(ctx context.Context, tx *gorm.DB, history *models.SyncHistory) error
	ListSyncHistories(ctx context.Context) ([]models.SyncHistory, error)
	InsertCrawlFailure(ctx context.Context, failure *models.CrawlFailure) error
	ListCrawlFailures(ctx context.Context, entityKind string) ([]models.CrawlFailure, error)

	// Catalog reconciliation.
	UpsertCategoriesTx(ctx context.Context, tx *gorm.DB, items []models.Category) error
	FindCategoriesByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Category, error)
	UpsertProductsTx(ctx context.Context, tx *gorm.DB, items []models.Product) error
	FindProductsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Product, error)
	UpsertVariantsTx(ctx context.Context, tx *gorm.DB, items []models.Variant) error
	FindVariantsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Variant, error)
	FindVariantsBySKUs(ctx context.Context, skus []string) ([]models.Variant, error)
	GetVariantByID(ctx context.Context, id uint64) (*models.Variant, error)
	UpsertAttributeOptionsTx(ctx context.Context, tx *gorm.DB, items []models.AttributeOption) error
	GetOrCreateSupplierByName(ctx context.Context, name string) (*models.Supplier, error)

	// Stock queries (pure reads used by availability and planning).
	GetWarehouse(ctx context.Context, id uint64) (*models.Warehouse, error)
	ListWarehouseLocationIDs(ctx context.Context, warehouseID uint64) ([]uint64, error)
	CountStock(ctx context.Context, variantID uint64, locationIDs []uint64, states []string) (int, error)
	StockByWarehouse(ctx context.Context, variantID uint64, states []string) ([]WarehouseStock, error)
	AveragePurchaseCost(ctx context.Context, variantID uint64) (decimal.Decimal, error)

	// Orders.
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error)
	CreateOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
	UpdateOrderStateTx(ctx context.Context, tx *gorm.DB, orderID uint64, status, step string) error
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	FindOpenProcessingTx(ctx context.Context, tx *gorm.DB, orderID uint64) (*models.OrderProcessing, error)
	CloseProcessingTx(ctx context.Context, tx *gorm.DB, processingID uint64, endedAt time.Time) error
	InsertProcessingTx(ctx context.Context, tx *gorm.DB, processing *models.OrderProcessing) error
	ListProcessings(ctx context.Context, orderID uint64) ([]models.OrderProcessing, error)

	// Movement persistence (plans materialized by the fulfillment service).
	// The Next*SeqTx sequences come from a counter row locked for the rest of
	// the transaction, so references stay unique across concurrent allocations.
	NextTransferSeqTx(ctx context.Context, tx *gorm.DB) (int64, error)
	InsertTransferTx(ctx context.Context, tx *gorm.DB, transfer *models.Transfer) error
	NextPurchaseSeqTx(ctx context.Context, tx *gorm.DB) (int64, error)
	InsertPurchaseOrderTx(ctx context.Context, tx *gorm.DB, purchase *models.PurchaseOrder) error
}
