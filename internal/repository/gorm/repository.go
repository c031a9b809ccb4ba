package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockroom/internal/models"
	"stockroom/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Sync ledger ------------------------------------------------------------

func (s *Store) LatestSuccessfulCursor(ctx context.Context, actionKind, entityKind string) (*models.SyncCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var cursor models.SyncCursor
	err := s.db.WithContext(ctx).
		Where("action_kind = ?", actionKind).
		Where("entity_kind = ?", entityKind).
		Where("result = ?", models.ResultSuccess).
		Order("id desc").
		First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (s *Store) InsertSyncCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.SyncCursor) error {
	if tx == nil || cursor == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(cursor).Error
}

func (s *Store) ListSyncCursors(ctx context.Context, params repository.ListCursorsParams) ([]models.SyncCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SyncCursor{})
	if params.ActionKind != "" {
		query = query.Where("action_kind = ?", params.ActionKind)
	}
	if params.EntityKind != "" {
		query = query.Where("entity_kind = ?", params.EntityKind)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	var items []models.SyncCursor
	if err := query.Order("id desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetSyncHistory(ctx context.Context, entityKind string) (*models.SyncHistory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var history models.SyncHistory
	err := s.db.WithContext(ctx).Where("entity_kind = ?", entityKind).First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}

func (s *Store) UpsertSyncHistoryTx(ctx context.Context, tx *gorm.DB, history *models.SyncHistory) error {
	if tx == nil || history == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_kind"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"times",
			"last_status",
			"imported_count",
			"failed_count",
			"duration_ms",
			"ran_at",
			"updated_at",
		}),
	}).Create(history).Error
}

func (s *Store) ListSyncHistories(ctx context.Context) ([]models.SyncHistory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SyncHistory
	if err := s.db.WithContext(ctx).Order("entity_kind asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertCrawlFailure(ctx context.Context, failure *models.CrawlFailure) error {
	if s == nil || s.db == nil || failure == nil {
		return nil
	}
	if failure.EntityKind == "" || failure.ExternalID == "" {
		return nil
	}
	// DoNothing keeps the list append-once per identifier.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_kind"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(failure).Error
}

func (s *Store) ListCrawlFailures(ctx context.Context, entityKind string) ([]models.CrawlFailure, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.CrawlFailure{})
	if entityKind != "" {
		query = query.Where("entity_kind = ?", entityKind)
	}
	var items []models.CrawlFailure
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Catalog ----------------------------------------------------------------

func (s *Store) UpsertCategoriesTx(ctx context.Context, tx *gorm.DB, items []models.Category) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"parent_id",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) FindCategoriesByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Category, error) {
	if s == nil || s.db == nil || len(externalIDs) == 0 {
		return nil, nil
	}
	var items []models.Category
	if err := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertProductsTx(ctx context.Context, tx *gorm.DB, items []models.Product) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"category_id",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) FindProductsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Product, error) {
	if s == nil || s.db == nil || len(externalIDs) == 0 {
		return nil, nil
	}
	var items []models.Product
	if err := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertVariantsTx(ctx context.Context, tx *gorm.DB, items []models.Variant) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id",
			"sku",
			"supplier_id",
			"last_purchase_cost",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) FindVariantsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Variant, error) {
	if s == nil || s.db == nil || len(externalIDs) == 0 {
		return nil, nil
	}
	var items []models.Variant
	if err := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) FindVariantsBySKUs(ctx context.Context, skus []string) ([]models.Variant, error) {
	if s == nil || s.db == nil || len(skus) == 0 {
		return nil, nil
	}
	var items []models.Variant
	if err := s.db.WithContext(ctx).Where("sku IN ?", skus).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetVariantByID(ctx context.Context, id uint64) (*models.Variant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var variant models.Variant
	err := s.db.WithContext(ctx).First(&variant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (s *Store) UpsertAttributeOptionsTx(ctx context.Context, tx *gorm.DB, items []models.AttributeOption) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attribute_code"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"label",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) GetOrCreateSupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("supplier name is required")
	}
	var supplier models.Supplier
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&supplier).Error
	if err == nil {
		return &supplier, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	supplier = models.Supplier{Name: name}
	if err := s.db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// --- Stock ------------------------------------------------------------------

func (s *Store) GetWarehouse(ctx context.Context, id uint64) (*models.Warehouse, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var warehouse models.Warehouse
	err := s.db.WithContext(ctx).First(&warehouse, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrWarehouseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// ListWarehouseLocationIDs returns every location of a warehouse including
// nested ones; children carry the warehouse id of their root.
func (s *Store) ListWarehouseLocationIDs(ctx context.Context, warehouseID uint64) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.StorageLocation{}).
		Where("warehouse_id = ?", warehouseID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) CountStock(ctx context.Context, variantID uint64, locationIDs []uint64, states []string) (int, error) {
	if s == nil || s.db == nil || len(locationIDs) == 0 || len(states) == 0 {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.StockUnit{}).
		Where("variant_id = ?", variantID).
		Where("location_id IN ?", locationIDs).
		Where("state IN ?", states).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) StockByWarehouse(ctx context.Context, variantID uint64, states []string) ([]repository.WarehouseStock, error) {
	if s == nil || s.db == nil || len(states) == 0 {
		return nil, nil
	}
	var rows []repository.WarehouseStock
	err := s.db.WithContext(ctx).
		Table("stock_units AS u").
		Select("w.id AS warehouse_id, w.city AS city, COUNT(u.id) AS qty").
		Joins("JOIN storage_locations AS l ON l.id = u.location_id").
		Joins("JOIN warehouses AS w ON w.id = l.warehouse_id").
		Where("u.variant_id = ?", variantID).
		Where("u.state IN ?", states).
		Group("w.id, w.city").
		Order("qty desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) AveragePurchaseCost(ctx context.Context, variantID uint64) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var avg *decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&models.PurchaseLine{}).
		Select("AVG(unit_cost)").
		Where("variant_id = ?", variantID).
		Scan(&avg).Error
	if err != nil {
		return decimal.Zero, err
	}
	if avg == nil {
		return decimal.Zero, nil
	}
	return *avg, nil
}

// --- Orders -----------------------------------------------------------------

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Lines").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Lines").Where("external_id = ?", externalID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) CreateOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if tx == nil || order == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (s *Store) UpdateOrderStateTx(ctx context.Context, tx *gorm.DB, orderID uint64, status, step string) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": status, "step": step}).Error
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Order{}).Preload("Lines")
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var items []models.Order
	if err := query.Order("id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) FindOpenProcessingTx(ctx context.Context, tx *gorm.DB, orderID uint64) (*models.OrderProcessing, error) {
	if tx == nil {
		return nil, nil
	}
	var processing models.OrderProcessing
	err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("ended_at IS NULL").
		Order("id desc").
		First(&processing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &processing, nil
}

func (s *Store) CloseProcessingTx(ctx context.Context, tx *gorm.DB, processingID uint64, endedAt time.Time) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.OrderProcessing{}).
		Where("id = ?", processingID).
		Update("ended_at", endedAt).Error
}

func (s *Store) InsertProcessingTx(ctx context.Context, tx *gorm.DB, processing *models.OrderProcessing) error {
	if tx == nil || processing == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(processing).Error
}

func (s *Store) ListProcessings(ctx context.Context, orderID uint64) ([]models.OrderProcessing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.OrderProcessing
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Movements --------------------------------------------------------------

const (
	transferSeqName = "transfer"
	purchaseSeqName = "purchase"
)

// nextSeqTx increments the named counter row under a row lock. Concurrent
// transactions queue on the lock, so each caller gets a distinct number.
func (s *Store) nextSeqTx(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	seed := models.RefCounter{Name: name}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return 0, err
	}
	var counter models.RefCounter
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		First(&counter).Error; err != nil {
		return 0, err
	}
	next := counter.Value + 1
	if err := tx.WithContext(ctx).
		Model(&models.RefCounter{}).
		Where("name = ?", name).
		Update("value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) NextTransferSeqTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return s.nextSeqTx(ctx, tx, transferSeqName)
}

func (s *Store) InsertTransferTx(ctx context.Context, tx *gorm.DB, transfer *models.Transfer) error {
	if tx == nil || transfer == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

func (s *Store) NextPurchaseSeqTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return s.nextSeqTx(ctx, tx, purchaseSeqName)
}

func (s *Store) InsertPurchaseOrderTx(ctx context.Context, tx *gorm.DB, purchase *models.PurchaseOrder) error {
	if tx == nil || purchase == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(purchase).Error
}
