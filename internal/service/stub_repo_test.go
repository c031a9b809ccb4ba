package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface; each test seeds only what it touches.
type stubRepo struct {
	cursors   []models.SyncCursor
	histories map[string]models.SyncHistory
	failures  []models.CrawlFailure

	categories map[string]*models.Category
	products   map[string]*models.Product
	variants   map[uint64]*models.Variant
	suppliers  map[string]*models.Supplier

	warehouses     map[uint64]*models.Warehouse
	locations      map[uint64][]uint64
	stock          []stubStockRow
	locToWarehouse map[uint64]uint64
	avgCost        map[uint64]decimal.Decimal

	orders       map[uint64]*models.Order
	ordersByExt  map[string]uint64
	processings  []models.OrderProcessing
	transfers    []models.Transfer
	purchases    []models.PurchaseOrder
	attrOptions  []models.AttributeOption
	seq          map[string]int64
	nextID       uint64
	nextProcID   uint64
	nextCursorID uint64
}

type stubStockRow struct {
	variantID  uint64
	locationID uint64
	state      string
	qty        int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		histories:      map[string]models.SyncHistory{},
		categories:     map[string]*models.Category{},
		products:       map[string]*models.Product{},
		variants:       map[uint64]*models.Variant{},
		suppliers:      map[string]*models.Supplier{},
		warehouses:     map[uint64]*models.Warehouse{},
		locations:      map[uint64][]uint64{},
		locToWarehouse: map[uint64]uint64{},
		avgCost:        map[uint64]decimal.Decimal{},
		orders:         map[uint64]*models.Order{},
		ordersByExt:    map[string]uint64{},
		seq:            map[string]int64{},
	}
}

func (s *stubRepo) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *stubRepo) addWarehouse(id uint64, name, city string) {
	s.warehouses[id] = &models.Warehouse{ID: id, Name: name, City: city}
}

func (s *stubRepo) addLocation(locationID, warehouseID uint64) {
	s.locations[warehouseID] = append(s.locations[warehouseID], locationID)
	s.locToWarehouse[locationID] = warehouseID
}

func (s *stubRepo) addStock(variantID, locationID uint64, state string, qty int) {
	s.stock = append(s.stock, stubStockRow{variantID: variantID, locationID: locationID, state: state, qty: qty})
}

func (s *stubRepo) addVariant(v models.Variant) {
	s.variants[v.ID] = &v
}

func (s *stubRepo) addOrder(o *models.Order) {
	if o.ID == 0 {
		o.ID = s.id()
	}
	s.orders[o.ID] = o
	s.ordersByExt[o.ExternalID] = o.ID
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) LatestSuccessfulCursor(ctx context.Context, actionKind, entityKind string) (*models.SyncCursor, error) {
	for i := len(s.cursors) - 1; i >= 0; i-- {
		c := s.cursors[i]
		if c.ActionKind == actionKind && c.EntityKind == entityKind && c.Result == models.ResultSuccess {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) InsertSyncCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.SyncCursor) error {
	s.nextCursorID++
	cursor.ID = s.nextCursorID
	s.cursors = append(s.cursors, *cursor)
	return nil
}

func (s *stubRepo) ListSyncCursors(ctx context.Context, params repository.ListCursorsParams) ([]models.SyncCursor, error) {
	var out []models.SyncCursor
	for i := len(s.cursors) - 1; i >= 0; i-- {
		c := s.cursors[i]
		if params.ActionKind != "" && c.ActionKind != params.ActionKind {
			continue
		}
		if params.EntityKind != "" && c.EntityKind != params.EntityKind {
			continue
		}
		out = append(out, c)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) GetSyncHistory(ctx context.Context, entityKind string) (*models.SyncHistory, error) {
	if h, ok := s.histories[entityKind]; ok {
		return &h, nil
	}
	return nil, nil
}

func (s *stubRepo) UpsertSyncHistoryTx(ctx context.Context, tx *gorm.DB, history *models.SyncHistory) error {
	s.histories[history.EntityKind] = *history
	return nil
}

func (s *stubRepo) ListSyncHistories(ctx context.Context) ([]models.SyncHistory, error) {
	var out []models.SyncHistory
	for _, h := range s.histories {
		out = append(out, h)
	}
	return out, nil
}

func (s *stubRepo) InsertCrawlFailure(ctx context.Context, failure *models.CrawlFailure) error {
	for _, f := range s.failures {
		if f.EntityKind == failure.EntityKind && f.ExternalID == failure.ExternalID {
			return nil
		}
	}
	failure.ID = s.id()
	s.failures = append(s.failures, *failure)
	return nil
}

func (s *stubRepo) ListCrawlFailures(ctx context.Context, entityKind string) ([]models.CrawlFailure, error) {
	var out []models.CrawlFailure
	for _, f := range s.failures {
		if entityKind != "" && f.EntityKind != entityKind {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *stubRepo) UpsertCategoriesTx(ctx context.Context, tx *gorm.DB, items []models.Category) error {
	for _, item := range items {
		if existing, ok := s.categories[item.ExternalID]; ok {
			item.ID = existing.ID
		} else {
			item.ID = s.id()
		}
		copied := item
		s.categories[item.ExternalID] = &copied
	}
	return nil
}

func (s *stubRepo) FindCategoriesByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Category, error) {
	var out []models.Category
	for _, id := range externalIDs {
		if cat, ok := s.categories[id]; ok {
			out = append(out, *cat)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertProductsTx(ctx context.Context, tx *gorm.DB, items []models.Product) error {
	for _, item := range items {
		if existing, ok := s.products[item.ExternalID]; ok {
			item.ID = existing.ID
		} else {
			item.ID = s.id()
		}
		copied := item
		s.products[item.ExternalID] = &copied
	}
	return nil
}

func (s *stubRepo) FindProductsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range externalIDs {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertVariantsTx(ctx context.Context, tx *gorm.DB, items []models.Variant) error {
	for _, item := range items {
		var existingID uint64
		for _, v := range s.variants {
			if v.SKU == item.SKU {
				existingID = v.ID
				break
			}
		}
		if existingID != 0 {
			item.ID = existingID
		} else {
			item.ID = s.id()
		}
		copied := item
		s.variants[item.ID] = &copied
	}
	return nil
}

func (s *stubRepo) FindVariantsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Variant, error) {
	var out []models.Variant
	for _, id := range externalIDs {
		for _, v := range s.variants {
			if v.ExternalID == id {
				out = append(out, *v)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) FindVariantsBySKUs(ctx context.Context, skus []string) ([]models.Variant, error) {
	var out []models.Variant
	for _, sku := range skus {
		for _, v := range s.variants {
			if v.SKU == sku {
				out = append(out, *v)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) GetVariantByID(ctx context.Context, id uint64) (*models.Variant, error) {
	if v, ok := s.variants[id]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, repository.ErrVariantNotFound
}

func (s *stubRepo) UpsertAttributeOptionsTx(ctx context.Context, tx *gorm.DB, items []models.AttributeOption) error {
	s.attrOptions = append(s.attrOptions, items...)
	return nil
}

func (s *stubRepo) GetOrCreateSupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	if sup, ok := s.suppliers[name]; ok {
		return sup, nil
	}
	sup := &models.Supplier{ID: s.id(), Name: name}
	s.suppliers[name] = sup
	return sup, nil
}

func (s *stubRepo) GetWarehouse(ctx context.Context, id uint64) (*models.Warehouse, error) {
	if w, ok := s.warehouses[id]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, repository.ErrWarehouseNotFound
}

func (s *stubRepo) ListWarehouseLocationIDs(ctx context.Context, warehouseID uint64) ([]uint64, error) {
	return s.locations[warehouseID], nil
}

func (s *stubRepo) CountStock(ctx context.Context, variantID uint64, locationIDs []uint64, states []string) (int, error) {
	inLoc := map[uint64]struct{}{}
	for _, id := range locationIDs {
		inLoc[id] = struct{}{}
	}
	inState := map[string]struct{}{}
	for _, st := range states {
		inState[st] = struct{}{}
	}
	total := 0
	for _, row := range s.stock {
		if row.variantID != variantID {
			continue
		}
		if _, ok := inLoc[row.locationID]; !ok {
			continue
		}
		if _, ok := inState[row.state]; !ok {
			continue
		}
		total += row.qty
	}
	return total, nil
}

func (s *stubRepo) StockByWarehouse(ctx context.Context, variantID uint64, states []string) ([]repository.WarehouseStock, error) {
	inState := map[string]struct{}{}
	for _, st := range states {
		inState[st] = struct{}{}
	}
	byWarehouse := map[uint64]int{}
	for _, row := range s.stock {
		if row.variantID != variantID {
			continue
		}
		if _, ok := inState[row.state]; !ok {
			continue
		}
		byWarehouse[s.locToWarehouse[row.locationID]] += row.qty
	}
	var out []repository.WarehouseStock
	for id, qty := range byWarehouse {
		if qty <= 0 {
			continue
		}
		city := ""
		if w, ok := s.warehouses[id]; ok {
			city = w.City
		}
		out = append(out, repository.WarehouseStock{WarehouseID: id, City: city, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qty > out[j].Qty })
	return out, nil
}

func (s *stubRepo) AveragePurchaseCost(ctx context.Context, variantID uint64) (decimal.Decimal, error) {
	if cost, ok := s.avgCost[variantID]; ok {
		return cost, nil
	}
	return decimal.Zero, nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	if id, ok := s.ordersByExt[externalID]; ok {
		return s.orders[id], nil
	}
	return nil, nil
}

func (s *stubRepo) CreateOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	order.ID = s.id()
	for i := range order.Lines {
		order.Lines[i].ID = s.id()
		order.Lines[i].OrderID = order.ID
	}
	s.orders[order.ID] = order
	s.ordersByExt[order.ExternalID] = order.ID
	return nil
}

func (s *stubRepo) UpdateOrderStateTx(ctx context.Context, tx *gorm.DB, orderID uint64, status, step string) error {
	if o, ok := s.orders[orderID]; ok {
		o.Status = status
		o.Step = step
		return nil
	}
	return repository.ErrOrderNotFound
}

func (s *stubRepo) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	var ids []uint64
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []models.Order
	for _, id := range ids {
		o := s.orders[id]
		if params.Status != "" && o.Status != params.Status {
			continue
		}
		out = append(out, *o)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) FindOpenProcessingTx(ctx context.Context, tx *gorm.DB, orderID uint64) (*models.OrderProcessing, error) {
	for i := len(s.processings) - 1; i >= 0; i-- {
		p := s.processings[i]
		if p.OrderID == orderID && p.EndedAt == nil {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CloseProcessingTx(ctx context.Context, tx *gorm.DB, processingID uint64, endedAt time.Time) error {
	for i := range s.processings {
		if s.processings[i].ID == processingID {
			s.processings[i].EndedAt = &endedAt
			return nil
		}
	}
	return nil
}

func (s *stubRepo) InsertProcessingTx(ctx context.Context, tx *gorm.DB, processing *models.OrderProcessing) error {
	s.nextProcID++
	processing.ID = s.nextProcID
	s.processings = append(s.processings, *processing)
	return nil
}

func (s *stubRepo) ListProcessings(ctx context.Context, orderID uint64) ([]models.OrderProcessing, error) {
	var out []models.OrderProcessing
	for _, p := range s.processings {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) NextTransferSeqTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	s.seq["transfer"]++
	return s.seq["transfer"], nil
}

func (s *stubRepo) InsertTransferTx(ctx context.Context, tx *gorm.DB, transfer *models.Transfer) error {
	transfer.ID = s.id()
	s.transfers = append(s.transfers, *transfer)
	return nil
}

func (s *stubRepo) NextPurchaseSeqTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	s.seq["purchase"]++
	return s.seq["purchase"], nil
}

func (s *stubRepo) InsertPurchaseOrderTx(ctx context.Context, tx *gorm.DB, purchase *models.PurchaseOrder) error {
	purchase.ID = s.id()
	s.purchases = append(s.purchases, *purchase)
	return nil
}
