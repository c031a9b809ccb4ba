package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"stockroom/internal/config"
	"stockroom/internal/models"
)

func newFulfillment(repo *stubRepo) *FulfillmentService {
	states := &OrderStateService{Repo: repo}
	return &FulfillmentService{
		Repo:         repo,
		Availability: &AvailabilityService{Repo: repo},
		States:       states,
		Cfg:          config.AllocationConfig{TransferEnabled: true, BatchSize: 50},
	}
}

func seedFulfillRepo() *stubRepo {
	repo := newStubRepo()
	repo.addWarehouse(1, "central", "Paris")
	repo.addWarehouse(2, "annex", "Paris")
	repo.addWarehouse(3, "south", "Lyon")
	repo.addLocation(10, 1)
	repo.addLocation(20, 2)
	repo.addLocation(30, 3)
	repo.addVariant(models.Variant{ID: 100, SKU: "SKU-100"})
	return repo
}

func TestAllocate_TransferPlanPersisted(t *testing.T) {
	repo := seedFulfillRepo()
	repo.addStock(100, 10, models.StockAvailable, 2)
	repo.addStock(100, 20, models.StockAvailable, 3)
	repo.addStock(100, 30, models.StockAvailable, 5)

	order := &models.Order{
		ExternalID:     "100000001",
		Status:         models.OrderStatusReceived,
		Step:           models.StepNew,
		DeliveryMode:   models.DeliveryAtHome,
		StoragePointID: 1,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 8}},
	}
	repo.addOrder(order)

	svc := newFulfillment(repo)
	outcome, err := svc.Allocate(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if outcome.Skipped {
		t.Fatalf("outcome should not be skipped")
	}
	if outcome.Status != AvailabilityNone {
		t.Fatalf("availability=%s want NONE", outcome.Status)
	}
	if got := outcome.Plan.TransferQty(100); got != 6 {
		t.Fatalf("transfer qty=%d want 6", got)
	}
	if got := outcome.Plan.PurchaseQty(100); got != 0 {
		t.Fatalf("purchase qty=%d want 0", got)
	}

	if len(repo.transfers) != 2 {
		t.Fatalf("persisted transfers=%d want 2", len(repo.transfers))
	}
	first := repo.transfers[0]
	if first.Reference != "TRF-000001" {
		t.Fatalf("reference=%s want TRF-000001", first.Reference)
	}
	if first.SourceWarehouseID != 2 {
		t.Fatalf("first source=%d want same-city warehouse 2", first.SourceWarehouseID)
	}
	if first.TargetWarehouseID != 1 || first.OrderID == nil || *first.OrderID != order.ID {
		t.Fatalf("transfer target/order wiring wrong: %+v", first)
	}
	if repo.transfers[1].Reference != "TRF-000002" {
		t.Fatalf("reference=%s want TRF-000002", repo.transfers[1].Reference)
	}

	if order.Status != models.OrderStatusToTransfer || order.Step != models.StepTransferInProgress {
		t.Fatalf("order=%s/%s want to_transfer/transfer_in_progress", order.Status, order.Step)
	}
	rows, _ := repo.ListProcessings(context.Background(), order.ID)
	if len(rows) != 1 || rows[0].Status != models.OrderStatusToTransfer {
		t.Fatalf("processings=%+v want one open to_transfer row", rows)
	}
}

func TestAllocate_ReferencesFollowSharedSequence(t *testing.T) {
	repo := seedFulfillRepo()
	repo.addStock(100, 30, models.StockAvailable, 10)

	// The counter can be ahead of the transfer row count (rows created and
	// abandoned by other transactions). References must follow the counter,
	// never the row count, or two allocations toward different warehouses
	// could mint the same number.
	repo.seq["transfer"] = 4

	orderA := &models.Order{
		ExternalID:     "100000010",
		Status:         models.OrderStatusReceived,
		Step:           models.StepNew,
		DeliveryMode:   models.DeliveryAtHome,
		StoragePointID: 1,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 2}},
	}
	orderB := &models.Order{
		ExternalID:     "100000011",
		Status:         models.OrderStatusReceived,
		Step:           models.StepNew,
		DeliveryMode:   models.DeliveryAtHome,
		StoragePointID: 2,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 2}},
	}
	repo.addOrder(orderA)
	repo.addOrder(orderB)

	svc := newFulfillment(repo)
	if _, err := svc.Allocate(context.Background(), orderA.ID); err != nil {
		t.Fatalf("allocate A: %v", err)
	}
	if _, err := svc.Allocate(context.Background(), orderB.ID); err != nil {
		t.Fatalf("allocate B: %v", err)
	}

	if len(repo.transfers) != 2 {
		t.Fatalf("persisted transfers=%d want 2", len(repo.transfers))
	}
	if repo.transfers[0].Reference != "TRF-000005" {
		t.Fatalf("reference=%s want TRF-000005", repo.transfers[0].Reference)
	}
	if repo.transfers[1].Reference != "TRF-000006" {
		t.Fatalf("reference=%s want TRF-000006", repo.transfers[1].Reference)
	}
}

func TestAllocate_PurchaseWithSupplierDefaults(t *testing.T) {
	repo := seedFulfillRepo()
	supplier := uint64(7)
	cost := decimal.NewFromInt(15)
	repo.addVariant(models.Variant{ID: 100, SKU: "SKU-100", SupplierID: &supplier, LastPurchaseCost: &cost})

	order := &models.Order{
		ExternalID:     "100000002",
		Status:         models.OrderStatusReceived,
		Step:           models.StepNew,
		DeliveryMode:   models.DeliveryAtHome,
		StoragePointID: 1,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 4}},
	}
	repo.addOrder(order)

	svc := newFulfillment(repo)
	outcome, err := svc.Allocate(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := outcome.Plan.PurchaseQty(100); got != 4 {
		t.Fatalf("purchase qty=%d want 4", got)
	}
	if len(repo.purchases) != 1 {
		t.Fatalf("persisted purchases=%d want 1", len(repo.purchases))
	}
	po := repo.purchases[0]
	if po.Reference != "PO-000001" {
		t.Fatalf("reference=%s want PO-000001", po.Reference)
	}
	if po.SupplierID == nil || *po.SupplierID != supplier {
		t.Fatalf("supplier=%v want %d", po.SupplierID, supplier)
	}
	if len(po.Lines) != 1 || !po.Lines[0].UnitCost.Equal(cost) {
		t.Fatalf("purchase lines=%+v want unit cost 15", po.Lines)
	}
	if order.Status != models.OrderStatusToBuy {
		t.Fatalf("status=%s want to_buy", order.Status)
	}
}

func TestAllocate_AllAvailableGoesToPicking(t *testing.T) {
	repo := seedFulfillRepo()
	repo.addStock(100, 10, models.StockAvailable, 10)

	order := &models.Order{
		ExternalID:     "100000003",
		Status:         models.OrderStatusReceived,
		Step:           models.StepNew,
		DeliveryMode:   models.DeliveryAtHome,
		StoragePointID: 1,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 3}},
	}
	repo.addOrder(order)

	svc := newFulfillment(repo)
	outcome, err := svc.Allocate(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if outcome.Status != AvailabilityAll {
		t.Fatalf("availability=%s want ALL", outcome.Status)
	}
	if len(repo.transfers) != 0 || len(repo.purchases) != 0 {
		t.Fatalf("fully available order must not plan movements")
	}
	if order.Status != models.OrderStatusToPickPack || order.Step != models.StepPreparationInProgress {
		t.Fatalf("order=%s/%s want to_pick_pack/preparation_in_progress", order.Status, order.Step)
	}
}

func TestAllocate_SkipsTerminalOrder(t *testing.T) {
	repo := seedFulfillRepo()
	order := &models.Order{
		ExternalID:     "100000004",
		Status:         models.OrderStatusCancelled,
		Step:           models.StepClosed,
		StoragePointID: 1,
		Lines:          []models.OrderLine{{VariantID: 100, Quantity: 1}},
	}
	repo.addOrder(order)

	svc := newFulfillment(repo)
	outcome, err := svc.Allocate(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !outcome.Skipped {
		t.Fatalf("terminal order should be skipped")
	}
	if len(repo.transfers) != 0 && len(repo.purchases) != 0 {
		t.Fatalf("terminal order must not produce movements")
	}
}

func TestAllocatePending_ProcessesReceivedQueue(t *testing.T) {
	repo := seedFulfillRepo()
	repo.addStock(100, 10, models.StockAvailable, 10)

	for _, ext := range []string{"A-1", "A-2"} {
		repo.addOrder(&models.Order{
			ExternalID:     ext,
			Status:         models.OrderStatusReceived,
			Step:           models.StepNew,
			DeliveryMode:   models.DeliveryAtHome,
			StoragePointID: 1,
			Lines:          []models.OrderLine{{VariantID: 100, Quantity: 1}},
		})
	}
	// Already routed order stays untouched.
	repo.addOrder(&models.Order{
		ExternalID:     "A-3",
		Status:         models.OrderStatusToBuy,
		Step:           models.StepPurchaseInProgress,
		StoragePointID: 1,
	})

	svc := newFulfillment(repo)
	processed, err := svc.AllocatePending(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if processed != 2 {
		t.Fatalf("processed=%d want 2", processed)
	}
	for _, o := range repo.orders {
		if o.ExternalID == "A-3" && o.Status != models.OrderStatusToBuy {
			t.Fatalf("non-received order was touched")
		}
	}
}
