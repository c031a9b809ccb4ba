package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockroom/internal/config"
	"stockroom/internal/models"
	"stockroom/internal/repository"
)

// FulfillmentService runs the check -> plan -> persist -> advance sequence for
// one order. A per-warehouse mutex is held across the whole sequence so two
// orders against the same warehouse cannot double-spend the same stock units.
type FulfillmentService struct {
	Repo         repository.Repository
	Availability *AvailabilityService
	States       *OrderStateService
	Cfg          config.AllocationConfig
	Logger       *zap.Logger

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

type AllocationOutcome struct {
	OrderID uint64             `json:"order_id"`
	Status  AvailabilityStatus `json:"status"`
	Plan    AllocationPlan     `json:"plan"`
	Skipped bool               `json:"skipped"`
}

func (s *FulfillmentService) warehouseLock(warehouseID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = map[uint64]*sync.Mutex{}
	}
	lock, ok := s.locks[warehouseID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[warehouseID] = lock
	}
	return lock
}

// Allocate fulfills one order: availability check against its storage point,
// allocation plan for the shortfalls, Transfer/PurchaseOrder rows materialized
// from the plan, and the order advanced to its next queue.
func (s *FulfillmentService) Allocate(ctx context.Context, orderID uint64) (AllocationOutcome, error) {
	order, err := s.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return AllocationOutcome{}, err
	}
	if models.TerminalOrderStatus(order.Status) {
		return AllocationOutcome{OrderID: order.ID, Skipped: true}, nil
	}

	lock := s.warehouseLock(order.StoragePointID)
	lock.Lock()
	defer lock.Unlock()

	lines := make([]RequestedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, RequestedLine{VariantID: line.VariantID, Qty: line.Quantity})
	}

	report, err := s.Availability.Check(ctx, order.StoragePointID, lines, false)
	if err != nil {
		return AllocationOutcome{}, err
	}

	pctx, err := s.buildPlanContext(ctx, order, report)
	if err != nil {
		return AllocationOutcome{}, err
	}
	plan := PlanAllocation(report.Lines, pctx)

	if err := s.persistPlan(ctx, order, plan); err != nil {
		return AllocationOutcome{}, err
	}
	if err := s.States.AdvanceOnAllocation(ctx, order, report.Status, plan); err != nil {
		return AllocationOutcome{}, err
	}

	if s.Logger != nil {
		s.Logger.Info("order allocated",
			zap.Uint64("order_id", order.ID),
			zap.String("availability", string(report.Status)),
			zap.Int("transfers", len(plan.Transfers)),
			zap.Int("purchases", len(plan.Purchases)))
	}
	return AllocationOutcome{OrderID: order.ID, Status: report.Status, Plan: plan}, nil
}

// AllocatePending processes the received queue one order at a time, in fetched
// order. Per-order failures are logged and skipped so one bad order does not
// stall the batch.
func (s *FulfillmentService) AllocatePending(ctx context.Context) (int, error) {
	batch := s.Cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	orders, err := s.Repo.ListOrders(ctx, repository.ListOrdersParams{
		Status: models.OrderStatusReceived,
		Limit:  batch,
	})
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if _, err := s.Allocate(ctx, order.ID); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("batch allocation failed",
					zap.Uint64("order_id", order.ID),
					zap.Error(err))
			}
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *FulfillmentService) buildPlanContext(ctx context.Context, order *models.Order, report AvailabilityReport) (PlanContext, error) {
	warehouse, err := s.Repo.GetWarehouse(ctx, order.StoragePointID)
	if err != nil {
		return PlanContext{}, err
	}
	pctx := PlanContext{
		TargetWarehouseID: order.StoragePointID,
		TargetCity:        warehouse.City,
		DeliveryMode:      order.DeliveryMode,
		TransferEnabled:   s.Cfg.TransferEnabled,
		PurchaseDefaults:  map[uint64]PurchaseDefault{},
	}
	for _, line := range report.Lines {
		if line.Missing <= 0 {
			continue
		}
		def, err := s.purchaseDefault(ctx, line.VariantID)
		if err != nil {
			return PlanContext{}, err
		}
		pctx.PurchaseDefaults[line.VariantID] = def
	}
	return pctx, nil
}

// purchaseDefault attributes the purchase route: last supplier with its last
// cost when known, otherwise the average historical cost with no supplier.
// When neither exists the cost stays zero rather than failing the order.
func (s *FulfillmentService) purchaseDefault(ctx context.Context, variantID uint64) (PurchaseDefault, error) {
	variant, err := s.Repo.GetVariantByID(ctx, variantID)
	if err != nil {
		return PurchaseDefault{}, err
	}
	if variant.SupplierID != nil {
		cost := decimal.Zero
		if variant.LastPurchaseCost != nil {
			cost = *variant.LastPurchaseCost
		}
		return PurchaseDefault{SupplierID: variant.SupplierID, UnitCost: cost}, nil
	}
	avg, err := s.Repo.AveragePurchaseCost(ctx, variantID)
	if err != nil {
		return PurchaseDefault{}, err
	}
	return PurchaseDefault{UnitCost: avg}, nil
}

// persistPlan materializes the plan as Transfer and PurchaseOrder rows with
// sequential references and position-ordered lines. Purchases are grouped into
// one purchase order per supplier.
func (s *FulfillmentService) persistPlan(ctx context.Context, order *models.Order, plan AllocationPlan) error {
	if len(plan.Transfers) == 0 && len(plan.Purchases) == 0 {
		return nil
	}
	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, req := range plan.Transfers {
			seq, err := s.Repo.NextTransferSeqTx(ctx, tx)
			if err != nil {
				return err
			}
			transfer := &models.Transfer{
				Reference:         fmt.Sprintf("TRF-%06d", seq),
				SourceWarehouseID: req.SourceWarehouseID,
				TargetWarehouseID: order.StoragePointID,
				OrderID:           &order.ID,
				Status:            models.TransferStatusRequested,
			}
			for i, line := range req.Lines {
				transfer.Lines = append(transfer.Lines, models.TransferLine{
					Position:  i + 1,
					VariantID: line.VariantID,
					Quantity:  line.Qty,
				})
			}
			if err := s.Repo.InsertTransferTx(ctx, tx, transfer); err != nil {
				return err
			}
		}

		for _, group := range groupPurchasesBySupplier(plan.Purchases) {
			seq, err := s.Repo.NextPurchaseSeqTx(ctx, tx)
			if err != nil {
				return err
			}
			purchase := &models.PurchaseOrder{
				Reference:         fmt.Sprintf("PO-%06d", seq),
				SupplierID:        group.supplierID,
				TargetWarehouseID: order.StoragePointID,
				OrderID:           &order.ID,
				Status:            models.PurchaseStatusRequested,
			}
			for i, req := range group.requests {
				purchase.Lines = append(purchase.Lines, models.PurchaseLine{
					Position:  i + 1,
					VariantID: req.VariantID,
					Quantity:  req.Qty,
					UnitCost:  req.UnitCost,
				})
			}
			if err := s.Repo.InsertPurchaseOrderTx(ctx, tx, purchase); err != nil {
				return err
			}
		}
		return nil
	})
}

type purchaseGroup struct {
	supplierID *uint64
	requests   []PurchaseRequest
}

func groupPurchasesBySupplier(purchases []PurchaseRequest) []purchaseGroup {
	var groups []purchaseGroup
	index := map[uint64]int{}
	noSupplier := -1
	for _, req := range purchases {
		if req.SupplierID == nil {
			if noSupplier < 0 {
				groups = append(groups, purchaseGroup{})
				noSupplier = len(groups) - 1
			}
			groups[noSupplier].requests = append(groups[noSupplier].requests, req)
			continue
		}
		idx, ok := index[*req.SupplierID]
		if !ok {
			groups = append(groups, purchaseGroup{supplierID: req.SupplierID})
			idx = len(groups) - 1
			index[*req.SupplierID] = idx
		}
		groups[idx].requests = append(groups[idx].requests, req)
	}
	return groups
}
