package service

import (
	"github.com/shopspring/decimal"

	"stockroom/internal/models"
)

type PlanLine struct {
	VariantID uint64
	Qty       int
}

type TransferRequest struct {
	SourceWarehouseID uint64
	Lines             []PlanLine
}

type PurchaseRequest struct {
	VariantID  uint64
	Qty        int
	UnitCost   decimal.Decimal
	SupplierID *uint64
}

type AllocationPlan struct {
	Transfers []TransferRequest
	Purchases []PurchaseRequest
}

// PurchaseDefault is the supplier/cost attribution for a variant that ends up
// on the purchase route: most recent supplier with its last cost when one
// exists, otherwise the average historical cost with no supplier, otherwise
// zero cost. A missing cost never blocks the plan.
type PurchaseDefault struct {
	SupplierID *uint64
	UnitCost   decimal.Decimal
}

type PlanContext struct {
	TargetWarehouseID uint64
	TargetCity        string
	DeliveryMode      string
	TransferEnabled   bool
	PurchaseDefaults  map[uint64]PurchaseDefault
}

type transferTake struct {
	sourceWarehouseID uint64
	qty               int
}

// A transferPolicy consumes part of a line's shortfall from candidate source
// warehouses and returns what it took plus the remainder. Policies are pure
// and evaluated in priority order.
type transferPolicy func(line LineAvailability, pctx PlanContext, remaining int) ([]transferTake, int)

func sameCityPolicy(line LineAvailability, pctx PlanContext, remaining int) ([]transferTake, int) {
	return takeFromCandidates(line, pctx, remaining, true)
}

func otherCityPolicy(line LineAvailability, pctx PlanContext, remaining int) ([]transferTake, int) {
	return takeFromCandidates(line, pctx, remaining, false)
}

// takeFromCandidates greedily consumes localisations (already ranked by held
// quantity, descending) matching the city predicate.
func takeFromCandidates(line LineAvailability, pctx PlanContext, remaining int, sameCity bool) ([]transferTake, int) {
	var takes []transferTake
	for _, loc := range line.Localisations {
		if remaining <= 0 {
			break
		}
		if loc.WarehouseID == pctx.TargetWarehouseID || loc.Qty <= 0 {
			continue
		}
		if (loc.City == pctx.TargetCity) != sameCity {
			continue
		}
		qty := loc.Qty
		if qty > remaining {
			qty = remaining
		}
		takes = append(takes, transferTake{sourceWarehouseID: loc.WarehouseID, qty: qty})
		remaining -= qty
	}
	return takes, remaining
}

var transferPolicies = []transferPolicy{sameCityPolicy, otherCityPolicy}

// PlanAllocation turns per-line shortfalls into transfer requests and purchase
// requests. For every line, transferred plus purchased quantity equals the
// shortfall exactly, and no zero-quantity entry survives.
func PlanAllocation(lines []LineAvailability, pctx PlanContext) AllocationPlan {
	plan := AllocationPlan{}
	transferAllowed := pctx.TransferEnabled && pctx.DeliveryMode != models.DeliveryInAgency

	transferIdx := map[uint64]int{}
	for _, line := range lines {
		remaining := line.Missing
		if remaining <= 0 {
			continue
		}

		if transferAllowed {
			for _, policy := range transferPolicies {
				var takes []transferTake
				takes, remaining = policy(line, pctx, remaining)
				for _, take := range takes {
					if take.qty <= 0 {
						continue
					}
					idx, ok := transferIdx[take.sourceWarehouseID]
					if !ok {
						plan.Transfers = append(plan.Transfers, TransferRequest{
							SourceWarehouseID: take.sourceWarehouseID,
						})
						idx = len(plan.Transfers) - 1
						transferIdx[take.sourceWarehouseID] = idx
					}
					mergeTransferLine(&plan.Transfers[idx], line.VariantID, take.qty)
				}
				if remaining <= 0 {
					break
				}
			}
		}

		if remaining > 0 {
			def := pctx.PurchaseDefaults[line.VariantID]
			plan.Purchases = append(plan.Purchases, PurchaseRequest{
				VariantID:  line.VariantID,
				Qty:        remaining,
				UnitCost:   def.UnitCost,
				SupplierID: def.SupplierID,
			})
		}
	}
	return plan
}

// mergeTransferLine folds repeated consumption of the same (source, variant)
// pair into one request line instead of duplicating it.
func mergeTransferLine(req *TransferRequest, variantID uint64, qty int) {
	for i := range req.Lines {
		if req.Lines[i].VariantID == variantID {
			req.Lines[i].Qty += qty
			return
		}
	}
	req.Lines = append(req.Lines, PlanLine{VariantID: variantID, Qty: qty})
}

// TransferQty sums the planned transfer quantity of one variant.
func (p AllocationPlan) TransferQty(variantID uint64) int {
	total := 0
	for _, req := range p.Transfers {
		for _, line := range req.Lines {
			if line.VariantID == variantID {
				total += line.Qty
			}
		}
	}
	return total
}

// PurchaseQty sums the planned purchase quantity of one variant.
func (p AllocationPlan) PurchaseQty(variantID uint64) int {
	total := 0
	for _, req := range p.Purchases {
		if req.VariantID == variantID {
			total += req.Qty
		}
	}
	return total
}
