package service

import (
	"context"

	"go.uber.org/zap"

	"stockroom/internal/models"
	"stockroom/internal/repository"
)

type AvailabilityStatus string

const (
	AvailabilityAll  AvailabilityStatus = "ALL"
	AvailabilitySome AvailabilityStatus = "SOME"
	AvailabilityNone AvailabilityStatus = "NONE"
)

type RequestedLine struct {
	VariantID uint64
	Qty       int
}

// Localisation is a candidate source warehouse for a shortfall, ranked by the
// quantity it holds.
type Localisation struct {
	WarehouseID uint64
	City        string
	Qty         int
}

type LineAvailability struct {
	VariantID     uint64
	Requested     int
	Found         int
	Missing       int
	Localisations []Localisation
}

type AvailabilityReport struct {
	Status AvailabilityStatus
	Lines  []LineAvailability
}

// AvailabilityService answers "how much of this order can the target warehouse
// satisfy right now". It never mutates stock.
type AvailabilityService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// Check counts stock units of each requested variant inside the warehouse's
// location set. Deep mode also counts reserved units, which matters when
// re-checking after a stock-in: those units are already earmarked for the
// order and must not be declared missing again.
func (s *AvailabilityService) Check(ctx context.Context, warehouseID uint64, lines []RequestedLine, deep bool) (AvailabilityReport, error) {
	if _, err := s.Repo.GetWarehouse(ctx, warehouseID); err != nil {
		return AvailabilityReport{}, err
	}
	locationIDs, err := s.Repo.ListWarehouseLocationIDs(ctx, warehouseID)
	if err != nil {
		return AvailabilityReport{}, err
	}

	states := []string{models.StockAvailable}
	if deep {
		states = append(states, models.StockReserved)
	}

	report := AvailabilityReport{Lines: make([]LineAvailability, 0, len(lines))}
	satisfied := 0
	for _, line := range lines {
		if _, err := s.Repo.GetVariantByID(ctx, line.VariantID); err != nil {
			return AvailabilityReport{}, err
		}
		found, err := s.Repo.CountStock(ctx, line.VariantID, locationIDs, states)
		if err != nil {
			return AvailabilityReport{}, err
		}
		missing := line.Qty - found
		if missing < 0 {
			missing = 0
		}

		avail := LineAvailability{
			VariantID: line.VariantID,
			Requested: line.Qty,
			Found:     found,
			Missing:   missing,
		}
		if missing > 0 {
			stock, err := s.Repo.StockByWarehouse(ctx, line.VariantID, []string{models.StockAvailable})
			if err != nil {
				return AvailabilityReport{}, err
			}
			for _, row := range stock {
				if row.WarehouseID == warehouseID || row.Qty <= 0 {
					continue
				}
				avail.Localisations = append(avail.Localisations, Localisation{
					WarehouseID: row.WarehouseID,
					City:        row.City,
					Qty:         row.Qty,
				})
			}
		} else {
			satisfied++
		}
		report.Lines = append(report.Lines, avail)
	}

	switch {
	case satisfied == len(lines):
		report.Status = AvailabilityAll
	case satisfied == 0:
		report.Status = AvailabilityNone
	default:
		report.Status = AvailabilitySome
	}
	return report, nil
}
