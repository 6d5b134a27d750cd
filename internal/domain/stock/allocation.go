package stock

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
)

// AllocationLine is the amount drawn from a single lot
type AllocationLine struct {
	LotID          uuid.UUID
	Quantity       int
	RemainingInLot int // available units left in the lot after this line
}

// Allocation is the outcome of walking lots in FIFO order for a request
type Allocation struct {
	Requested int
	Allocated int
	Shortage  int
	Lines     []AllocationLine
}

// FullyAllocated reports whether the request was covered in full
func (a *Allocation) FullyAllocated() bool {
	return a.Shortage == 0
}

// SortFIFO orders lots oldest purchase date first, ties broken by ascending ID
func SortFIFO(lots []*Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].PurchaseDate.Equal(lots[j].PurchaseDate) {
			return lots[i].PurchaseDate.Before(lots[j].PurchaseDate)
		}
		return bytes.Compare(lots[i].ID[:], lots[j].ID[:]) < 0
	})
}

// SortLIFO orders lots newest purchase date first, ties broken by descending ID
func SortLIFO(lots []*Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].PurchaseDate.Equal(lots[j].PurchaseDate) {
			return lots[i].PurchaseDate.After(lots[j].PurchaseDate)
		}
		return bytes.Compare(lots[i].ID[:], lots[j].ID[:]) > 0
	})
}

// AllocateFIFO plans how to satisfy requested units from lots, oldest first.
// Lots with nothing available are skipped. The lots are not modified.
func AllocateFIFO(requested int, lots []*Lot) (*Allocation, error) {
	if requested <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Requested quantity must be positive")
	}

	ordered := make([]*Lot, 0, len(lots))
	for _, lot := range lots {
		if lot != nil && lot.Available() > 0 {
			ordered = append(ordered, lot)
		}
	}
	SortFIFO(ordered)

	alloc := &Allocation{
		Requested: requested,
		Lines:     make([]AllocationLine, 0),
	}
	remaining := requested
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		take := min(remaining, lot.Available())
		alloc.Lines = append(alloc.Lines, AllocationLine{
			LotID:          lot.ID,
			Quantity:       take,
			RemainingInLot: lot.Available() - take,
		})
		alloc.Allocated += take
		remaining -= take
	}
	alloc.Shortage = remaining
	return alloc, nil
}

// ApplyAllocation consumes every line of alloc on the matching lot.
// On failure the lots already consumed are rolled back.
func ApplyAllocation(alloc *Allocation, lots map[uuid.UUID]*Lot) error {
	for i, line := range alloc.Lines {
		lot, ok := lots[line.LotID]
		if !ok {
			rollbackAllocation(alloc.Lines[:i], lots)
			return shared.ErrNotFound.WithDetails(map[string]any{"lot_id": line.LotID.String()})
		}
		if err := lot.Consume(line.Quantity); err != nil {
			rollbackAllocation(alloc.Lines[:i], lots)
			return err
		}
	}
	return nil
}

func rollbackAllocation(lines []AllocationLine, lots map[uuid.UUID]*Lot) {
	for _, line := range lines {
		if lot, ok := lots[line.LotID]; ok {
			_ = lot.Restore(line.Quantity)
		}
	}
}

// Consumption attributes units of a lot to the sale item that drew them
type Consumption struct {
	shared.BaseEntity
	SaleItemID uuid.UUID
	LotID      uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	Sequence   int // draw order within the item, starting at 1
}

// ConsumptionsFromAllocation turns an allocation into attribution records
func ConsumptionsFromAllocation(saleItemID, productID uuid.UUID, alloc *Allocation) []Consumption {
	out := make([]Consumption, 0, len(alloc.Lines))
	for i, line := range alloc.Lines {
		out = append(out, Consumption{
			BaseEntity: shared.NewBaseEntity(),
			SaleItemID: saleItemID,
			LotID:      line.LotID,
			ProductID:  productID,
			Quantity:   line.Quantity,
			Sequence:   i + 1,
		})
	}
	return out
}

// IndexLots builds an ID index over lots
func IndexLots(lots []*Lot) map[uuid.UUID]*Lot {
	idx := make(map[uuid.UUID]*Lot, len(lots))
	for _, lot := range lots {
		idx[lot.ID] = lot
	}
	return idx
}
