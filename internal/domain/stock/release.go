package stock

import (
	"sort"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/shared"
)

// ReleaseLine is one lot to give units back to
type ReleaseLine struct {
	LotID         uuid.UUID
	ConsumptionID *uuid.UUID // nil on the legacy path
	Quantity      int
}

// ReleasePlan describes how an item's consumed units go back to lots.
// Blocked counts units that cannot be returned without disturbing
// consumption attributed to other items.
type ReleasePlan struct {
	Requested  int
	Restorable int
	Blocked    int
	Lines      []ReleaseLine
	BlockedOn  []uuid.UUID
}

// Clean reports whether every unit can be returned
func (p *ReleasePlan) Clean() bool {
	return p.Blocked == 0
}

// PlanRelease walks an item's consumptions most recent first.
//
// claims holds, per lot, the total units attributed to all items including
// this one. A line is blocked if the lot is gone or if restoring it would
// push OutQuantity below what other items still hold on it.
func PlanRelease(consumptions []Consumption, lots map[uuid.UUID]*Lot, claims map[uuid.UUID]int) *ReleasePlan {
	ordered := make([]Consumption, len(consumptions))
	copy(ordered, consumptions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence > ordered[j].Sequence
	})

	plan := &ReleasePlan{Lines: make([]ReleaseLine, 0, len(ordered))}
	projected := make(map[uuid.UUID]int)
	ownByLot := make(map[uuid.UUID]int)
	for _, c := range ordered {
		ownByLot[c.LotID] += c.Quantity
	}

	for _, c := range ordered {
		plan.Requested += c.Quantity
		lot, ok := lots[c.LotID]
		if !ok {
			plan.Blocked += c.Quantity
			plan.BlockedOn = append(plan.BlockedOn, c.LotID)
			continue
		}
		out, seen := projected[c.LotID]
		if !seen {
			out = lot.OutQuantity
		}
		others := max(claims[c.LotID]-ownByLot[c.LotID], 0)
		if out-c.Quantity < others {
			plan.Blocked += c.Quantity
			plan.BlockedOn = append(plan.BlockedOn, c.LotID)
			continue
		}
		id := c.ID
		plan.Lines = append(plan.Lines, ReleaseLine{
			LotID:         c.LotID,
			ConsumptionID: &id,
			Quantity:      c.Quantity,
		})
		projected[c.LotID] = out - c.Quantity
		plan.Restorable += c.Quantity
	}
	return plan
}

// PlanLegacyRelease handles delivered items with no recorded consumptions.
// It walks the product's lots newest purchase first and restores
// min(unattributed out, remaining) from each.
func PlanLegacyRelease(quantity int, lots []*Lot, claims map[uuid.UUID]int) *ReleasePlan {
	ordered := make([]*Lot, len(lots))
	copy(ordered, lots)
	SortLIFO(ordered)

	plan := &ReleasePlan{Requested: quantity, Lines: make([]ReleaseLine, 0)}
	remaining := quantity
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		free := lot.OutQuantity - claims[lot.ID]
		if free <= 0 {
			continue
		}
		give := min(free, remaining)
		plan.Lines = append(plan.Lines, ReleaseLine{LotID: lot.ID, Quantity: give})
		plan.Restorable += give
		remaining -= give
	}
	plan.Blocked = remaining
	return plan
}

// ApplyRelease restores every line of the plan on the matching lot.
// On failure the lots already restored are consumed again.
func ApplyRelease(plan *ReleasePlan, lots map[uuid.UUID]*Lot) error {
	for i, line := range plan.Lines {
		lot, ok := lots[line.LotID]
		if !ok {
			rollbackRelease(plan.Lines[:i], lots)
			return shared.ErrNotFound.WithDetails(map[string]any{"lot_id": line.LotID.String()})
		}
		if err := lot.Restore(line.Quantity); err != nil {
			rollbackRelease(plan.Lines[:i], lots)
			return err
		}
	}
	return nil
}

func rollbackRelease(lines []ReleaseLine, lots map[uuid.UUID]*Lot) {
	for _, line := range lines {
		if lot, ok := lots[line.LotID]; ok {
			_ = lot.Consume(line.Quantity)
		}
	}
}
