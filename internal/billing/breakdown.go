package billing

import "math"

// UnitProfile carries the unit attributes the breakdown computation needs.
type UnitProfile struct {
	AreaSqft      float64
	OwnerOccupied bool
}

// ComputeBreakdown itemises a unit's charges from the ordered charge-head
// list. It is pure: no I/O, no clock.
//
// Two passes, both in list order. Pass 1 computes per_area and fixed heads,
// recording each amount under the head's name. Pass 2 computes percentage_of
// heads against the pass-1 amounts: the named head's amount when it exists,
// otherwise the running total accumulated so far. Percentage heads never
// compound on each other, and the occupancy filter does not apply to them.
//
// Every line is rounded to the nearest rupee independently, so the returned
// total is always the exact integer sum of the lines.
func ComputeBreakdown(unit UnitProfile, heads []ChargeHead) ([]BreakdownLine, int64) {
	breakdown := make([]BreakdownLine, 0, len(heads))
	amountByName := make(map[string]int64, len(heads))
	var total int64

	for _, head := range heads {
		if !head.Active || head.Type == ComputePercentage {
			continue
		}
		if head.NonOccupancyOnly && unit.OwnerOccupied {
			// Skipped entirely: no line, and no entry for pass-2 lookups.
			continue
		}
		var amount int64
		switch head.Type {
		case ComputePerArea:
			amount = roundRupees(head.Rate * unit.AreaSqft)
		case ComputeFixed:
			amount = roundRupees(head.Rate)
		}
		amountByName[head.Name] = amount
		breakdown = append(breakdown, BreakdownLine{ChargeName: head.Name, Amount: amount})
		total += amount
	}

	passOneTotal := total
	for _, head := range heads {
		if !head.Active || head.Type != ComputePercentage {
			continue
		}
		base, ok := amountByName[head.PercentageOf]
		if !ok {
			base = passOneTotal
		}
		amount := roundRupees(head.Rate / 100 * float64(base))
		breakdown = append(breakdown, BreakdownLine{ChargeName: head.Name, Amount: amount})
		total += amount
	}

	return breakdown, total
}

func roundRupees(v float64) int64 {
	return int64(math.Round(v))
}
