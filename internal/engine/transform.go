package engine

import "salesdash/internal/models"

// Transform filters ds down to the rows whose entity is in sel and sums
// derived_total per group over those rows.
//
// Trend rows keep the dataset's relative order. Breakdown rows come out in the
// order each group is first seen among the trend rows. Keys in sel that the
// dataset does not know are ignored. Both results are non-nil, and empty when
// nothing matches.
func Transform(ds *Dataset, sel Selection) ([]models.TrendRow, []models.BreakdownRow) {
	if ds == nil {
		panic("engine: Transform called with nil dataset")
	}

	trend := make([]models.TrendRow, 0)
	breakdown := make([]models.BreakdownRow, 0)
	if len(sel) == 0 {
		return trend, breakdown
	}

	// Resolve the selection to a bitmap over entity IDs once, so the row loop is a slice lookup.
	wanted := make([]bool, len(ds.entityDict))
	matched := false
	for key := range sel {
		if id, ok := ds.entityIndex[key]; ok {
			wanted[id] = true
			matched = true
		}
	}
	if !matched {
		return trend, breakdown
	}

	groupPos := make(map[int32]int)
	for i, eid := range ds.entityIDs {
		if !wanted[eid] {
			continue
		}
		total := DerivedTotal(ds.quantities[i], ds.unitValues[i])
		trend = append(trend, models.TrendRow{
			Period:       ds.periods[i],
			Entity:       ds.entityDict[eid],
			DerivedTotal: total,
		})

		gid := ds.groupIDs[i]
		pos, ok := groupPos[gid]
		if !ok {
			pos = len(breakdown)
			groupPos[gid] = pos
			breakdown = append(breakdown, models.BreakdownRow{Group: ds.groupDict[gid]})
		}
		breakdown[pos].DerivedTotal += total
	}
	return trend, breakdown
}
