package engine

import (
	"runtime"
	"sync"

	"salesdash/internal/models"
)

type partialAgg struct {
	total     float64
	marginSum float64
	minPeriod int32
	maxPeriod int32
	rows      int
}

// Summarize computes the KPI figures over the whole dataset.
func (ds *Dataset) Summarize() models.Summary {
	n := ds.Len()
	if n == 0 {
		return models.Summary{}
	}

	// 1. Setup Workers
	numWorkers := runtime.NumCPU()
	if numWorkers > n {
		numWorkers = n
	}
	chunkSize := n / numWorkers

	// One slot per worker; merging in slot order keeps float sums reproducible.
	partials := make([]partialAgg, numWorkers)
	var wg sync.WaitGroup

	// 2. Parallel Loop
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if w == numWorkers-1 {
			end = n
		}

		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()

			// Capture slice headers to avoid bounds checks in loop
			qtys := ds.quantities
			vals := ds.unitValues
			periods := ds.periods

			p := partialAgg{minPeriod: periods[s], maxPeriod: periods[s]}
			for j := s; j < e; j++ {
				p.total += DerivedTotal(qtys[j], vals[j])
				p.marginSum += DerivedMargin(vals[j])
				if periods[j] < p.minPeriod {
					p.minPeriod = periods[j]
				}
				if periods[j] > p.maxPeriod {
					p.maxPeriod = periods[j]
				}
				p.rows++
			}
			partials[w] = p
		}(w, start, end)
	}
	wg.Wait()

	// 3. Merge Phase
	sum := models.Summary{
		Rows:        n,
		Entities:    len(ds.entityDict),
		Groups:      len(ds.groupDict),
		FirstPeriod: partials[0].minPeriod,
		LastPeriod:  partials[0].maxPeriod,
	}
	var marginSum float64
	for _, p := range partials {
		sum.TotalDerivedTotal += p.total
		marginSum += p.marginSum
		if p.minPeriod < sum.FirstPeriod {
			sum.FirstPeriod = p.minPeriod
		}
		if p.maxPeriod > sum.LastPeriod {
			sum.LastPeriod = p.maxPeriod
		}
	}
	sum.MeanDerivedMargin = marginSum / float64(n)
	return sum
}
