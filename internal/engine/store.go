package engine

import (
	"fmt"
	"math"
	"strings"

	"salesdash/internal/models"
)

// Dataset holds the loaded rows in Struct-of-Arrays format.
// It is immutable once built; every accessor returns copies or values.
type Dataset struct {
	// Data Columns (Flat Arrays)
	periods    []int32
	quantities []float64
	unitValues []float64

	// Dictionary Encoded IDs (0..N)
	entityIDs []int32
	groupIDs  []int32

	// Dictionaries (ID -> String), in first-seen order
	entityDict []string
	groupDict  []string

	entityIndex map[string]int32
}

// Len returns the number of rows.
func (ds *Dataset) Len() int { return len(ds.periods) }

// Record materializes row i, including its derived measures.
func (ds *Dataset) Record(i int) models.Record {
	q, u := ds.quantities[i], ds.unitValues[i]
	return models.Record{
		Entity:        ds.entityDict[ds.entityIDs[i]],
		Group:         ds.groupDict[ds.groupIDs[i]],
		Period:        ds.periods[i],
		Quantity:      q,
		UnitValue:     u,
		DerivedMargin: DerivedMargin(u),
		DerivedTotal:  DerivedTotal(q, u),
	}
}

// Entities returns the distinct entity keys in first-seen order.
func (ds *Dataset) Entities() []string {
	out := make([]string, len(ds.entityDict))
	copy(out, ds.entityDict)
	return out
}

// Groups returns the distinct group keys in first-seen order.
func (ds *Dataset) Groups() []string {
	out := make([]string, len(ds.groupDict))
	copy(out, ds.groupDict)
	return out
}

func (ds *Dataset) HasEntity(key string) bool {
	_, ok := ds.entityIndex[key]
	return ok
}

// Builder accumulates rows and dictionary-encodes the key columns.
// A Builder must not be used after Build.
type Builder struct {
	ds       *Dataset
	groupIdx map[string]int32
}

func NewBuilder(sizeHint int) *Builder {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Builder{
		ds: &Dataset{
			periods:     make([]int32, 0, sizeHint),
			quantities:  make([]float64, 0, sizeHint),
			unitValues:  make([]float64, 0, sizeHint),
			entityIDs:   make([]int32, 0, sizeHint),
			groupIDs:    make([]int32, 0, sizeHint),
			entityIndex: make(map[string]int32),
		},
		groupIdx: make(map[string]int32),
	}
}

// Add appends one row. Keys are trimmed; empty keys and non-finite measures are rejected.
func (b *Builder) Add(entity, group string, period int32, quantity, unitValue float64) error {
	entity = strings.TrimSpace(entity)
	group = strings.TrimSpace(group)
	row := len(b.ds.periods)
	if entity == "" {
		return fmt.Errorf("row %d: %w: empty entity", row, ErrInvalidRow)
	}
	if group == "" {
		return fmt.Errorf("row %d: %w: empty group", row, ErrInvalidRow)
	}
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return fmt.Errorf("row %d: %w: quantity %v", row, ErrInvalidRow, quantity)
	}
	if math.IsNaN(unitValue) || math.IsInf(unitValue, 0) {
		return fmt.Errorf("row %d: %w: unit value %v", row, ErrInvalidRow, unitValue)
	}

	ds := b.ds
	eid, ok := ds.entityIndex[entity]
	if !ok {
		eid = int32(len(ds.entityDict))
		ds.entityDict = append(ds.entityDict, entity)
		ds.entityIndex[entity] = eid
	}
	gid, ok := b.groupIdx[group]
	if !ok {
		gid = int32(len(ds.groupDict))
		ds.groupDict = append(ds.groupDict, group)
		b.groupIdx[group] = gid
	}

	ds.periods = append(ds.periods, period)
	ds.quantities = append(ds.quantities, quantity)
	ds.unitValues = append(ds.unitValues, unitValue)
	ds.entityIDs = append(ds.entityIDs, eid)
	ds.groupIDs = append(ds.groupIDs, gid)
	return nil
}

// Build returns the finished dataset. An empty dataset is an error.
func (b *Builder) Build() (*Dataset, error) {
	if b.ds == nil {
		return nil, fmt.Errorf("builder already used")
	}
	ds := b.ds
	b.ds = nil
	if len(ds.periods) == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}
