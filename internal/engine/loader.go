package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Columns names the CSV header fields that feed each Record attribute.
type Columns struct {
	Entity    string
	Group     string
	Period    string
	Quantity  string
	UnitValue string
}

// GapminderColumns maps the gapminder layout: country, continent, year, pop, gdpPercap.
func GapminderColumns() Columns {
	return Columns{
		Entity:    "country",
		Group:     "continent",
		Period:    "year",
		Quantity:  "pop",
		UnitValue: "gdpPercap",
	}
}

func (c Columns) names() []string {
	return []string{c.Entity, c.Group, c.Period, c.Quantity, c.UnitValue}
}

// Validate reports empty or duplicated column names.
func (c Columns) Validate() error {
	seen := make(map[string]bool, 5)
	for _, name := range c.names() {
		if name == "" {
			return fmt.Errorf("%w: empty column name", ErrMissingColumn)
		}
		if seen[name] {
			return fmt.Errorf("duplicate column name %q", name)
		}
		seen[name] = true
	}
	return nil
}

const loadChunkRows = 4096

// LoadCSV parses a header-first CSV stream into a Dataset. Only the five mapped
// columns are read; any other column is ignored. Input without a single data
// row yields ErrEmptyDataset.
func LoadCSV(r io.Reader, cols Columns) (*Dataset, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}

	body, hasRows, err := peekDataRows(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if !hasRows {
		return nil, ErrEmptyDataset
	}

	rdr := csv.NewInferringReader(body,
		csv.WithAllocator(memory.NewGoAllocator()),
		csv.WithHeader(true),
		csv.WithChunk(loadChunkRows),
		csv.WithIncludeColumns(cols.names()),
		csv.WithColumnTypes(map[string]arrow.DataType{
			cols.Entity:    arrow.BinaryTypes.String,
			cols.Group:     arrow.BinaryTypes.String,
			cols.Period:    arrow.PrimitiveTypes.Int32,
			cols.Quantity:  arrow.PrimitiveTypes.Float64,
			cols.UnitValue: arrow.PrimitiveTypes.Float64,
		}),
		csv.WithNullReader(true, "", "NA"),
	)
	defer rdr.Release()

	b := NewBuilder(loadChunkRows)
	for rdr.Next() {
		if err := appendRecord(b, rdr.Record(), cols); err != nil {
			return nil, err
		}
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return b.Build()
}

// peekDataRows reads the header line and any blank lines after it, reporting
// whether anything follows. The returned reader replays the consumed bytes.
// The csv reader cannot build a record from a header with no rows.
func peekDataRows(r io.Reader) (io.Reader, bool, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}

	var blank []byte
	for {
		c, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if c != '\n' && c != '\r' {
			if err := br.UnreadByte(); err != nil {
				return nil, false, err
			}
			break
		}
		blank = append(blank, c)
	}
	return io.MultiReader(bytes.NewReader(header), bytes.NewReader(blank), br), true, nil
}

// LoadFile opens path and delegates to LoadCSV.
func LoadFile(path string, cols Columns) (*Dataset, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := LoadCSV(f, cols)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("Dataset file loaded", "path", path, "rows", ds.Len(), "duration_ms", time.Since(start).Milliseconds())
	return ds, nil
}

func appendRecord(b *Builder, rec arrow.Record, cols Columns) error {
	entities, err := stringColumn(rec, cols.Entity)
	if err != nil {
		return err
	}
	groups, err := stringColumn(rec, cols.Group)
	if err != nil {
		return err
	}
	periods, err := columnByName[*array.Int32](rec, cols.Period)
	if err != nil {
		return err
	}
	quantities, err := columnByName[*array.Float64](rec, cols.Quantity)
	if err != nil {
		return err
	}
	unitValues, err := columnByName[*array.Float64](rec, cols.UnitValue)
	if err != nil {
		return err
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		if entities.IsNull(i) || groups.IsNull(i) || periods.IsNull(i) || quantities.IsNull(i) || unitValues.IsNull(i) {
			return fmt.Errorf("%w: null field at batch row %d", ErrInvalidRow, i)
		}
		if err := b.Add(entities.Value(i), groups.Value(i), periods.Value(i), quantities.Value(i), unitValues.Value(i)); err != nil {
			return err
		}
	}
	return nil
}

func stringColumn(rec arrow.Record, name string) (*array.String, error) {
	return columnByName[*array.String](rec, name)
}

func columnByName[T arrow.Array](rec arrow.Record, name string) (T, error) {
	var zero T
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return zero, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	col, ok := rec.Column(idx[0]).(T)
	if !ok {
		return zero, fmt.Errorf("column %q: unexpected type %s", name, rec.Column(idx[0]).DataType())
	}
	return col, nil
}
