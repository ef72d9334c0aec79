package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const gapminderCSV = `country,continent,year,lifeExp,pop,gdpPercap,iso_alpha,iso_num
Germany,Europe,2002,78.67,82350671,30035.80,DEU,276
France,Europe,2002,79.59,59925035,28926.03,FRA,250
Germany,Europe,2007,79.41,82400996,32170.37,DEU,276
Japan,Asia,2007,82.60,127467972,31656.07,JPN,392
`

func TestLoadCSV(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(gapminderCSV), GapminderColumns())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	if ds.Len() != 4 {
		t.Fatalf("Expected 4 rows, got %d", ds.Len())
	}

	// Row 0 Check
	r := ds.Record(0)
	if r.Entity != "Germany" || r.Group != "Europe" || r.Period != 2002 {
		t.Errorf("Row 0 keys: got %+v", r)
	}
	if r.Quantity != 82350671 {
		t.Errorf("Row 0 Quantity: expected 82350671, got %f", r.Quantity)
	}
	q, u := 82350671.0, 30035.80
	if r.DerivedTotal != q*u {
		t.Errorf("Row 0 DerivedTotal: got %f", r.DerivedTotal)
	}

	// Dictionary Checks
	if got := ds.Entities(); strings.Join(got, ",") != "Germany,France,Japan" {
		t.Errorf("Expected first-seen entity order, got %v", got)
	}
	if got := ds.Groups(); len(got) != 2 {
		t.Errorf("Expected 2 unique groups, got %d", len(got))
	}
}

func TestLoadCSVCustomColumns(t *testing.T) {
	data := "region,store,month,units,price\nNorth,S1,202401,3,2.5\nSouth,S2,202401,4,1.0\n"
	cols := Columns{Entity: "store", Group: "region", Period: "month", Quantity: "units", UnitValue: "price"}

	ds, err := LoadCSV(strings.NewReader(data), cols)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if r := ds.Record(1); r.Entity != "S2" || r.Group != "South" || r.DerivedTotal != 4 {
		t.Errorf("unexpected row: %+v", r)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty input", "", ErrEmptyDataset},
		{"header only", "country,continent,year,pop,gdpPercap\n", ErrEmptyDataset},
		{"header without newline", "country,continent,year,pop,gdpPercap", ErrEmptyDataset},
		{"header and blank lines", "country,continent,year,pop,gdpPercap\r\n\r\n\n", ErrEmptyDataset},
		{"null entity", "country,continent,year,pop,gdpPercap\n,A,2000,1,2\n", ErrInvalidRow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.data), GapminderColumns())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("country,continent,year,pop\nX,A,2000,1\n"), GapminderColumns())
	if err == nil {
		t.Fatal("expected error when gdpPercap is absent")
	}
	if errors.Is(err, ErrEmptyDataset) {
		t.Errorf("missing column reported as empty dataset: %v", err)
	}
}

func TestLoadCSVMalformedValueIsNotEmpty(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"non-numeric quantity", "country,continent,year,pop,gdpPercap\nX,A,2000,abc,2\n"},
		{"non-numeric period", "country,continent,year,pop,gdpPercap\nX,A,y2k,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.data), GapminderColumns())
			if err == nil {
				t.Fatal("expected parse error")
			}
			if errors.Is(err, ErrEmptyDataset) {
				t.Errorf("parse failure reported as empty dataset: %v", err)
			}
			if !strings.Contains(err.Error(), "read csv") {
				t.Errorf("expected read csv context, got %v", err)
			}
		})
	}
}

func TestLoadCSVBlankLineAfterHeader(t *testing.T) {
	data := "country,continent,year,pop,gdpPercap\n\nX,A,2000,2,3\n"
	ds, err := LoadCSV(strings.NewReader(data), GapminderColumns())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if ds.Len() != 1 || ds.Record(0).DerivedTotal != 6 {
		t.Errorf("unexpected dataset: len=%d first=%+v", ds.Len(), ds.Record(0))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(gapminderCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadFile(path, GapminderColumns())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("Expected 4 rows, got %d", ds.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), GapminderColumns()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestColumnsValidate(t *testing.T) {
	if err := GapminderColumns().Validate(); err != nil {
		t.Fatalf("gapminder columns: %v", err)
	}
	c := GapminderColumns()
	c.Group = ""
	if err := c.Validate(); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
	c = GapminderColumns()
	c.Group = c.Entity
	if err := c.Validate(); err == nil {
		t.Error("expected duplicate column error")
	}
}
