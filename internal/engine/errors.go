package engine

import "errors"

var (
	ErrEmptyDataset  = errors.New("dataset has no rows")
	ErrInvalidRow    = errors.New("invalid row")
	ErrMissingColumn = errors.New("missing column")
)
