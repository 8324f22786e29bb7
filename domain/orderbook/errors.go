package orderbook

import "errors"

var (
	// ErrOffsetRegression is returned when an input offset is not strictly
	// greater than the book's watermark. It guards replay and duplicate
	// delivery from reapplying a command.
	ErrOffsetRegression = errors.New("orderbook: input offset not beyond watermark")

	// ErrCorruptSnapshot is returned when a snapshot payload cannot be
	// decoded into a consistent book.
	ErrCorruptSnapshot = errors.New("orderbook: corrupt snapshot")
)
