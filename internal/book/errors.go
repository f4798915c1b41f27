package book

import "errors"

// Error kinds for the book/ladder layer (spec §7: Validation, Invariant).
var (
	// ErrNegativeSize means an apply would produce a negative stored size.
	// The spec's Open Question on negative-size deltas is resolved as an
	// error, never an implicit subtraction.
	ErrNegativeSize = errors.New("book: negative size rejected")

	// ErrUnknownSide means a side value outside {Bid, Ask} was supplied.
	ErrUnknownSide = errors.New("book: unknown side")

	// ErrInvariantViolation marks a programming error: e.g. removal of a
	// level whose stored size became inconsistent with bookkeeping. Fatal
	// for the Book it occurred on.
	ErrInvariantViolation = errors.New("book: invariant violation")
)
