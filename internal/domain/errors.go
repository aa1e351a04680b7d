package domain

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed value reached the domain.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuantity indicates a non-positive ingredient mass.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("already exists")
	// ErrReferentialConflict indicates a delete was refused because the record is still referenced.
	ErrReferentialConflict = errors.New("record is still referenced")
	// ErrUnresolvableAllergen indicates a recipe ingredient conflicts with the
	// user's allergens and no admissible substitute exists.
	ErrUnresolvableAllergen = errors.New("unresolvable allergen")
)
