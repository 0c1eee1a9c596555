package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrOutOfStock is wrapped with the first failing line item so checkout
	// can report exactly which variant could not be satisfied.
	ErrOutOfStock = errors.New("out of stock")

	// ErrNotYourOrder and ErrIllegalTransition both map to 403 but keep
	// "not your order" distinguishable from "not a legal transition now".
	ErrNotYourOrder      = errors.New("not your order")
	ErrIllegalTransition = errors.New("illegal status transition")
)
