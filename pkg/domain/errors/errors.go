package errors

import "errors"

// Rejections of registry transitions.
//
// Every error here aborts the attempted operation with no state change.
// Implementations wrap these sentinels (directly or via typed errors in
// dberrors) so that callers can dispatch with errors.Is.
var (
	// emission weight is out of the 0-100 range.
	ErrInvalidEmissionWeight = errors.New("invalid emission weight")

	// input or output schema exceeds the configured maximum size.
	ErrSchemaTooLarge = errors.New("schema too large")

	// evaluation spec URI exceeds the configured maximum size.
	ErrUriTooLarge = errors.New("uri too large")

	// custom task type payload exceeds its bound.
	ErrTaskTypeTooLarge = errors.New("custom task type too large")

	// the registry holds the maximum number of subnets already.
	ErrTooManySubnets = errors.New("too many subnets")

	// the owner holds the maximum number of subnets already.
	ErrOwnerCapacityExceeded = errors.New("owner subnet capacity exceeded")

	// caller is not the owner of the subnet.
	ErrNotAuthorized = errors.New("not authorized")

	// no subnet with the requested id.
	ErrNotFound = errors.New("subnet not found")

	// the subnet has been retired; its fields are frozen.
	ErrAlreadyRetired = errors.New("subnet already retired")

	// the owner's spendable balance cannot cover the deposit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// a counter cannot advance without overflowing.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
