package billruns

import "errors"

var (
	ErrNotFound        = errors.New("bill run not found")
	ErrNotCancellable  = errors.New("bill run cannot be cancelled in its current status")
	ErrInvalidBillRun  = errors.New("invalid bill run")
	ErrInvalidStatusTo = errors.New("invalid status transition")
)
