package streamdraw

import "errors"

// Engine errors.
var (
	// ErrBudgetExceedsCapacity is returned at construction when a per-cycle
	// window budget does not fit into its stream buffer. The workload cannot
	// run with this configuration; fix the sizes rather than handling this
	// at runtime.
	ErrBudgetExceedsCapacity = errors.New("streamdraw: per-cycle budget exceeds stream buffer capacity")

	// ErrWriteTooLarge is returned when a reservation request exceeds the
	// stream buffer capacity.
	ErrWriteTooLarge = errors.New("streamdraw: write request exceeds stream buffer capacity")

	// ErrCommitTooLarge is returned when EndWrite commits more bytes than
	// the matching BeginWrite reserved.
	ErrCommitTooLarge = errors.New("streamdraw: commit exceeds reserved window size")

	// ErrAlreadyMapped is returned when BeginWrite is called while a window
	// is still open on the same stream buffer.
	ErrAlreadyMapped = errors.New("streamdraw: stream buffer already has an open window")

	// ErrNotMapped is returned when EndWrite is called with no open window.
	ErrNotMapped = errors.New("streamdraw: stream buffer has no open window")

	// ErrFenceStall is returned when the device did not release a wrapped
	// buffer region within the wait cap. Usually means the buffer is
	// undersized for the workload.
	ErrFenceStall = errors.New("streamdraw: timed out waiting for device to release buffer space")
)
