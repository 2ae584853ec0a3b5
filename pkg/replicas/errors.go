package replicas

import "errors"

// Error classification codes.
//
// Implementations MAY wrap these errors with additional context.
// Callers MUST classify errors using errors.Is.
var (
	// ErrAllocFailed indicates a new index buffer could not be allocated.
	ErrAllocFailed = errors.New("replicas: allocation failed")

	// ErrInvalidSection indicates an on-disk replicas section failed
	// validation. The wrapped message carries the stable reason.
	ErrInvalidSection = errors.New("replicas: invalid section")
)

// Stable validation reasons, also surfaced to mount-time diagnostics.
const (
	reasonBadDataKind    = "invalid replicas entry: invalid data type"
	reasonNoDevices      = "invalid replicas entry: no devices"
	reasonTooManyDevices = "invalid replicas entry: too many devices"
	reasonBadDevice      = "invalid replicas entry: invalid device"
	reasonTruncated      = "invalid replicas entry: truncated"
	reasonDuplicate      = "duplicate replicas entry"
)
