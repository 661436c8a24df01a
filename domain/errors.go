package domain

import "errors"

// Error taxonomy shared by adapters and services. Adapters wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	// ErrNotFound is returned by the record store when a listing has no order.
	ErrNotFound = errors.New("not found")

	// ErrTransport marks an I/O failure on the device link.
	ErrTransport = errors.New("transport fault")

	// ErrProtocol marks a malformed or unrecognized device line.
	ErrProtocol = errors.New("protocol parse error")

	// ErrHardware marks a camera init or capture failure.
	ErrHardware = errors.New("hardware fault")

	// ErrAnalysis marks a vision service failure.
	ErrAnalysis = errors.New("analysis fault")

	// ErrLookup marks an unavailable record store.
	ErrLookup = errors.New("lookup fault")

	// ErrConfig marks an unusable startup configuration.
	ErrConfig = errors.New("invalid configuration")
)
