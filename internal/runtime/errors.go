package runtime

import "errors"

var (
	// ErrModelNotFound is returned by Load when the identifier does not resolve.
	ErrModelNotFound = errors.New("model not found")
	// ErrDependencyUnavailable signals a missing runtime dependency
	// (llama-server binary, CGO bindings).
	ErrDependencyUnavailable = errors.New("runtime dependency unavailable")
	// ErrDeviceMismatch is returned by Model.To when the runtime cannot
	// move an already-placed model.
	ErrDeviceMismatch = errors.New("model cannot be moved to requested device")
)
