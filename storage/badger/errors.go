package badger

import "errors"

// ErrBackendRequired is returned when a collection is created without a backend.
var ErrBackendRequired = errors.New("backend required")
