package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store or upstream
//   - ErrConflict: entity already exists (dedupe key seen, duplicate row)
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: resource unusable (poisoned lock, open circuit, upstream down)
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
