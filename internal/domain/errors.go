package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrStaleTarget       = errors.New("stale target")
	ErrVersionProcessing = errors.New("version still processing")
	ErrVersionReferenced = errors.New("version referenced as parent")
	ErrLockedRoot        = errors.New("root version cannot be deleted")
	ErrResizeInFlight    = errors.New("resize already in flight")
	ErrProviderFailure   = errors.New("provider failure")
	ErrRestoreFailed     = errors.New("session restore failed")
	ErrInvalidTarget     = errors.New("invalid edit target")
	ErrInvalidIndex      = errors.New("version index out of range")
	ErrBaseProtected     = errors.New("base version cannot be deleted")
	ErrVariationBusy     = errors.New("variation has a generation in flight")
	ErrNotCompleted      = errors.New("current version is not completed")
	ErrComparisonBounds  = errors.New("comparison needs at least two versions")
	ErrComparisonSame    = errors.New("comparison indices must differ")
)
