package domain

import "errors"

var (
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrUnreadableFile     = errors.New("unreadable spreadsheet")
	ErrUnknownDataset     = errors.New("unknown dataset type")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrUnknownMetric      = errors.New("unknown ranking metric")
	ErrStoreNotFound      = errors.New("store not found")
	ErrAmbiguousStore     = errors.New("store name is ambiguous")
	ErrInvalidStore       = errors.New("invalid store")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrAlertAlreadyClosed = errors.New("alert already resolved")
	ErrInvalidThreshold   = errors.New("invalid alert threshold")
	ErrStoreInUse         = errors.New("store has imported snapshots")
)
