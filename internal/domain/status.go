package domain

import (
	"fmt"
	"strings"
)

// DatasetType selects one of the closed set of spreadsheet exports.
type DatasetType string

const (
	DatasetResults       DatasetType = "results"
	DatasetComplementary DatasetType = "complementary"
	DatasetSatisfaction  DatasetType = "satisfaction"
)

var datasetLabels = map[DatasetType]string{
	DatasetResults:       "Operational results",
	DatasetComplementary: "Complementary sales",
	DatasetSatisfaction:  "Customer satisfaction",
}

var datasetAliases = map[string]DatasetType{
	"results":        DatasetResults,
	"resultados":     DatasetResults,
	"complementary":  DatasetComplementary,
	"complementares": DatasetComplementary,
	"satisfaction":   DatasetSatisfaction,
	"nps":            DatasetSatisfaction,
}

// AllDatasets lists dataset types in a stable order.
func AllDatasets() []DatasetType {
	return []DatasetType{DatasetResults, DatasetComplementary, DatasetSatisfaction}
}

// Label returns a human-readable dataset name.
func (d DatasetType) Label() string {
	if label, ok := datasetLabels[d]; ok {
		return label
	}
	return string(d)
}

// ParseDatasetType accepts the canonical names and the labels used by the exports (case-insensitive).
func ParseDatasetType(raw string) (DatasetType, error) {
	if d, ok := datasetAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataset, raw)
}

// AlertStatus is the state of an alert: pending until an operator resolves it.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertResolved AlertStatus = "resolved"
)

var alertStatusLabels = map[AlertStatus]string{
	AlertPending:  "Pending",
	AlertResolved: "Resolved",
}

// AlertStatusLabel returns a human-readable label for an alert status.
func AlertStatusLabel(status AlertStatus) string {
	if label, ok := alertStatusLabels[status]; ok {
		return label
	}
	return "Unknown"
}

// ParseAlertStatus returns the status for a given label (case-insensitive).
func ParseAlertStatus(label string) (AlertStatus, bool) {
	status := AlertStatus(strings.ToLower(strings.TrimSpace(label)))
	_, ok := alertStatusLabels[status]
	return status, ok
}

// AlertType identifies the rule that raised an alert.
type AlertType string

const (
	AlertLowPerformance AlertType = "low_performance"
)
