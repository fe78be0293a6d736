package domain

import "fmt"

// ImportRequest is one uploaded spreadsheet to ingest.
type ImportRequest struct {
	Dataset    DatasetType
	Period     Period
	UploadedBy string
	Filename   string
	Data       []byte
}

// RowError describes a row that could not be stored. Row is 1-based, as shown by spreadsheet tools.
type RowError struct {
	Row     int    `json:"row"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return e.Message
}

// ImportOutcome is returned to the uploader and never persisted.
type ImportOutcome struct {
	ImportID       string      `json:"import_id"`
	Dataset        DatasetType `json:"dataset"`
	Period         Period      `json:"period"`
	Filename       string      `json:"filename"`
	Sheet          string      `json:"sheet"`
	SuccessCount   int         `json:"success_count"`
	SkippedRows    int         `json:"skipped_rows"`
	TotalsImported bool        `json:"totals_imported"`
	Errors         []RowError  `json:"errors"`
}

// Messages flattens the row errors into display strings.
func (o *ImportOutcome) Messages() []string {
	msgs := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func (o *ImportOutcome) String() string {
	return fmt.Sprintf("%s %s: %d stored, %d skipped, %d errors", o.Dataset, o.Period, o.SuccessCount, o.SkippedRows, len(o.Errors))
}

// StoreImportResult is the per-row report of a registry import.
type StoreImportResult struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	StoreID int64  `json:"store_id,omitempty"`
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}
