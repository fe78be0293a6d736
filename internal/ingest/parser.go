package ingest

import (
	"bytes"
	"fmt"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/resolver"
	"github.com/xuri/excelize/v2"
)

// Workbook wraps an uploaded spreadsheet.
type Workbook struct {
	file *excelize.File
}

// OpenWorkbook reads an xlsx payload. Any failure is structural.
func OpenWorkbook(data []byte) (*Workbook, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrUnreadableFile)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableFile, err)
	}
	return &Workbook{file: f}, nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// FindSheet matches a sheet name ignoring case, accents and spacing.
func (w *Workbook) FindSheet(name string) (string, error) {
	want := resolver.Normalize(name)
	for _, sheet := range w.file.GetSheetList() {
		if resolver.Normalize(sheet) == want {
			return sheet, nil
		}
	}
	return "", fmt.Errorf("%w: %q (available: %v)", domain.ErrSheetNotFound, name, w.file.GetSheetList())
}

// Rows returns the sheet as raw cell values, row-major. Numeric cells keep their
// stored value instead of the display format.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrUnreadableFile, sheet, err)
	}
	return rows, nil
}
