package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrFolderNotFound = errors.New("drive folder not found")

// Source is the part of Drive the ingester needs.
type Source interface {
	ListSpreadsheets(ctx context.Context, folderID string) ([]*File, error)
	Fetch(ctx context.Context, fileID string) (*File, []byte, error)
}

// Importer runs one spreadsheet import (service.ImportService in production).
type Importer interface {
	Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportOutcome, error)
}

// ImportTarget says which dataset and month a Drive file holds.
type ImportTarget struct {
	Dataset    domain.DatasetType
	Period     domain.Period
	UploadedBy string
}

type IngestService struct {
	source   Source
	importer Importer
}

func NewIngestService(source Source, importer Importer) *IngestService {
	return &IngestService{source: source, importer: importer}
}

// IngestFile downloads one Drive spreadsheet and feeds it to the importer.
func (s *IngestService) IngestFile(ctx context.Context, fileID string, target ImportTarget) (*domain.ImportOutcome, error) {
	file, data, err := s.source.Fetch(ctx, fileID)
	if err != nil {
		return nil, err
	}

	uploadedBy := target.UploadedBy
	if uploadedBy == "" {
		uploadedBy = "drive"
	}
	outcome, err := s.importer.Import(ctx, domain.ImportRequest{
		Dataset:    target.Dataset,
		Period:     target.Period,
		UploadedBy: uploadedBy,
		Filename:   file.Name,
		Data:       data,
	})
	if err != nil {
		return outcome, fmt.Errorf("import of drive file %s failed: %w", file.Name, err)
	}

	log.Info().
		Str("file_id", fileID).
		Str("file", file.Name).
		Str("import_id", outcome.ImportID).
		Int("stored", outcome.SuccessCount).
		Int("errors", len(outcome.Errors)).
		Msg("drive: file imported")
	return outcome, nil
}

// FolderResult is the per-file report of a folder import.
type FolderResult struct {
	FileID  string                `json:"file_id"`
	Name    string                `json:"name"`
	Outcome *domain.ImportOutcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// IngestFolder imports every spreadsheet of a folder into the same dataset and
// period. A failing file is reported and does not stop the others.
func (s *IngestService) IngestFolder(ctx context.Context, folderID string, target ImportTarget) ([]FolderResult, error) {
	files, err := s.source.ListSpreadsheets(ctx, folderID)
	if err != nil {
		return nil, err
	}

	results := make([]FolderResult, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := FolderResult{FileID: f.ID, Name: f.Name}
		outcome, err := s.IngestFile(ctx, f.ID, target)
		res.Outcome = outcome
		if err != nil {
			log.Warn().Err(err).Str("file_id", f.ID).Msg("drive: file import failed")
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}
