package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/ingest"
	"github.com/andresuchdata/storeresults/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

type Invalidator interface {
	Invalidate(ctx context.Context)
}

// ImportService runs spreadsheet imports, archives the uploaded file and drops
// cached analytics once data changed.
type ImportService struct {
	importer *ingest.Importer
	stores   ingest.StoreWriter
	archive  storage.ObjectStorage
	cache    Invalidator
}

// NewImportService builds the service; archive may be nil to skip archiving.
func NewImportService(importer *ingest.Importer, stores ingest.StoreWriter, archive storage.ObjectStorage, cache Invalidator) *ImportService {
	return &ImportService{importer: importer, stores: stores, archive: archive, cache: cache}
}

func (s *ImportService) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportOutcome, error) {
	outcome, err := s.importer.Import(ctx, req)
	if outcome == nil {
		return nil, err
	}
	if outcome.SuccessCount > 0 || outcome.TotalsImported {
		s.invalidate(ctx)
	}
	if err != nil {
		return outcome, err
	}
	s.archiveUpload(ctx, req, outcome.ImportID)
	return outcome, nil
}

func (s *ImportService) archiveUpload(ctx context.Context, req domain.ImportRequest, importID string) {
	if s.archive == nil {
		return
	}
	key := storage.ArchiveKey(req.Dataset, req.Period, importID, req.Filename)
	if err := s.archive.UploadObject(ctx, key, req.Data); err != nil {
		log.Error().Err(err).Str("import_id", importID).Str("key", key).Msg("import: archiving upload failed")
		return
	}
	log.Info().Str("import_id", importID).Str("key", key).Msg("import: upload archived")
}

// ReplayResult reports one archived upload fed back through the importer.
type ReplayResult struct {
	Key     string                `json:"key"`
	Outcome *domain.ImportOutcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
}

var ErrNoArchive = errors.New("upload archive is not configured")

// ReplayArchive re-imports archived uploads under prefix, oldest period first
// and in upload order within a period, so the latest upload still wins.
// Replayed files are not archived again.
func (s *ImportService) ReplayArchive(ctx context.Context, prefix string) ([]ReplayResult, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	objects, err := s.archive.ListObjects(ctx, strings.TrimPrefix(strings.TrimSpace(prefix), "/"))
	if err != nil {
		return nil, err
	}

	type entry struct {
		upload storage.ArchivedUpload
		info   storage.ObjectInfo
	}
	var entries []entry
	for _, obj := range objects {
		up, ok := storage.ParseArchiveKey(obj.Key)
		if !ok || !strings.HasSuffix(strings.ToLower(up.Filename), ".xlsx") {
			log.Debug().Str("key", obj.Key).Msg("replay: skipping object")
			continue
		}
		entries = append(entries, entry{upload: up, info: obj})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.upload.Period != b.upload.Period {
			return a.upload.Period.Before(b.upload.Period)
		}
		return a.info.LastModified.Before(b.info.LastModified)
	})

	results := make([]ReplayResult, 0, len(entries))
	changed := false
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := ReplayResult{Key: e.info.Key}
		data, err := s.archive.GetObject(ctx, e.info.Key)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		outcome, err := s.importer.Import(ctx, domain.ImportRequest{
			Dataset:    e.upload.Dataset,
			Period:     e.upload.Period,
			UploadedBy: "replay",
			Filename:   e.upload.Filename,
			Data:       data,
		})
		res.Outcome = outcome
		if err != nil {
			res.Error = err.Error()
		}
		if outcome != nil && (outcome.SuccessCount > 0 || outcome.TotalsImported) {
			changed = true
		}
		results = append(results, res)
	}
	if changed {
		s.invalidate(ctx)
	}
	log.Info().Str("prefix", prefix).Int("files", len(results)).Msg("replay: archive replayed")
	return results, nil
}

// ImportStores loads a registry sheet.
func (s *ImportService) ImportStores(ctx context.Context, data []byte) ([]domain.StoreImportResult, error) {
	results, err := ingest.ImportStores(ctx, data, s.stores)
	if err != nil {
		return results, err
	}
	for _, r := range results {
		if r.Error == "" {
			s.invalidate(ctx)
			break
		}
	}
	return results, nil
}

func (s *ImportService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
