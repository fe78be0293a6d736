package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/resolver"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// StoreLister is the registry read API.
type StoreLister interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
}

// SnapshotWriter is the write side of the monthly snapshot store.
type SnapshotWriter interface {
	UpsertResults(ctx context.Context, s *domain.ResultsSnapshot) error
	UpsertComplementary(ctx context.Context, s *domain.ComplementarySnapshot) error
	UpsertSatisfaction(ctx context.Context, s *domain.SatisfactionSnapshot) error
	UpsertNetworkTotals(ctx context.Context, t *domain.NetworkTotals) error
}

// Importer turns an uploaded export into monthly snapshots.
type Importer struct {
	stores    StoreLister
	snapshots SnapshotWriter
	workers   int
	now       func() time.Time
}

func NewImporter(stores StoreLister, snapshots SnapshotWriter, workers int) *Importer {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Importer{
		stores:    stores,
		snapshots: snapshots,
		workers:   workers,
		now:       time.Now,
	}
}

// plannedRow is the outcome of resolving one row; write is set when the row is stored.
type plannedRow struct {
	row     RawRow
	skip    bool
	err     *domain.RowError
	storeID int64
	write   func(ctx context.Context) error
}

// Import parses the payload and upserts every resolvable row. Only structural
// problems (unknown dataset, unreadable file, missing sheet, registry unavailable)
// and cancellation are returned as errors; row problems are reported in the outcome.
// Rows already written when ctx is cancelled stay written, and re-running is safe.
func (im *Importer) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportOutcome, error) {
	if !req.Period.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPeriod, req.Period)
	}
	layout, err := LayoutFor(req.Dataset)
	if err != nil {
		return nil, err
	}

	wb, err := OpenWorkbook(req.Data)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheet, err := wb.FindSheet(layout.SheetName)
	if err != nil {
		return nil, err
	}
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, err
	}

	stores, err := im.stores.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store registry: %w", err)
	}
	registry := resolver.NewRegistry(stores)

	outcome := &domain.ImportOutcome{
		ImportID: uuid.NewString(),
		Dataset:  req.Dataset,
		Period:   req.Period,
		Filename: req.Filename,
		Sheet:    sheet,
		Errors:   []domain.RowError{},
	}
	logger := log.With().
		Str("import_id", outcome.ImportID).
		Str("dataset", string(req.Dataset)).
		Str("period", req.Period.String()).
		Logger()

	now := im.now()
	prov := domain.Provenance{
		SourceFile: req.Filename,
		UploadedBy: req.UploadedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if totals, ok := layout.Totals(rows); ok {
		im.importTotals(ctx, req.Period, prov, totals, layout.TotalsRow, outcome, logger)
	}

	candidates, skipped := layout.DataRows(rows)
	outcome.SkippedRows = skipped

	planned, err := im.plan(ctx, registry, req, prov, candidates)
	if err != nil {
		return outcome, fmt.Errorf("import interrupted: %w", err)
	}

	writeErr := im.write(ctx, planned, outcome, logger)

	sort.SliceStable(outcome.Errors, func(i, j int) bool { return outcome.Errors[i].Row < outcome.Errors[j].Row })
	logger.Info().
		Int("stored", outcome.SuccessCount).
		Int("skipped", outcome.SkippedRows).
		Int("errors", len(outcome.Errors)).
		Int("registry_size", registry.Len()).
		Msg("import finished")

	if writeErr != nil {
		return outcome, fmt.Errorf("import interrupted: %w", writeErr)
	}
	return outcome, nil
}

func (im *Importer) importTotals(ctx context.Context, period domain.Period, prov domain.Provenance, cells []string, index int, outcome *domain.ImportOutcome, logger zerolog.Logger) {
	totals := &domain.NetworkTotals{
		Period:         period,
		ResultsMetrics: extractResults(cells),
		Provenance:     prov,
	}
	if err := im.snapshots.UpsertNetworkTotals(ctx, totals); err != nil {
		logger.Warn().Err(err).Msg("network totals upsert failed")
		outcome.Errors = append(outcome.Errors, domain.RowError{
			Row:     index + 1,
			Label:   cellAt(cells, resLabel),
			Message: fmt.Sprintf("error storing network totals (row %d): %v", index+1, err),
		})
		return
	}
	outcome.TotalsImported = true
}

// plan resolves and parses rows in parallel. It does no I/O.
func (im *Importer) plan(ctx context.Context, registry *resolver.Registry, req domain.ImportRequest, prov domain.Provenance, rows []RawRow) ([]plannedRow, error) {
	out := make([]plannedRow, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = im.planRow(registry, req, prov, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (im *Importer) planRow(registry *resolver.Registry, req domain.ImportRequest, prov domain.Provenance, row RawRow) plannedRow {
	pr := plannedRow{row: row}
	if resolver.IsNonStoreLabel(row.Label) {
		pr.skip = true
		return pr
	}

	store, err := registry.Resolve(row.Label)
	if err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) && resolver.IsZoneSubtotal(row.Label) {
			pr.skip = true
			return pr
		}
		msg := fmt.Sprintf("store %q not found in registry (row %d)", row.Label, row.Number())
		if errors.Is(err, domain.ErrAmbiguousStore) {
			msg = fmt.Sprintf("store %q matches more than one registry entry (row %d)", row.Label, row.Number())
		}
		pr.err = &domain.RowError{Row: row.Number(), Label: row.Label, Message: msg}
		return pr
	}

	pr.storeID = store.ID
	switch req.Dataset {
	case domain.DatasetResults:
		snap := &domain.ResultsSnapshot{
			StoreID:        store.ID,
			Zone:           extractZone(row.Cells),
			Period:         req.Period,
			ResultsMetrics: extractResults(row.Cells),
			Provenance:     prov,
		}
		pr.write = func(ctx context.Context) error { return im.snapshots.UpsertResults(ctx, snap) }
	case domain.DatasetComplementary:
		snap := &domain.ComplementarySnapshot{
			StoreID:              store.ID,
			Period:               req.Period,
			ComplementaryMetrics: extractComplementary(row.Cells),
			Provenance:           prov,
		}
		pr.write = func(ctx context.Context) error { return im.snapshots.UpsertComplementary(ctx, snap) }
	case domain.DatasetSatisfaction:
		nps, rate := extractSatisfaction(row.Cells, req.Period.Month)
		snap := &domain.SatisfactionSnapshot{
			StoreID:      store.ID,
			NPS:          nps,
			ResponseRate: rate,
			Period:       req.Period,
			Provenance:   prov,
		}
		pr.write = func(ctx context.Context) error { return im.snapshots.UpsertSatisfaction(ctx, snap) }
	}
	return pr
}

// write stores planned rows. Rows of the same store run sequentially in sheet
// order, so a duplicated store row overwrites the earlier one; distinct stores
// are written concurrently.
func (im *Importer) write(ctx context.Context, planned []plannedRow, outcome *domain.ImportOutcome, logger zerolog.Logger) error {
	groups := make(map[int64][]plannedRow)
	var order []int64
	for _, pr := range planned {
		switch {
		case pr.skip:
			outcome.SkippedRows++
		case pr.err != nil:
			outcome.Errors = append(outcome.Errors, *pr.err)
		case pr.write != nil:
			if _, seen := groups[pr.storeID]; !seen {
				order = append(order, pr.storeID)
			}
			groups[pr.storeID] = append(groups[pr.storeID], pr)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(im.workers)
	for _, storeID := range order {
		storeID := storeID
		rows := groups[storeID]
		g.Go(func() error {
			for _, pr := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := pr.write(ctx); err != nil {
					logger.Warn().Err(err).Int64("store_id", storeID).Int("row", pr.row.Number()).Msg("snapshot upsert failed")
					mu.Lock()
					outcome.Errors = append(outcome.Errors, domain.RowError{
						Row:     pr.row.Number(),
						Label:   pr.row.Label,
						Message: fmt.Sprintf("error storing store %q (row %d): %v", pr.row.Label, pr.row.Number(), err),
					})
					mu.Unlock()
					continue
				}
				mu.Lock()
				outcome.SuccessCount++
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}
