package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var (
	resultsMetricColumns = []string{
		"total_services", "services_per_employee", "employees", "target_to_date", "monthly_target",
		"accumulated_deviation", "daily_deviation_pct", "monthly_deviation_pct", "reported_repair_rate",
		"repair_count", "windscreen_count", "repair_gap",
	}
	complementaryMetricColumns = []string{
		"total_sales", "brush_sales", "brush_qty", "brush_share", "polish_qty", "polish_sales",
		"treatment_qty", "treatment_sales", "other_qty", "other_sales", "film_sales",
		"washes_total", "washes_sales",
	}
	provenanceColumns = []string{"source_file", "uploaded_by", "created_at", "updated_at"}
)

// snapshotTable describes one snapshot family. columns excludes id.
type snapshotTable struct {
	dataset  domain.DatasetType
	name     string
	conflict []string
	columns  []string
}

func newSnapshotTable(dataset domain.DatasetType, name string, conflict []string, groups ...[]string) snapshotTable {
	cols := append([]string{}, conflict...)
	for _, g := range groups {
		cols = append(cols, g...)
	}
	cols = append(cols, provenanceColumns...)
	return snapshotTable{dataset: dataset, name: name, conflict: conflict, columns: cols}
}

var (
	resultsTable       = newSnapshotTable(domain.DatasetResults, "results_snapshots", []string{"store_id", "month", "year"}, []string{"zone"}, resultsMetricColumns)
	complementaryTable = newSnapshotTable(domain.DatasetComplementary, "complementary_snapshots", []string{"store_id", "month", "year"}, complementaryMetricColumns)
	satisfactionTable  = newSnapshotTable(domain.DatasetSatisfaction, "satisfaction_snapshots", []string{"store_id", "month", "year"}, []string{"nps", "response_rate"})
	totalsTable        = newSnapshotTable("", "network_totals", []string{"month", "year"}, resultsMetricColumns)
)

func (t snapshotTable) selectList() string {
	return "id, " + strings.Join(t.columns, ", ")
}

// upsertQuery inserts a row or, on a key conflict, overwrites every column except
// the key and created_at. The statement is atomic per row.
func (t snapshotTable) upsertQuery() string {
	named := make([]string, len(t.columns))
	for i, c := range t.columns {
		named[i] = ":" + c
	}
	isKey := make(map[string]bool, len(t.conflict))
	for _, c := range t.conflict {
		isKey[c] = true
	}
	var updates []string
	for _, c := range t.columns {
		if isKey[c] || c == "created_at" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING id`,
		t.name,
		strings.Join(t.columns, ", "),
		strings.Join(named, ", "),
		strings.Join(t.conflict, ", "),
		strings.Join(updates, ", "),
	)
}

type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) repository.SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) upsert(ctx context.Context, t snapshotTable, rec any) (int64, error) {
	var id int64
	err := r.db.withWriteSlot(ctx, func() error {
		rows, err := r.db.NamedQueryContext(ctx, t.upsertQuery(), rec)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		if err := rows.Scan(&id); err != nil {
			return err
		}
		return rows.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %s: %w", t.name, err)
	}
	return id, nil
}

func (r *snapshotRepository) UpsertResults(ctx context.Context, s *domain.ResultsSnapshot) error {
	id, err := r.upsert(ctx, resultsTable, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *snapshotRepository) UpsertComplementary(ctx context.Context, s *domain.ComplementarySnapshot) error {
	id, err := r.upsert(ctx, complementaryTable, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *snapshotRepository) UpsertSatisfaction(ctx context.Context, s *domain.SatisfactionSnapshot) error {
	id, err := r.upsert(ctx, satisfactionTable, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *snapshotRepository) UpsertNetworkTotals(ctx context.Context, t *domain.NetworkTotals) error {
	id, err := r.upsert(ctx, totalsTable, t)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func getSnapshot[T any](ctx context.Context, db *DB, t snapshotTable, where string, args ...any) (*T, error) {
	var rec T
	query := db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, t.selectList(), t.name, where))
	if err := sqlx.GetContext(ctx, db, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", t.name, err)
	}
	return &rec, nil
}

func listSnapshots[T any](ctx context.Context, db *DB, t snapshotTable, where string, args []any, orderBy string) ([]T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s`, t.selectList(), t.name, where, orderBy)
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s query: %w", t.name, err)
	}
	log.Debug().Str("table", t.name).Str("where", where).Msg("snapshot query")

	out := []T{}
	if err := sqlx.SelectContext(ctx, db, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return out, nil
}

// scopeFilter appends a store filter. An empty, non-nil scope matches nothing.
func scopeFilter(where string, args []any, scope domain.Scope) (string, []any) {
	switch {
	case scope.All():
		return where, args
	case len(scope.StoreIDs) == 0:
		return where + " AND 1 = 0", args
	default:
		return where + " AND store_id IN (?)", append(args, scope.StoreIDs)
	}
}

const (
	byKey       = "store_id = ? AND month = ? AND year = ?"
	byPeriod    = "month = ? AND year = ?"
	inWindow    = "(year * 12 + month - 1) BETWEEN ? AND ?"
	chronologic = "year, month, store_id"
)

func (r *snapshotRepository) GetResults(ctx context.Context, storeID int64, p domain.Period) (*domain.ResultsSnapshot, error) {
	return getSnapshot[domain.ResultsSnapshot](ctx, r.db, resultsTable, byKey, storeID, p.Month, p.Year)
}

func (r *snapshotRepository) GetComplementary(ctx context.Context, storeID int64, p domain.Period) (*domain.ComplementarySnapshot, error) {
	return getSnapshot[domain.ComplementarySnapshot](ctx, r.db, complementaryTable, byKey, storeID, p.Month, p.Year)
}

func (r *snapshotRepository) GetSatisfaction(ctx context.Context, storeID int64, p domain.Period) (*domain.SatisfactionSnapshot, error) {
	return getSnapshot[domain.SatisfactionSnapshot](ctx, r.db, satisfactionTable, byKey, storeID, p.Month, p.Year)
}

func (r *snapshotRepository) GetNetworkTotals(ctx context.Context, p domain.Period) (*domain.NetworkTotals, error) {
	return getSnapshot[domain.NetworkTotals](ctx, r.db, totalsTable, byPeriod, p.Month, p.Year)
}

func (r *snapshotRepository) ListResultsByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ResultsSnapshot, error) {
	where, args := scopeFilter(byPeriod, []any{p.Month, p.Year}, scope)
	return listSnapshots[domain.ResultsSnapshot](ctx, r.db, resultsTable, where, args, "store_id")
}

func (r *snapshotRepository) ListComplementaryByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ComplementarySnapshot, error) {
	where, args := scopeFilter(byPeriod, []any{p.Month, p.Year}, scope)
	return listSnapshots[domain.ComplementarySnapshot](ctx, r.db, complementaryTable, where, args, "store_id")
}

func (r *snapshotRepository) ListSatisfactionByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.SatisfactionSnapshot, error) {
	where, args := scopeFilter(byPeriod, []any{p.Month, p.Year}, scope)
	return listSnapshots[domain.SatisfactionSnapshot](ctx, r.db, satisfactionTable, where, args, "store_id")
}

func (r *snapshotRepository) ListResultsInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.ResultsSnapshot, error) {
	where, args := scopeFilter(inWindow, []any{w.From.Index(), w.To.Index()}, scope)
	return listSnapshots[domain.ResultsSnapshot](ctx, r.db, resultsTable, where, args, chronologic)
}

func (r *snapshotRepository) ListComplementaryInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.ComplementarySnapshot, error) {
	where, args := scopeFilter(inWindow, []any{w.From.Index(), w.To.Index()}, scope)
	return listSnapshots[domain.ComplementarySnapshot](ctx, r.db, complementaryTable, where, args, chronologic)
}

func (r *snapshotRepository) ListSatisfactionInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.SatisfactionSnapshot, error) {
	where, args := scopeFilter(inWindow, []any{w.From.Index(), w.To.Index()}, scope)
	return listSnapshots[domain.SatisfactionSnapshot](ctx, r.db, satisfactionTable, where, args, chronologic)
}

func (r *snapshotRepository) ListNetworkTotals(ctx context.Context, w domain.Window) ([]domain.NetworkTotals, error) {
	return listSnapshots[domain.NetworkTotals](ctx, r.db, totalsTable, inWindow, []any{w.From.Index(), w.To.Index()}, "year, month")
}

type periodUpdateRow struct {
	Month     int       `db:"month"`
	Year      int       `db:"year"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AvailablePeriods lists months holding data for a dataset, newest first.
func (r *snapshotRepository) AvailablePeriods(ctx context.Context, dataset domain.DatasetType) ([]domain.AvailablePeriod, error) {
	var t snapshotTable
	switch dataset {
	case domain.DatasetResults:
		t = resultsTable
	case domain.DatasetComplementary:
		t = complementaryTable
	case domain.DatasetSatisfaction:
		t = satisfactionTable
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDataset, dataset)
	}

	var rows []periodUpdateRow
	query := fmt.Sprintf(`SELECT month, year, updated_at FROM %s`, t.name)
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list periods of %s: %w", t.name, err)
	}

	byPeriod := make(map[domain.Period]*domain.AvailablePeriod)
	for _, row := range rows {
		p := domain.Period{Month: row.Month, Year: row.Year}
		ap, ok := byPeriod[p]
		if !ok {
			ap = &domain.AvailablePeriod{
				Period:  p,
				Dataset: dataset,
				Label:   fmt.Sprintf("%s %d", time.Month(p.Month), p.Year),
			}
			byPeriod[p] = ap
		}
		ap.Snapshots++
		if row.UpdatedAt.After(ap.LastUpdated) {
			ap.LastUpdated = row.UpdatedAt
		}
	}

	out := make([]domain.AvailablePeriod, 0, len(byPeriod))
	for _, ap := range byPeriod {
		out = append(out, *ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Period.Before(out[i].Period) })
	return out, nil
}
