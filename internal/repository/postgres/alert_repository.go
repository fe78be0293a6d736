package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

const alertColumns = `id, store_id, alert_type, month, year, threshold_percent, observed_pct, description, status, resolution_notes, created_at, resolved_at`

type alertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) repository.AlertRepository {
	return &alertRepository{db: db}
}

// FindPending returns the open alert of a type for a store, from any period.
func (r *alertRepository) FindPending(ctx context.Context, storeID int64, alertType domain.AlertType) (*domain.Alert, error) {
	var a domain.Alert
	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts
		WHERE store_id = ? AND alert_type = ? AND status = ?`)
	err := sqlx.GetContext(ctx, r.db, &a, query, storeID, alertType, domain.AlertPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending alert: %w", err)
	}
	return &a, nil
}

// CreatePending relies on the partial unique index over pending alerts, so two
// concurrent scans cannot both insert.
func (r *alertRepository) CreatePending(ctx context.Context, a *domain.Alert) (bool, error) {
	a.Status = domain.AlertPending
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	query := r.db.Rebind(`
		INSERT INTO alerts (store_id, alert_type, month, year, threshold_percent, observed_pct, description, status, resolution_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?)
		ON CONFLICT (store_id, alert_type) WHERE status = 'pending' DO NOTHING
		RETURNING id`)

	var created bool
	err := r.db.withWriteSlot(ctx, func() error {
		err := r.db.QueryRowxContext(ctx, query,
			a.StoreID, a.Type, a.Month, a.Year, a.ThresholdPercent, a.ObservedPct, a.Description, a.Status, a.CreatedAt,
		).Scan(&a.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}
	return created, nil
}

func (r *alertRepository) GetAlert(ctx context.Context, id int64) (*domain.Alert, error) {
	var a domain.Alert
	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrAlertNotFound, id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &a, nil
}

func (r *alertRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.StoreID != 0 {
		conds = append(conds, "store_id = ?")
		args = append(args, filter.StoreID)
	}
	if filter.Type != "" {
		conds = append(conds, "alert_type = ?")
		args = append(args, filter.Type)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + alertColumns + ` FROM alerts`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	alerts := []domain.Alert{}
	if err := sqlx.SelectContext(ctx, r.db, &alerts, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Resolve closes a pending alert. Resolving twice fails with ErrAlertAlreadyClosed.
func (r *alertRepository) Resolve(ctx context.Context, id int64, notes string, at time.Time) (*domain.Alert, error) {
	var out domain.Alert
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &out, tx.Rebind(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %d", domain.ErrAlertNotFound, id)
			}
			return fmt.Errorf("failed to load alert: %w", err)
		}
		if !out.Pending() {
			return fmt.Errorf("%w: id %d", domain.ErrAlertAlreadyClosed, id)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE alerts SET status = ?, resolution_notes = ?, resolved_at = ?
			WHERE id = ? AND status = ?`),
			domain.AlertResolved, notes, at, id, domain.AlertPending)
		if err != nil {
			return fmt.Errorf("failed to resolve alert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: id %d", domain.ErrAlertAlreadyClosed, id)
		}
		out.Status = domain.AlertResolved
		out.ResolutionNotes = notes
		out.ResolvedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
