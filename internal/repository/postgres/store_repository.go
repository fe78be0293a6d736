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
	"github.com/andresuchdata/storeresults/backend-go/internal/resolver"
	"github.com/jmoiron/sqlx"
)

type storeRepository struct {
	db  *DB
	now func() time.Time
}

func NewStoreRepository(db *DB) repository.StoreRepository {
	return &storeRepository{db: db, now: time.Now}
}

const storeColumns = `id, name, zone, contact, email, address, min_free_reports, min_full_reports, created_at, updated_at`

func (r *storeRepository) ListStores(ctx context.Context) ([]domain.Store, error) {
	stores := []domain.Store{}
	query := `SELECT ` + storeColumns + ` FROM stores ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.db, &stores, query); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

func (r *storeRepository) GetStore(ctx context.Context, id int64) (*domain.Store, error) {
	var s domain.Store
	query := r.db.Rebind(`SELECT ` + storeColumns + ` FROM stores WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrStoreNotFound, id)
		}
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return &s, nil
}

// UpsertStore inserts or updates a store keyed by its normalized name.
func (r *storeRepository) UpsertStore(ctx context.Context, s *domain.Store) (bool, error) {
	key := resolver.Normalize(s.Name)
	if key == "" {
		return false, fmt.Errorf("%w: name is required", domain.ErrInvalidStore)
	}
	now := r.now()

	var created bool
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var existingID int64
		err := tx.GetContext(ctx, &existingID, tx.Rebind(`SELECT id FROM stores WHERE name_key = ?`), key)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			query := tx.Rebind(`
				INSERT INTO stores (name, name_key, zone, contact, email, address, min_free_reports, min_full_reports, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id`)
			if err := tx.QueryRowxContext(ctx, query,
				s.Name, key, s.Zone, s.Contact, s.Email, s.Address, s.MinFreeReports, s.MinFullReports, now, now,
			).Scan(&s.ID); err != nil {
				return fmt.Errorf("failed to insert store: %w", err)
			}
			s.CreatedAt = now
			created = true
		case err != nil:
			return fmt.Errorf("failed to look up store: %w", err)
		default:
			query := tx.Rebind(`
				UPDATE stores SET name = ?, zone = ?, contact = ?, email = ?, address = ?,
					min_free_reports = ?, min_full_reports = ?, updated_at = ?
				WHERE id = ?`)
			if _, err := tx.ExecContext(ctx, query,
				s.Name, s.Zone, s.Contact, s.Email, s.Address, s.MinFreeReports, s.MinFullReports, now, existingID,
			); err != nil {
				return fmt.Errorf("failed to update store: %w", err)
			}
			s.ID = existingID
		}
		s.UpdatedAt = now
		return nil
	})
	return created, err
}

// DeleteStore removes a store that has no imported history. Stores with
// snapshots fail with ErrStoreInUse.
func (r *storeRepository) DeleteStore(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []snapshotTable{resultsTable, complementaryTable, satisfactionTable} {
			var n int
			query := tx.Rebind(`SELECT COUNT(*) FROM ` + table.name + ` WHERE store_id = ?`)
			if err := tx.GetContext(ctx, &n, query, id); err != nil {
				return fmt.Errorf("failed to check store history: %w", err)
			}
			if n > 0 {
				return fmt.Errorf("%w: id %d has %d %s rows", domain.ErrStoreInUse, id, n, table.dataset)
			}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM stores WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete store: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: id %d", domain.ErrStoreNotFound, id)
		}
		return nil
	})
}

// AssignManager replaces the store set of a manager.
func (r *storeRepository) AssignManager(ctx context.Context, managerID string, storeIDs []int64) error {
	managerID = strings.TrimSpace(managerID)
	if managerID == "" {
		return errors.New("manager id is required")
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM manager_stores WHERE manager_id = ?`), managerID); err != nil {
			return fmt.Errorf("failed to clear manager stores: %w", err)
		}
		insert := tx.Rebind(`INSERT INTO manager_stores (manager_id, store_id) VALUES (?, ?) ON CONFLICT DO NOTHING`)
		for _, id := range storeIDs {
			if _, err := tx.ExecContext(ctx, insert, managerID, id); err != nil {
				return fmt.Errorf("failed to assign store %d: %w", id, err)
			}
		}
		return nil
	})
}

func (r *storeRepository) ManagerStoreIDs(ctx context.Context, managerID string) ([]int64, error) {
	ids := []int64{}
	query := r.db.Rebind(`SELECT store_id FROM manager_stores WHERE manager_id = ? ORDER BY store_id`)
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, managerID); err != nil {
		return nil, fmt.Errorf("failed to list manager stores: %w", err)
	}
	return ids, nil
}
