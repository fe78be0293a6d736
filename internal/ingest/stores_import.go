package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/resolver"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// StoreWriter creates or updates registry entries by normalized name.
type StoreWriter interface {
	UpsertStore(ctx context.Context, s *domain.Store) (created bool, err error)
}

var storeHeaders = map[string][]string{
	"name":    {"nome", "loja", "name", "store"},
	"zone":    {"zona", "zone", "regiao", "region"},
	"email":   {"email", "e-mail"},
	"contact": {"contacto", "contact", "telefone", "phone"},
	"address": {"morada", "address", "endereco"},
}

var validate = validator.New()

// ImportStores reads a registry sheet (first sheet, header on the first row) and
// upserts one store per row. Rows without a name or with an invalid email are
// reported and skipped.
func ImportStores(ctx context.Context, data []byte, writer StoreWriter) ([]domain.StoreImportResult, error) {
	wb, err := OpenWorkbook(data)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.SheetNames()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrSheetNotFound)
	}
	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.StoreImportResult{}, nil
	}

	cols := mapHeaders(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("%w: registry sheet has no name column", domain.ErrInvalidStore)
	}

	results := make([]domain.StoreImportResult, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		get := func(field string) string {
			col, ok := cols[field]
			if !ok {
				return ""
			}
			return strings.TrimSpace(cellAt(rows[i], col))
		}

		res := domain.StoreImportResult{Row: i + 1, Name: get("name")}
		if res.Name == "" {
			if rowIsBlank(rows[i]) {
				continue
			}
			res.Error = "name is required"
			results = append(results, res)
			continue
		}

		store := &domain.Store{
			Name:    res.Name,
			Zone:    get("zone"),
			Email:   get("email"),
			Contact: get("contact"),
			Address: get("address"),
		}
		if err := ValidateStore(store); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		created, err := writer.UpsertStore(ctx, store)
		if err != nil {
			log.Warn().Err(err).Str("store", store.Name).Int("row", res.Row).Msg("registry import: upsert failed")
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.StoreID = store.ID
		res.Created = created
		results = append(results, res)
	}
	return results, nil
}

// ValidateStore checks the fields an operator can get wrong.
func ValidateStore(s *domain.Store) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidStore)
	}
	if resolver.IsNonStoreLabel(s.Name) {
		return fmt.Errorf("%w: %q reads as a totals or header row", domain.ErrInvalidStore, s.Name)
	}
	if s.Email != "" {
		if err := validate.Var(s.Email, "email"); err != nil {
			return fmt.Errorf("%w: invalid email %q", domain.ErrInvalidStore, s.Email)
		}
	}
	if s.MinFreeReports < 0 || s.MinFullReports < 0 {
		return fmt.Errorf("%w: minimums cannot be negative", domain.ErrInvalidStore)
	}
	return nil
}

func mapHeaders(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		key := resolver.Normalize(h)
		for field, aliases := range storeHeaders {
			if _, done := cols[field]; done {
				continue
			}
			for _, a := range aliases {
				if key == resolver.Normalize(a) {
					cols[field] = i
				}
			}
		}
	}
	return cols
}

func rowIsBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
