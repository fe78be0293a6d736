package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	folders map[string][]*File
	data    map[string][]byte
}

func (f *fakeSource) ListSpreadsheets(ctx context.Context, folderID string) ([]*File, error) {
	files, ok := f.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	return files, nil
}

func (f *fakeSource) Fetch(ctx context.Context, fileID string) (*File, []byte, error) {
	for _, files := range f.folders {
		for _, file := range files {
			if file.ID == fileID {
				return file, f.data[fileID], nil
			}
		}
	}
	return nil, nil, errors.New("file not found")
}

func (f *fakeSource) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if path == "exports/2025" {
		return "f-2025", nil
	}
	return "", fmt.Errorf("%w: %s", ErrFolderNotFound, path)
}

type fakeImporter struct {
	requests []domain.ImportRequest
	failOn   string
}

func (f *fakeImporter) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportOutcome, error) {
	f.requests = append(f.requests, req)
	if req.Filename == f.failOn {
		return nil, fmt.Errorf("%w: \"Faturados\"", domain.ErrSheetNotFound)
	}
	return &domain.ImportOutcome{ImportID: "imp-" + req.Filename, Dataset: req.Dataset, Period: req.Period, Filename: req.Filename, SuccessCount: 3}, nil
}

func newRouter(imp *fakeImporter) *mux.Router {
	src := &fakeSource{
		folders: map[string][]*File{
			"f-2025": {
				{ID: "a", Name: "faturados-marco.xlsx", MimeType: xlsxMimeType},
				{ID: "b", Name: "resumo.xlsx", MimeType: xlsxMimeType},
			},
		},
		data: map[string][]byte{"a": []byte("xlsx-a"), "b": []byte("xlsx-b")},
	}
	router := mux.NewRouter()
	NewHandler(src, src, NewIngestService(src, imp), "f-2025").RegisterRoutes(router)
	return router
}

func serve(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListFiles(t *testing.T) {
	router := newRouter(&fakeImporter{})

	rec := serve(router, http.MethodGet, "/api/drive/files?path=exports/2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)

	rec = serve(router, http.MethodGet, "/api/drive/files?path=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportFile(t *testing.T) {
	imp := &fakeImporter{}
	router := newRouter(imp)

	rec := serve(router, http.MethodPost, "/api/drive/files/a/import", `{"dataset":"results","month":3,"year":2025}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, imp.requests, 1)
	req := imp.requests[0]
	assert.Equal(t, domain.DatasetResults, req.Dataset)
	assert.Equal(t, domain.Period{Month: 3, Year: 2025}, req.Period)
	assert.Equal(t, "faturados-marco.xlsx", req.Filename)
	assert.Equal(t, "drive", req.UploadedBy)
	assert.Equal(t, []byte("xlsx-a"), req.Data)

	rec = serve(router, http.MethodPost, "/api/drive/files/a/import", `{"dataset":"results","month":0,"year":2025}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/api/drive/files/a/import", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportFolder_ReportsEachFile(t *testing.T) {
	imp := &fakeImporter{failOn: "resumo.xlsx"}
	router := newRouter(imp)

	rec := serve(router, http.MethodPost, "/api/drive/folders/import", `{"dataset":"nps","month":2,"year":2025,"uploaded_by":"ops"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []FolderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	require.NotNil(t, results[0].Outcome)
	assert.Equal(t, domain.DatasetSatisfaction, results[0].Outcome.Dataset)
	assert.Contains(t, results[1].Error, "sheet not found")
	assert.Equal(t, "ops", imp.requests[1].UploadedBy)
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, (&File{Name: "x", MimeType: googleSheetMimeType}).IsSpreadsheet())
	assert.True(t, (&File{Name: "Faturados.XLSX"}).IsSpreadsheet())
	assert.False(t, (&File{Name: "notes.pdf", MimeType: "application/pdf"}).IsSpreadsheet())
}
