package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var errBadRequest = errors.New("bad request")

type Handler struct {
	source        Source
	folders       FolderFinder
	ingestService *IngestService
	defaultFolder string
}

// FolderFinder resolves a folder path to its id.
type FolderFinder interface {
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

func NewHandler(source Source, folders FolderFinder, ingestService *IngestService, defaultFolder string) *Handler {
	return &Handler{
		source:        source,
		folders:       folders,
		ingestService: ingestService,
		defaultFolder: defaultFolder,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/{id}/import", h.ImportFile).Methods(http.MethodPost)
	router.HandleFunc("/api/drive/folders/import", h.ImportFolder).Methods(http.MethodPost)
}

type importBody struct {
	Dataset    string `json:"dataset"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	UploadedBy string `json:"uploaded_by"`
	FolderID   string `json:"folder_id"`
}

func (b importBody) target() (ImportTarget, error) {
	dataset, err := domain.ParseDatasetType(b.Dataset)
	if err != nil {
		return ImportTarget{}, err
	}
	period, err := domain.NewPeriod(b.Month, b.Year)
	if err != nil {
		return ImportTarget{}, err
	}
	return ImportTarget{Dataset: dataset, Period: period, UploadedBy: strings.TrimSpace(b.UploadedBy)}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("drive: encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrUnknownDataset), errors.Is(err, domain.ErrInvalidPeriod):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSheetNotFound), errors.Is(err, domain.ErrUnreadableFile):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrFolderNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request) (importBody, error) {
	var body importBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return body, nil
}

// ListFiles lists spreadsheets in ?folderId, ?path or the configured folder.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	if path := query.Get("path"); path != "" {
		id, err := h.folders.FindFolderByPath(r.Context(), path)
		if err != nil {
			writeError(w, err)
			return
		}
		folderID = id
	}
	if folderID == "" {
		folderID = h.defaultFolder
	}

	files, err := h.source.ListSpreadsheets(r.Context(), folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := body.target()
	if err != nil {
		writeError(w, err)
		return
	}

	outcome, err := h.ingestService.IngestFile(r.Context(), mux.Vars(r)["id"], target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) ImportFolder(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := body.target()
	if err != nil {
		writeError(w, err)
		return
	}
	folderID := body.FolderID
	if folderID == "" {
		folderID = h.defaultFolder
	}

	results, err := h.ingestService.IngestFolder(r.Context(), folderID, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
