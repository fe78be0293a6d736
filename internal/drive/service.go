package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	googleSheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// maxDownloadBytes bounds a single spreadsheet pulled from Drive.
const maxDownloadBytes = 32 << 20

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

// IsSpreadsheet reports files the importer can read: xlsx uploads and native
// Google Sheets (exported as xlsx on download).
func (f *File) IsSpreadsheet() bool {
	return f.MimeType == xlsxMimeType || f.MimeType == googleSheetMimeType ||
		strings.HasSuffix(strings.ToLower(f.Name), ".xlsx")
}

// ListSpreadsheets returns the spreadsheets directly inside a folder, newest first.
func (s *Service) ListSpreadsheets(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	var files []*File
	call := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false and mimeType != '%s'", escapeQuery(folderID), folderMimeType)).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		OrderBy("modifiedTime desc")
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			file := &File{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ModifiedTime: f.ModifiedTime, Size: f.Size}
			if file.IsSpreadsheet() {
				files = append(files, file)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list drive folder %s: %w", folderID, err)
	}
	return files, nil
}

// Fetch downloads a spreadsheet by id. Native Google Sheets are exported as xlsx.
func (s *Service) Fetch(ctx context.Context, fileID string) (*File, []byte, error) {
	meta, err := s.srv.Files.Get(fileID).Fields("id, name, mimeType, modifiedTime, size").Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read drive file %s: %w", fileID, err)
	}
	file := &File{ID: meta.Id, Name: meta.Name, MimeType: meta.MimeType, ModifiedTime: meta.ModifiedTime, Size: meta.Size}
	if !file.IsSpreadsheet() {
		return nil, nil, fmt.Errorf("drive file %s (%s) is not a spreadsheet", file.Name, file.MimeType)
	}

	var buf bytes.Buffer
	if file.MimeType == googleSheetMimeType {
		resp, err := s.srv.Files.Export(fileID, xlsxMimeType).Context(ctx).Download()
		if err != nil {
			return nil, nil, fmt.Errorf("unable to export %s: %w", file.Name, err)
		}
		defer resp.Body.Close()
		if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxDownloadBytes)); err != nil {
			return nil, nil, err
		}
		if !strings.HasSuffix(strings.ToLower(file.Name), ".xlsx") {
			file.Name += ".xlsx"
		}
		return file, buf.Bytes(), nil
	}

	resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxDownloadBytes)); err != nil {
		return nil, nil, err
	}
	return file, buf.Bytes(), nil
}

// FindFolderByPath walks a slash separated folder path from the drive root.
func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}
		if len(result.Files) == 0 {
			return "", fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		currentID = result.Files[0].Id
	}
	return currentID, nil
}

func escapeQuery(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `'`, `\'`)
}
