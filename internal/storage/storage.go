package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/google/uuid"
)

// ObjectInfo represents metadata for an archived file.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage captures the S3-style operations the upload archive needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	UploadObject(ctx context.Context, key string, data []byte) error
}

// ArchiveKey is imports/<dataset>/<year>/<month>/<import id>-<file name>.
func ArchiveKey(dataset domain.DatasetType, p domain.Period, importID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.xlsx"
	}
	return fmt.Sprintf("imports/%s/%04d/%02d/%s-%s", dataset, p.Year, p.Month, importID, name)
}

// ArchivedUpload is what an archive key says about the file stored under it.
type ArchivedUpload struct {
	Key      string
	Dataset  domain.DatasetType
	Period   domain.Period
	ImportID string
	Filename string
}

// ParseArchiveKey reverses ArchiveKey. Keys of any other shape return false.
func ParseArchiveKey(key string) (ArchivedUpload, bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 5 || parts[0] != "imports" {
		return ArchivedUpload{}, false
	}
	dataset, err := domain.ParseDatasetType(parts[1])
	if err != nil {
		return ArchivedUpload{}, false
	}
	year, errY := strconv.Atoi(parts[2])
	month, errM := strconv.Atoi(parts[3])
	if errY != nil || errM != nil {
		return ArchivedUpload{}, false
	}
	period, err := domain.NewPeriod(month, year)
	if err != nil {
		return ArchivedUpload{}, false
	}

	up := ArchivedUpload{Key: key, Dataset: dataset, Period: period, Filename: parts[4]}
	const idLen = 36
	if name := parts[4]; len(name) > idLen+1 && name[idLen] == '-' {
		if _, err := uuid.Parse(name[:idLen]); err == nil {
			up.ImportID, up.Filename = name[:idLen], name[idLen+1:]
		}
	}
	return up, true
}

// NewArchive returns the S3 archive when storage is enabled, otherwise a local
// archive under localDir. An empty localDir disables archiving (nil, nil).
func NewArchive(ctx context.Context, cfg config.StorageConfig, localDir string) (ObjectStorage, error) {
	if !cfg.Enabled {
		if localDir == "" {
			return nil, nil
		}
		local, err := NewLocalStorage(localDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
