package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// CacheMetadata sits next to each cached artifact as a JSON sidecar. It
// carries the fingerprint the artifact was downloaded at plus the access
// bookkeeping the LRU cleanup needs.
type CacheMetadata struct {
	BookID          string              `json:"book_id"`
	Format          models.ExportFormat `json:"format"`
	FingerprintHash string              `json:"fingerprint_hash"`
	DownloadedAt    time.Time           `json:"downloaded_at"`
	LastAccessedAt  time.Time           `json:"last_accessed_at"`
	SizeBytes       int64               `json:"size_bytes"`
}

func metadataFilename(cacheDir, bookID string, format models.ExportFormat) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.%s.meta.json", bookID, format))
}

func cachedFilename(cacheDir, bookID string, format models.ExportFormat) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.%s.%s", bookID, format, format.Extension()))
}

// ReadMetadata returns the sidecar for a cached artifact, or nil when there
// is none.
func ReadMetadata(cacheDir, bookID string, format models.ExportFormat) (*CacheMetadata, error) {
	path := metadataFilename(cacheDir, bookID, format)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache metadata: %s", path)
	}

	var meta CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to parse cache metadata: %s", path)
	}
	return &meta, nil
}

func WriteMetadata(cacheDir string, meta *CacheMetadata) error {
	path := metadataFilename(cacheDir, meta.BookID, meta.Format)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache metadata")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrapf(err, "failed to write cache metadata: %s", path)
	}
	return nil
}

// UpdateLastAccessed bumps the access time so the LRU cleanup keeps recently
// used artifacts.
func UpdateLastAccessed(cacheDir, bookID string, format models.ExportFormat) error {
	meta, err := ReadMetadata(cacheDir, bookID, format)
	if err != nil {
		return err
	}
	if meta == nil {
		return errors.New("cache metadata not found")
	}
	meta.LastAccessedAt = time.Now()
	return WriteMetadata(cacheDir, meta)
}

// DeleteCachedArtifact removes the artifact and its sidecar.
func DeleteCachedArtifact(cacheDir, bookID string, format models.ExportFormat) error {
	cachedPath := cachedFilename(cacheDir, bookID, format)
	if err := os.Remove(cachedPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete cached artifact: %s", cachedPath)
	}

	metaPath := metadataFilename(cacheDir, bookID, format)
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete cache metadata: %s", metaPath)
	}
	return nil
}

// CachedArtifactPath returns the path to a cached artifact when its sidecar
// matches currentHash and the file is present. Empty string otherwise.
func CachedArtifactPath(cacheDir, bookID string, format models.ExportFormat, currentHash string) (string, error) {
	meta, err := ReadMetadata(cacheDir, bookID, format)
	if err != nil {
		return "", err
	}
	if meta == nil || meta.FingerprintHash != currentHash {
		return "", nil
	}

	cachedPath := cachedFilename(cacheDir, bookID, format)
	if _, err := os.Stat(cachedPath); os.IsNotExist(err) {
		return "", nil
	}
	return cachedPath, nil
}

// ListCacheEntries returns every sidecar in the cache directory, skipping
// anything unreadable.
func ListCacheEntries(cacheDir string) ([]*CacheMetadata, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache directory: %s", cacheDir)
	}

	var results []*CacheMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(cacheDir, entry.Name()))
		if err != nil {
			continue
		}
		var meta CacheMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		results = append(results, &meta)
	}
	return results, nil
}

// TotalCacheSize sums the cached artifact sizes from the sidecars.
func TotalCacheSize(cacheDir string) (int64, error) {
	entries, err := ListCacheEntries(cacheDir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		total += entry.SizeBytes
	}
	return total, nil
}
