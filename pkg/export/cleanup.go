package export

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// cleanupThreshold is the fraction of the budget the cache is reduced to when
// it overflows, so cleanup doesn't run again on the very next download.
const cleanupThreshold = 0.8

// RunCleanup evicts cached artifacts in LRU order until the cache fits under
// the threshold. A cache already under budget is left alone.
func RunCleanup(cacheDir string, maxSizeBytes int64) error {
	totalSize, err := TotalCacheSize(cacheDir)
	if err != nil {
		return errors.Wrap(err, "failed to get cache size")
	}
	if totalSize <= maxSizeBytes {
		return nil
	}

	entries, err := ListCacheEntries(cacheDir)
	if err != nil {
		return errors.Wrap(err, "failed to list cache entries")
	}
	if len(entries) == 0 {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.Before(entries[j].LastAccessedAt)
	})

	targetSize := int64(float64(maxSizeBytes) * cleanupThreshold)
	for _, entry := range entries {
		if totalSize <= targetSize {
			break
		}
		if err := DeleteCachedArtifact(cacheDir, entry.BookID, entry.Format); err != nil {
			continue
		}
		totalSize -= entry.SizeBytes
	}
	return nil
}

// triggerCleanup runs cleanup behind an exclusive lock file so overlapping
// exports don't race. Errors are best-effort.
func triggerCleanup(cacheDir string, maxSizeBytes int64) {
	lockPath := filepath.Join(cacheDir, ".cleanup.lock")
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer func() {
		lockFile.Close()
		os.Remove(lockPath)
	}()

	_ = RunCleanup(cacheDir, maxSizeBytes)
}
