// Package export runs the download flow: guard the credit, fetch the
// artifact, verify it, and land it in the download directory atomically. A
// verified copy is kept in a fingerprinted cache so re-exporting an unchanged
// book skips the network and spends nothing.
package export

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/notify"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type Service struct {
	api     *apiclient.Client
	cache   *querycache.Cache
	credits *credits.Service
	center  *notify.Center
	log     logger.Logger

	cacheDir    string
	downloadDir string
	maxBytes    int64
}

func NewService(cfg *config.Config, api *apiclient.Client, cache *querycache.Cache, creditsSvc *credits.Service, center *notify.Center) *Service {
	return &Service{
		api:         api,
		cache:       cache,
		credits:     creditsSvc,
		center:      center,
		log:         logger.New(),
		cacheDir:    filepath.Join(cfg.CacheDir, "artifacts"),
		downloadDir: cfg.DownloadDir,
		maxBytes:    cfg.DownloadCacheMaxBytes(),
	}
}

// Result describes where an export landed.
type Result struct {
	Path      string
	Filename  string
	SizeBytes int64
	FromCache bool
}

// Export downloads a single-format artifact for the book. A cached artifact
// with a matching fingerprint is reused without a request or a credit; a
// fresh download is verified before it is moved into the download directory,
// and only a verified success invalidates the balance.
func (s *Service) Export(ctx context.Context, book *models.Book, format models.ExportFormat) (*Result, error) {
	if !format.Valid() {
		return nil, errors.Errorf("unknown export format %q", format)
	}

	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.MkdirAll(s.downloadDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	filename := DownloadFilename(book, format)

	hash, err := ComputeFingerprint(book, format).Hash()
	if err != nil {
		return nil, err
	}

	if cachedPath, err := CachedArtifactPath(s.cacheDir, book.ID, format, hash); err == nil && cachedPath != "" {
		result, err := s.deliverFromCache(book, format, cachedPath, filename)
		if err == nil {
			return result, nil
		}
		s.log.Err(err).Warn("cached artifact unusable, re-downloading", logger.Data{"book_id": book.ID})
	}

	if err := s.credits.EnsureAffordable(ctx, credits.ExportCost); err != nil {
		return nil, err
	}

	s.center.Info("Exporting " + filename + "…")

	blob, err := s.fetch(ctx, book.ID, format)
	if err != nil {
		s.center.Error("Export failed: " + err.Error())
		return nil, err
	}

	if err := verifyArtifact(format, blob.Data, blob.ContentType); err != nil {
		s.center.Error("Export failed: " + err.Error())
		return nil, err
	}

	destPath := filepath.Join(s.downloadDir, filename)
	if err := writeAtomic(destPath, blob.Data); err != nil {
		s.center.Error("Export failed: " + err.Error())
		return nil, err
	}

	s.storeInCache(book.ID, format, hash, blob.Data)

	// The export consumed a credit server-side; drop the cached balance so
	// the next read refetches.
	s.cache.Invalidate(querycache.KeyCredits)
	s.center.Success("Exported " + filename)

	return &Result{
		Path:      destPath,
		Filename:  filename,
		SizeBytes: int64(len(blob.Data)),
	}, nil
}

// ExportAll downloads the bundle archive with every format.
func (s *Service) ExportAll(ctx context.Context, book *models.Book) (*Result, error) {
	return s.Export(ctx, book, models.ExportFormatBundle)
}

// DownloadCover fetches the finalized cover, confirms it decodes, and saves
// it next to the exports. Covers are free.
func (s *Service) DownloadCover(ctx context.Context, book *models.Book) (*Result, error) {
	if err := os.MkdirAll(s.downloadDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	blob, err := s.api.DownloadCover(ctx, book.ID)
	if err != nil {
		return nil, err
	}

	ext, err := verifyCover(blob.Data)
	if err != nil {
		return nil, err
	}

	filename := CoverFilename(book, ext)
	destPath := filepath.Join(s.downloadDir, filename)
	if err := writeAtomic(destPath, blob.Data); err != nil {
		return nil, err
	}

	return &Result{
		Path:      destPath,
		Filename:  filename,
		SizeBytes: int64(len(blob.Data)),
	}, nil
}

func (s *Service) fetch(ctx context.Context, bookID string, format models.ExportFormat) (*apiclient.Blob, error) {
	if format == models.ExportFormatBundle {
		return s.api.ExportAllBooks(ctx, bookID)
	}
	return s.api.ExportBook(ctx, bookID, format)
}

// deliverFromCache copies a verified cached artifact into the download
// directory. No request, no credit.
func (s *Service) deliverFromCache(book *models.Book, format models.ExportFormat, cachedPath, filename string) (*Result, error) {
	data, err := os.ReadFile(cachedPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	destPath := filepath.Join(s.downloadDir, filename)
	if err := writeAtomic(destPath, data); err != nil {
		return nil, err
	}

	if err := UpdateLastAccessed(s.cacheDir, book.ID, format); err != nil {
		s.log.Err(err).Warn("cache access update error", logger.Data{"book_id": book.ID})
	}

	s.center.Success("Exported " + filename + " (cached)")
	return &Result{
		Path:      destPath,
		Filename:  filename,
		SizeBytes: int64(len(data)),
		FromCache: true,
	}, nil
}

// storeInCache is best-effort: a failed cache write just means the next
// export downloads again.
func (s *Service) storeInCache(bookID string, format models.ExportFormat, hash string, data []byte) {
	cachedPath := cachedFilename(s.cacheDir, bookID, format)
	if err := writeAtomic(cachedPath, data); err != nil {
		s.log.Err(err).Warn("cache write error", logger.Data{"book_id": bookID})
		return
	}

	now := time.Now()
	meta := &CacheMetadata{
		BookID:          bookID,
		Format:          format,
		FingerprintHash: hash,
		DownloadedAt:    now,
		LastAccessedAt:  now,
		SizeBytes:       int64(len(data)),
	}
	if err := WriteMetadata(s.cacheDir, meta); err != nil {
		os.Remove(cachedPath)
		s.log.Err(err).Warn("cache metadata write error", logger.Data{"book_id": bookID})
		return
	}

	go triggerCleanup(s.cacheDir, s.maxBytes)
}

// writeAtomic lands data via a temp file and rename so a failed write never
// leaves a partial file at the destination.
func writeAtomic(destPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".bookwright-*")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}
	return nil
}
