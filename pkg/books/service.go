// Package books coordinates book and page operations: payload validation,
// affordability guards, the API call itself, and the cache invalidations that
// keep views coherent afterwards. Guards run first so invalid or unaffordable
// requests never reach the network.
package books

import (
	"context"
	"fmt"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/localstore"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/payload"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type Service struct {
	api       *apiclient.Client
	cache     *querycache.Cache
	store     *localstore.Store
	credits   *credits.Service
	validator *payload.Validator
	log       logger.Logger

	staleAfter time.Duration
}

func NewService(cfg *config.Config, api *apiclient.Client, cache *querycache.Cache, creditsSvc *credits.Service, store *localstore.Store) *Service {
	return &Service{
		api:        api,
		cache:      cache,
		store:      store,
		credits:    creditsSvc,
		validator:  payload.New(),
		log:        logger.New(),
		staleAfter: cfg.BookStaleAfter,
	}
}

// ListResult is a book listing, possibly served from local snapshots when the
// server is unreachable.
type ListResult struct {
	Books []*models.Book
	Total int
	Stale bool
}

// RetrieveResult is a single book, possibly served from a local snapshot.
type RetrieveResult struct {
	Book      *models.Book
	Stale     bool
	FetchedAt time.Time
}

// List fetches books through the cache. When the server is unreachable the
// listing falls back to local snapshots, marked stale.
func (svc *Service) List(ctx context.Context, q ListBooksQuery) (*ListResult, error) {
	if err := svc.validator.Validate(ctx, &q); err != nil {
		return nil, err
	}

	values, err := payload.EncodeQuery(&q)
	if err != nil {
		return nil, err
	}
	key := querycache.NewKey("books", "list", values.Encode())

	resp, err := querycache.Fetch(ctx, svc.cache, key, svc.staleAfter, func(ctx context.Context) (*apiclient.ListBooksResponse, error) {
		return svc.api.ListBooks(ctx, apiclient.ListBooksQuery{
			Limit:           q.Limit,
			Offset:          q.Offset,
			IncludeArchived: q.IncludeArchived,
			Search:          q.Search,
		})
	})
	if err != nil {
		if isNetworkUnavailable(err) {
			return svc.ListLocal(ctx)
		}
		return nil, err
	}

	svc.snapshotBooks(ctx, resp.Books)
	return &ListResult{Books: resp.Books, Total: resp.Total}, nil
}

// ListLocal serves the listing from snapshots without touching the network.
func (svc *Service) ListLocal(ctx context.Context) (*ListResult, error) {
	books, err := svc.store.Books(ctx)
	if err != nil {
		return nil, err
	}
	return &ListResult{Books: books, Total: len(books), Stale: true}, nil
}

// Retrieve fetches a single book through the cache, falling back to its local
// snapshot when the server is unreachable.
func (svc *Service) Retrieve(ctx context.Context, bookID string) (*RetrieveResult, error) {
	book, err := querycache.Fetch(ctx, svc.cache, querycache.KeyBook(bookID), svc.staleAfter, func(ctx context.Context) (*models.Book, error) {
		return svc.api.RetrieveBook(ctx, bookID)
	})
	if err != nil {
		if isNetworkUnavailable(err) {
			return svc.RetrieveLocal(ctx, bookID)
		}
		return nil, err
	}

	// Page numbering is server-authoritative; a gap is surfaced anyway but
	// logged so it shows up in debug reports.
	if !book.HasContiguousPages() {
		svc.log.Warn("book has non-contiguous page numbers", logger.Data{"book_id": book.ID})
	}

	svc.snapshotBook(ctx, book)
	return &RetrieveResult{Book: book, FetchedAt: time.Now()}, nil
}

// RetrieveLocal serves a book from its snapshot without touching the network.
func (svc *Service) RetrieveLocal(ctx context.Context, bookID string) (*RetrieveResult, error) {
	book, fetchedAt, err := svc.store.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return &RetrieveResult{Book: book, Stale: true, FetchedAt: fetchedAt}, nil
}

// Create validates the payload, guards the projected cost of the whole book,
// and creates it. Invalidates the book listing and the balance.
func (svc *Service) Create(ctx context.Context, p CreateBookPayload) (*apiclient.BookResponse, error) {
	if err := svc.validator.Validate(ctx, &p); err != nil {
		return nil, err
	}
	if err := svc.credits.EnsureAffordable(ctx, credits.CreationCost(p.TargetPages)); err != nil {
		return nil, err
	}

	resp, err := svc.api.CreateBook(ctx, apiclient.CreateBookRequest{
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Description: p.Description,
		BookType:    p.BookType,
		TargetPages: p.TargetPages,
	})
	if err != nil {
		return nil, err
	}

	svc.cache.InvalidatePrefix(querycache.KeyBooks)
	svc.cache.Invalidate(querycache.KeyCredits)
	svc.snapshotBook(ctx, resp.Book)
	return resp, nil
}

// Delete removes a book. Free; invalidates the listing and drops the local
// snapshot.
func (svc *Service) Delete(ctx context.Context, bookID string) error {
	if err := svc.api.DeleteBook(ctx, bookID); err != nil {
		return err
	}

	svc.cache.InvalidatePrefix(querycache.KeyBooks)
	if err := svc.store.DeleteBook(ctx, bookID); err != nil {
		svc.log.Err(err).Warn("snapshot delete error", logger.Data{"book_id": bookID})
	}
	return nil
}

// Archive hides a book from the default listing without deleting it.
func (svc *Service) Archive(ctx context.Context, bookID string) (*models.Book, error) {
	book, err := svc.api.ArchiveBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	svc.cache.InvalidatePrefix(querycache.KeyBooks)
	svc.snapshotBook(ctx, book)
	return book, nil
}

// GeneratePage asks the server for the next page. Guards one page credit and
// invalidates the book and the balance on success.
func (svc *Service) GeneratePage(ctx context.Context, bookID string) (*apiclient.BookResponse, error) {
	if err := svc.credits.EnsureAffordable(ctx, credits.PageCost); err != nil {
		return nil, err
	}

	resp, err := svc.api.GeneratePage(ctx, bookID)
	if err != nil {
		return nil, err
	}

	svc.cache.Invalidate(querycache.KeyBook(bookID), querycache.KeyCredits)
	svc.snapshotBook(ctx, resp.Book)
	return resp, nil
}

// UpdatePage saves edited page content against the version it was loaded at.
// Free; a stale base version comes back as a conflict error from the server.
func (svc *Service) UpdatePage(ctx context.Context, bookID string, pageNumber int, p UpdatePagePayload) (*models.Book, error) {
	if err := svc.validator.Validate(ctx, &p); err != nil {
		return nil, err
	}

	book, err := svc.api.UpdatePage(ctx, bookID, pageNumber, apiclient.UpdatePageRequest{
		Content:     p.Content,
		BaseVersion: p.BaseVersion,
	})
	if err != nil {
		return nil, err
	}

	svc.cache.Invalidate(querycache.KeyBook(bookID))
	svc.snapshotBook(ctx, book)
	return book, nil
}

// ReorderPages submits a new page order. The submitted IDs must be a
// permutation of the book's current page IDs; anything partial, duplicated,
// or unknown is rejected before a request is sent.
func (svc *Service) ReorderPages(ctx context.Context, book *models.Book, p ReorderPagesPayload) (*models.Book, error) {
	if err := svc.validator.Validate(ctx, &p); err != nil {
		return nil, err
	}
	if err := validatePermutation(book, p.PageIDs); err != nil {
		return nil, err
	}

	updated, err := svc.api.ReorderPages(ctx, book.ID, apiclient.ReorderPagesRequest{PageIDs: p.PageIDs})
	if err != nil {
		return nil, err
	}

	svc.cache.Invalidate(querycache.KeyBook(book.ID))
	svc.snapshotBook(ctx, updated)
	return updated, nil
}

// Complete finalizes the book. Guards the completion cost and invalidates the
// book and the balance on success.
func (svc *Service) Complete(ctx context.Context, bookID string) (*apiclient.BookResponse, error) {
	if err := svc.credits.EnsureAffordable(ctx, credits.CompletionCost); err != nil {
		return nil, err
	}

	resp, err := svc.api.CompleteBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	svc.cache.Invalidate(querycache.KeyBook(bookID), querycache.KeyCredits)
	svc.snapshotBook(ctx, resp.Book)
	return resp, nil
}

func validatePermutation(book *models.Book, pageIDs []string) error {
	if len(pageIDs) != len(book.Pages) {
		return errors.WithStack(errcodes.ValidationError(
			fmt.Sprintf("page_ids must contain all %d pages exactly once.", len(book.Pages))))
	}

	remaining := make(map[string]bool, len(book.Pages))
	for _, p := range book.Pages {
		remaining[p.ID] = true
	}
	for _, id := range pageIDs {
		if !remaining[id] {
			return errors.WithStack(errcodes.ValidationError(
				fmt.Sprintf("page_ids contains an unknown or duplicate page %q.", id)))
		}
		delete(remaining, id)
	}
	return nil
}

func (svc *Service) snapshotBook(ctx context.Context, book *models.Book) {
	if book == nil {
		return
	}
	if err := svc.store.SaveBook(ctx, book); err != nil {
		svc.log.Err(err).Warn("snapshot write error", logger.Data{"book_id": book.ID})
	}
}

func (svc *Service) snapshotBooks(ctx context.Context, books []*models.Book) {
	if err := svc.store.SaveBooks(ctx, books); err != nil {
		svc.log.Err(err).Warn("snapshot write error", logger.Data{"count": len(books)})
	}
}

func isNetworkUnavailable(err error) bool {
	var e *errcodes.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == "network_unavailable"
}
