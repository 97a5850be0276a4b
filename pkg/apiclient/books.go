package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/payload"
)

// ListBooksQuery filters the book list. Fields are encoded as query params.
type ListBooksQuery struct {
	Limit           int    `query:"limit"`
	Offset          int    `query:"offset"`
	IncludeArchived bool   `query:"include_archived"`
	Search          string `query:"search"`
}

type ListBooksResponse struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

// CreateBookRequest is the creation payload. Creation consumes
// target_pages + 2 credits (pages, cover, finalize), which callers guard
// before issuing the request.
type CreateBookRequest struct {
	Title       string  `json:"title"`
	Subtitle    *string `json:"subtitle,omitempty"`
	Description string  `json:"description"`
	BookType    string  `json:"book_type"`
	TargetPages int     `json:"target_pages"`
}

// BookResponse wraps mutation responses. Credits is present on
// credit-consuming mutations and carries the authoritative post-mutation
// balance; the cache still refetches rather than writing it.
type BookResponse struct {
	Book    *models.Book          `json:"book"`
	Credits *models.CreditBalance `json:"credits,omitempty"`
}

type UpdatePageRequest struct {
	Content     string `json:"content"`
	BaseVersion int    `json:"base_version"`
}

type ReorderPagesRequest struct {
	PageIDs []string `json:"page_ids"`
}

func (c *Client) ListBooks(ctx context.Context, q ListBooksQuery) (*ListBooksResponse, error) {
	values, err := payload.EncodeQuery(&q)
	if err != nil {
		return nil, err
	}
	var resp ListBooksResponse
	if err := c.do(ctx, http.MethodGet, "/v1/books", values, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RetrieveBook(ctx context.Context, bookID string) (*models.Book, error) {
	var resp BookResponse
	if err := c.do(ctx, http.MethodGet, "/v1/books/"+url.PathEscape(bookID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Book, nil
}

func (c *Client) CreateBook(ctx context.Context, req CreateBookRequest) (*BookResponse, error) {
	var resp BookResponse
	if err := c.do(ctx, http.MethodPost, "/v1/books", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteBook(ctx context.Context, bookID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/books/"+url.PathEscape(bookID), nil, nil, nil)
}

func (c *Client) ArchiveBook(ctx context.Context, bookID string) (*models.Book, error) {
	var resp BookResponse
	if err := c.do(ctx, http.MethodPost, "/v1/books/"+url.PathEscape(bookID)+"/archive", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Book, nil
}

// GeneratePage asks the backend to generate the next page. Consumes one
// credit.
func (c *Client) GeneratePage(ctx context.Context, bookID string) (*BookResponse, error) {
	var resp BookResponse
	if err := c.do(ctx, http.MethodPost, "/v1/books/"+url.PathEscape(bookID)+"/pages", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePage saves edited page content. The base version makes stale saves
// fail with a 409 instead of silently overwriting a concurrent edit.
func (c *Client) UpdatePage(ctx context.Context, bookID string, pageNumber int, req UpdatePageRequest) (*models.Book, error) {
	path := fmt.Sprintf("/v1/books/%s/pages/%d", url.PathEscape(bookID), pageNumber)
	var resp BookResponse
	if err := c.do(ctx, http.MethodPatch, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Book, nil
}

// ReorderPages submits a full permutation of the book's page IDs.
func (c *Client) ReorderPages(ctx context.Context, bookID string, req ReorderPagesRequest) (*models.Book, error) {
	path := "/v1/books/" + url.PathEscape(bookID) + "/pages/reorder"
	var resp BookResponse
	if err := c.do(ctx, http.MethodPut, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Book, nil
}

// CompleteBook finalizes cover and metadata. Consumes two credits.
func (c *Client) CompleteBook(ctx context.Context, bookID string) (*BookResponse, error) {
	var resp BookResponse
	if err := c.do(ctx, http.MethodPost, "/v1/books/"+url.PathEscape(bookID)+"/complete", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportBook downloads a single-format artifact. Consumes one credit.
func (c *Client) ExportBook(ctx context.Context, bookID string, format models.ExportFormat) (*Blob, error) {
	values := url.Values{}
	values.Set("format", string(format))
	return c.doBlob(ctx, http.MethodGet, "/v1/books/"+url.PathEscape(bookID)+"/export", values)
}

// DownloadCover fetches the finalized cover image.
func (c *Client) DownloadCover(ctx context.Context, bookID string) (*Blob, error) {
	return c.doBlob(ctx, http.MethodGet, "/v1/books/"+url.PathEscape(bookID)+"/cover", nil)
}

// ExportAllBooks downloads the bundle archive containing every format.
func (c *Client) ExportAllBooks(ctx context.Context, bookID string) (*Blob, error) {
	return c.doBlob(ctx, http.MethodGet, "/v1/books/"+url.PathEscape(bookID)+"/export/bundle", nil)
}
