// Package testutils runs a scriptable in-memory stand-in for the Bookwright
// backend. It enforces bearer auth, keeps a server-side credit ledger, and
// serves real (minimal) export artifacts so client tests exercise the full
// download pipeline.
package testutils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/labstack/echo/v4"
)

const (
	// LicenseKey is the key the fake backend accepts.
	LicenseKey = "bw_test_valid_key"

	CustomerID = "cus_test"
	Plan       = "author-pro"
)

type Server struct {
	URL string

	mu               sync.Mutex
	balance          models.CreditBalance
	books            map[string]*models.Book
	nextID           int
	rateLimitedUntil time.Time
	forcedFailures   []forcedFailure
	requests         []string

	srv *httptest.Server
}

type forcedFailure struct {
	status  int
	code    string
	message string
}

// NewServer starts the fake backend with a 100-credit balance and registers
// shutdown with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		balance: models.CreditBalance{Total: 100, Used: 0, Remaining: 100},
		books:   map[string]*models.Book{},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(s.record, s.gate)

	e.POST("/v1/licenses/validate", s.validateLicense)
	e.GET("/v1/credits", s.credits)
	e.GET("/v1/books", s.listBooks)
	e.POST("/v1/books", s.createBook)
	e.GET("/v1/books/:id", s.retrieveBook)
	e.DELETE("/v1/books/:id", s.deleteBook)
	e.POST("/v1/books/:id/archive", s.archiveBook)
	e.POST("/v1/books/:id/pages", s.generatePage)
	e.PATCH("/v1/books/:id/pages/:pageNumber", s.updatePage)
	e.PUT("/v1/books/:id/pages/reorder", s.reorderPages)
	e.POST("/v1/books/:id/complete", s.completeBook)
	e.GET("/v1/books/:id/export", s.exportBook)
	e.GET("/v1/books/:id/export/bundle", s.exportBundle)
	e.GET("/v1/books/:id/cover", s.cover)
	e.POST("/v1/books/:id/marketing", s.marketing)
	e.GET("/v1/affiliate/stats", s.affiliateStats)
	e.GET("/v1/subscription", s.subscription)
	e.GET("/v1/subscription/plans", s.plans)

	s.srv = httptest.NewServer(e)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)

	return s
}

// record logs method+path so tests can assert which endpoints were (not) hit.
func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.requests = append(s.requests, c.Request().Method+" "+c.Request().URL.Path)
		s.mu.Unlock()
		return next(c)
	}
}

// gate applies scripted failures, the rate-limit window, and bearer auth.
func (s *Server) gate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		if len(s.forcedFailures) > 0 {
			f := s.forcedFailures[0]
			s.forcedFailures = s.forcedFailures[1:]
			s.mu.Unlock()
			return apiError(c, f.status, f.code, f.message)
		}
		limited := time.Now().Before(s.rateLimitedUntil)
		resetAt := s.rateLimitedUntil
		s.mu.Unlock()

		if limited {
			c.Response().Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
			return apiError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests.")
		}

		if c.Path() != "/v1/licenses/validate" {
			auth := c.Request().Header.Get("Authorization")
			if auth != "Bearer "+LicenseKey {
				return apiError(c, http.StatusUnauthorized, "unauthorized", "License key is invalid.")
			}
		}

		return next(c)
	}
}

func apiError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"error": echo.Map{
			"code":        code,
			"message":     message,
			"status_code": status,
		},
	})
}

// --- scripting hooks ---

// SetBalance overrides the ledger.
func (s *Server) SetBalance(total, used int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = models.CreditBalance{Total: total, Used: used, Remaining: total - used}
}

// Balance returns the current server-side ledger value.
func (s *Server) Balance() models.CreditBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// TripRateLimit 429s every request until the given time.
func (s *Server) TripRateLimit(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitedUntil = until
}

// FailNextWith makes the next request fail with the given error, once.
func (s *Server) FailNextWith(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedFailures = append(s.forcedFailures, forcedFailure{status, code, message})
}

// SeedBook installs a book directly, bypassing creation cost.
func (s *Server) SeedBook(book *models.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book.ID == "" {
		s.nextID++
		book.ID = fmt.Sprintf("book_%d", s.nextID)
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	book.UpdatedAt = time.Now()
	s.books[book.ID] = book
}

// Book returns the server's copy of a book.
func (s *Server) Book(id string) *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id]
}

// RequestCount counts recorded requests matching "METHOD /path" prefixes.
func (s *Server) RequestCount(methodAndPathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, methodAndPathPrefix) {
			n++
		}
	}
	return n
}

// charge deducts credits, holding the lock. Reports false when the balance
// can't cover the cost.
func (s *Server) charge(cost int) bool {
	if s.balance.Remaining < cost {
		return false
	}
	s.balance.Used += cost
	s.balance.Remaining = s.balance.Total - s.balance.Used
	return true
}
