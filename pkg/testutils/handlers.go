package testutils

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bookwrightapp/bookwright/internal/testgen"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/labstack/echo/v4"
)

func (s *Server) validateLicense(c echo.Context) error {
	var req struct {
		LicenseKey string `json:"license_key"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "malformed_payload", "Malformed Payload")
	}
	if req.LicenseKey != LicenseKey {
		return apiError(c, http.StatusUnauthorized, "unauthorized", "License key is invalid.")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":       true,
		"customer_id": CustomerID,
		"plan":        Plan,
	})
}

func (s *Server) credits(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.balance)
}

func (s *Server) listBooks(c echo.Context) error {
	includeArchived := c.QueryParam("include_archived") == "true"
	search := strings.ToLower(c.QueryParam("search"))

	s.mu.Lock()
	var books []*models.Book
	for _, b := range s.books {
		if b.IsArchived() && !includeArchived {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(b.Title), search) {
			continue
		}
		books = append(books, b)
	}
	s.mu.Unlock()

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	total := len(books)

	if v := c.QueryParam("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset < len(books) {
			books = books[offset:]
		} else if err == nil {
			books = nil
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit < len(books) {
			books = books[:limit]
		}
	}
	if books == nil {
		books = []*models.Book{}
	}

	return c.JSON(http.StatusOK, echo.Map{"books": books, "total": total})
}

func (s *Server) createBook(c echo.Context) error {
	var req struct {
		Title       string  `json:"title"`
		Subtitle    *string `json:"subtitle"`
		Description string  `json:"description"`
		BookType    string  `json:"book_type"`
		TargetPages int     `json:"target_pages"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "malformed_payload", "Malformed Payload")
	}
	if req.Title == "" || req.Description == "" {
		return apiError(c, http.StatusUnprocessableEntity, "validation_error", "Title and description are required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Creation itself is free; pages and completion charge as they happen.
	// The projected total is still guarded so a book can't start that the
	// customer can't finish.
	if s.balance.Remaining < req.TargetPages+2 {
		return apiError(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits.")
	}

	s.nextID++
	now := time.Now()
	book := &models.Book{
		ID:          fmt.Sprintf("book_%d", s.nextID),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		BookType:    req.BookType,
		TargetPages: req.TargetPages,
		Pages:       []*models.Page{},
	}
	s.books[book.ID] = book

	return c.JSON(http.StatusCreated, echo.Map{"book": book, "credits": s.balance})
}

func (s *Server) retrieveBook(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	return c.JSON(http.StatusOK, echo.Map{"book": book})
}

func (s *Server) deleteBook(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[c.Param("id")]; !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	delete(s.books, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) archiveBook(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	now := time.Now()
	book.ArchivedAt = &now
	book.UpdatedAt = now
	return c.JSON(http.StatusOK, echo.Map{"book": book})
}

func (s *Server) generatePage(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	if len(book.Pages) >= book.TargetPages {
		return apiError(c, http.StatusUnprocessableEntity, "pages_complete", "All pages have been generated.")
	}
	if !s.charge(1) {
		return apiError(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits.")
	}

	num := len(book.Pages) + 1
	book.Pages = append(book.Pages, &models.Page{
		ID:         fmt.Sprintf("%s_p%d", book.ID, num),
		PageNumber: num,
		Content:    fmt.Sprintf("<p>Generated content for page %d of %s.</p>", num, book.Title),
		Version:    1,
	})
	book.UpdatedAt = time.Now()

	return c.JSON(http.StatusCreated, echo.Map{"book": book, "credits": s.balance})
}

func (s *Server) updatePage(c echo.Context) error {
	pageNumber, err := strconv.Atoi(c.Param("pageNumber"))
	if err != nil {
		return apiError(c, http.StatusNotFound, "not_found", "Page not found.")
	}
	var req struct {
		Content     string `json:"content"`
		BaseVersion int    `json:"base_version"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "malformed_payload", "Malformed Payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	page := book.Page(pageNumber)
	if page == nil {
		return apiError(c, http.StatusNotFound, "not_found", "Page not found.")
	}
	if req.BaseVersion != page.Version {
		return apiError(c, http.StatusConflict, "conflict", "The page was changed elsewhere since you loaded it.")
	}

	page.Content = req.Content
	page.Version++
	book.UpdatedAt = time.Now()

	return c.JSON(http.StatusOK, echo.Map{"book": book})
}

func (s *Server) reorderPages(c echo.Context) error {
	var req struct {
		PageIDs []string `json:"page_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "malformed_payload", "Malformed Payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}

	byID := map[string]*models.Page{}
	for _, p := range book.Pages {
		byID[p.ID] = p
	}
	if len(req.PageIDs) != len(book.Pages) {
		return apiError(c, http.StatusUnprocessableEntity, "validation_error", "page_ids must include every page exactly once.")
	}

	reordered := make([]*models.Page, 0, len(req.PageIDs))
	for i, id := range req.PageIDs {
		page, ok := byID[id]
		if !ok {
			return apiError(c, http.StatusUnprocessableEntity, "validation_error", "page_ids must include every page exactly once.")
		}
		delete(byID, id)
		page.PageNumber = i + 1
		reordered = append(reordered, page)
	}
	book.Pages = reordered
	book.UpdatedAt = time.Now()

	return c.JSON(http.StatusOK, echo.Map{"book": book})
}

func (s *Server) completeBook(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	// Completion covers cover generation and finalization.
	if !s.charge(2) {
		return apiError(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits.")
	}

	now := time.Now()
	book.IsCompleted = true
	book.CompletedAt = &now
	book.UpdatedAt = now
	coverURL := "/v1/books/" + book.ID + "/cover"
	book.CoverURL = &coverURL

	return c.JSON(http.StatusOK, echo.Map{"book": book, "credits": s.balance})
}

func (s *Server) exportBook(c echo.Context) error {
	format := models.ExportFormat(c.QueryParam("format"))
	if !format.Valid() || format == models.ExportFormatBundle {
		return apiError(c, http.StatusUnprocessableEntity, "validation_error", "format must be one of epub, pdf, docx.")
	}
	return s.serveArtifact(c, format)
}

func (s *Server) exportBundle(c echo.Context) error {
	return s.serveArtifact(c, models.ExportFormatBundle)
}

func (s *Server) serveArtifact(c echo.Context, format models.ExportFormat) error {
	s.mu.Lock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	if !s.charge(1) {
		s.mu.Unlock()
		return apiError(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits.")
	}
	opts := testgen.ArtifactOptions{Title: book.Title, PageCount: maxInt(len(book.Pages), 1)}
	s.mu.Unlock()

	var data []byte
	switch format {
	case models.ExportFormatEPUB:
		data = testgen.GenerateEPUB(opts)
	case models.ExportFormatPDF:
		data = testgen.GeneratePDF(opts)
	case models.ExportFormatDOCX:
		data = testgen.GenerateDOCX(opts)
	case models.ExportFormatBundle:
		data = testgen.GenerateBundle(opts)
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "export."+format.Extension()))
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

func (s *Server) cover(c echo.Context) error {
	s.mu.Lock()
	_, ok := s.books[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	return c.Blob(http.StatusOK, "image/png", testgen.GenerateCoverPNG())
}

func (s *Server) marketing(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[c.Param("id")]
	if !ok {
		return apiError(c, http.StatusNotFound, "not_found", "Book not found.")
	}
	if !s.charge(1) {
		return apiError(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits.")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"marketing": models.MarketingCopy{
			Tagline:        "A story you won't put down.",
			BackCoverBlurb: fmt.Sprintf("%s is the book everyone will be talking about.", book.Title),
			Keywords:       []string{"fiction", "page-turner"},
			SocialPosts:    []string{fmt.Sprintf("Just finished writing %s!", book.Title)},
		},
		"credits": s.balance,
	})
}

func (s *Server) affiliateStats(c echo.Context) error {
	return c.JSON(http.StatusOK, models.AffiliateStats{
		ReferralCode:    "WRIGHT20",
		Clicks:          340,
		Signups:         25,
		Conversions:     12,
		PendingPayout:   4800,
		LifetimeEarning: 21600,
		UpdatedAt:       time.Now(),
	})
}

func (s *Server) subscription(c echo.Context) error {
	renews := time.Now().Add(20 * 24 * time.Hour)
	return c.JSON(http.StatusOK, models.Subscription{
		Status:         models.SubscriptionStatusActive,
		PlanID:         "plan_author_pro",
		PlanName:       "Author Pro",
		RenewsAt:       &renews,
		MonthlyCredits: 100,
	})
}

func (s *Server) plans(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"plans": []*models.Plan{
			{ID: "plan_starter", Name: "Starter", PriceCents: 900, MonthlyCredits: 30},
			{ID: "plan_author_pro", Name: "Author Pro", PriceCents: 2900, MonthlyCredits: 100, IsCurrent: true},
			{ID: "plan_publisher", Name: "Publisher", PriceCents: 9900, MonthlyCredits: 500},
		},
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
