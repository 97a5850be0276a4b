package models

import (
	"sort"
	"time"
)

const (
	BookTypeFiction    = "fiction"
	BookTypeNonFiction = "non_fiction"
	BookTypeChildrens  = "childrens"
	BookTypeTechnical  = "technical"
)

type Book struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Title       string     `json:"title"`
	Subtitle    *string    `json:"subtitle,omitempty"`
	Description string     `json:"description"`
	BookType    string     `json:"book_type"`
	Pages       []*Page    `json:"pages"`
	CoverURL    *string    `json:"cover_url,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	TargetPages int        `json:"target_pages"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// Page content is server-generated HTML. Version increments on every save and
// is echoed back as base_version on updates so stale saves get rejected.
type Page struct {
	ID         string  `json:"id"`
	PageNumber int     `json:"page_number"`
	Content    string  `json:"content"`
	Section    *string `json:"section,omitempty"`
	Version    int     `json:"version"`
}

// GeneratedPages returns the book's pages ordered by page number.
func (b *Book) GeneratedPages() []*Page {
	pages := make([]*Page, len(b.Pages))
	copy(pages, b.Pages)
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages
}

// HasContiguousPages reports whether the generated page numbers are exactly
// 1..k with no gaps or duplicates.
func (b *Book) HasContiguousPages() bool {
	seen := make(map[int]bool, len(b.Pages))
	for _, p := range b.Pages {
		if p.PageNumber < 1 || p.PageNumber > len(b.Pages) || seen[p.PageNumber] {
			return false
		}
		seen[p.PageNumber] = true
	}
	return true
}

// Page returns the page with the given page number, or nil.
func (b *Book) Page(pageNumber int) *Page {
	for _, p := range b.Pages {
		if p.PageNumber == pageNumber {
			return p
		}
	}
	return nil
}

// Progress returns generation progress as a 0-100 percentage.
func (b *Book) Progress() int {
	if b.TargetPages <= 0 {
		return 0
	}
	pct := len(b.Pages) * 100 / b.TargetPages
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (b *Book) IsArchived() bool {
	return b.ArchivedAt != nil
}
