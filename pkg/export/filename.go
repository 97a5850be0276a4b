package export

import (
	"strings"

	"github.com/bookwrightapp/bookwright/pkg/models"
)

// DownloadFilename derives the saved filename from the book title. Anything
// that isn't alphanumeric or a space is stripped so the name is safe on every
// platform, then spaces collapse to single separators.
func DownloadFilename(book *models.Book, format models.ExportFormat) string {
	return sanitizeTitle(book.Title) + "." + format.Extension()
}

// CoverFilename names a downloaded cover image by its sniffed extension.
func CoverFilename(book *models.Book, ext string) string {
	return sanitizeTitle(book.Title) + "-cover." + ext
}

func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" {
		return "book"
	}
	return name
}
