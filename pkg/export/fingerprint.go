package export

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Fingerprint captures everything that affects an exported artifact. When the
// server's copy of the book changes, UpdatedAt moves and the cached artifact
// stops matching.
type Fingerprint struct {
	BookID    string              `json:"book_id"`
	Format    models.ExportFormat `json:"format"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func ComputeFingerprint(book *models.Book, format models.ExportFormat) *Fingerprint {
	return &Fingerprint{
		BookID:    book.ID,
		Format:    format,
		UpdatedAt: book.UpdatedAt,
	}
}

// Hash returns the SHA256 of the fingerprint's canonical encoding.
func (fp *Fingerprint) Hash() (string, error) {
	data, err := json.Marshal(fp)
	if err != nil {
		return "", errors.WithStack(err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
