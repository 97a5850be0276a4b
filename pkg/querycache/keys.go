package querycache

import "strings"

// Key addresses a cached server resource: resource kind, then identifiers,
// then any parameters, joined in order. Keys are stable so mutations can
// invalidate exactly the entries they affect.
type Key string

const keySeparator = "/"

func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, keySeparator))
}

// HasPrefix reports whether k lives under prefix (or equals it), respecting
// separator boundaries so "books" does not match "bookshelf".
func (k Key) HasPrefix(prefix Key) bool {
	if k == prefix {
		return true
	}
	return strings.HasPrefix(string(k), string(prefix)+keySeparator)
}

func (k Key) String() string {
	return string(k)
}

// Well-known keys shared across services.
var (
	KeyCredits      = NewKey("credits")
	KeyBooks        = NewKey("books")
	KeyAffiliate    = NewKey("affiliate", "stats")
	KeySubscription = NewKey("subscription", "status")
	KeyPlans        = NewKey("subscription", "plans")
)

// KeyBook addresses a single book's detail entry.
func KeyBook(bookID string) Key {
	return NewKey("books", bookID)
}
