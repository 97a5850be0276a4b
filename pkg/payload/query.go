package payload

import (
	"net/url"

	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

var queryEncoder = newQueryEncoder()

func newQueryEncoder() *schema.Encoder {
	enc := schema.NewEncoder()
	enc.SetAliasTag("query")
	return enc
}

// EncodeQuery encodes a struct's `query`-tagged fields into URL values for
// GET requests. Zero-valued optional fields are omitted by gorilla/schema.
func EncodeQuery(i interface{}) (url.Values, error) {
	values := url.Values{}
	if i == nil {
		return values, nil
	}
	if err := queryEncoder.Encode(i, values); err != nil {
		return nil, errors.WithStack(err)
	}
	return values, nil
}
