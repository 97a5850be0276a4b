package apiclient

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/version"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// TokenSource supplies the bearer credential for authenticated requests. An
// empty string means no session; the request goes out without the header and
// the server answers 401.
type TokenSource func() string

// Client wraps HTTP calls to the backend. Every method issues exactly one
// request and either returns parsed JSON (or a blob for export endpoints) or
// a typed error built from the response body.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	log         logger.Logger
}

func New(cfg *config.Config, tokenSource TokenSource) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		tokenSource: tokenSource,
		log:         logger.New(),
	}
}

// Blob is a binary export payload with its declared content type.
type Blob struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, raw, err := c.roundTrip(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.WithStack(errcodes.FromResponse(resp.StatusCode, raw, resp.Header))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Err(err).Warn("response decode error", logger.Data{"path": path})
		return errors.WithStack(errcodes.MalformedResponse())
	}
	return nil
}

// doBlob expects a binary response. A JSON content type on an export endpoint
// means the server is reporting an error and is mapped accordingly.
func (c *Client) doBlob(ctx context.Context, method, path string, query url.Values) (*Blob, error) {
	resp, raw, err := c.roundTrip(ctx, method, path, query, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.WithStack(errcodes.FromResponse(resp.StatusCode, raw, resp.Header))
	}

	ctype := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(ctype); err == nil {
		ctype = mediaType
	}
	if ctype == "" || strings.HasPrefix(ctype, "application/json") {
		return nil, errors.WithStack(errcodes.FromResponse(http.StatusBadGateway, raw, resp.Header))
	}

	return &Blob{
		Data:        raw,
		ContentType: ctype,
		Filename:    filenameFromHeader(resp.Header),
	}, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	if token := c.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("User-Agent", "bookwright-cli/"+version.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.WithStack(ctx.Err())
		}
		c.log.Err(err).Debug("transport error", logger.Data{"path": path})
		return nil, nil, errors.WithStack(errcodes.NetworkUnavailable())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Err(err).Debug("response read error", logger.Data{"path": path})
		return nil, nil, errors.WithStack(errcodes.NetworkUnavailable())
	}
	return resp, raw, nil
}

func filenameFromHeader(header http.Header) string {
	cd := header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
