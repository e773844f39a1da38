// Package transport is the HTTP client for the dashboard's JSON:API backend.
//
// It knows the four round trips the caches need (list, fetch one, create,
// update) and nothing about caching. Every failure is reported through one of
// the typed errors in errors.go; the caller decides what a failure means for
// its cache.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/finsync/codec"
	"github.com/unkn0wn-root/finsync/jsonapi"
)

const (
	defaultPrefix   = "/api"
	maxErrorBody    = 512
	requestIDHeader = "X-Request-ID"
)

// Options configure a Client. Only BaseURL is required.
type Options struct {
	BaseURL    string       // e.g. "http://localhost:8080"
	Prefix     string       // path prefix of the API; "" => "/api"
	HTTPClient *http.Client // nil => http.DefaultClient
	Format     string       // codec.For name; "" => JSON
	MaxBody    int          // max decoded response size in bytes; 0 => unlimited
}

// Page selects an offset window of a collection.
type Page struct {
	Offset int
	Limit  int
}

// Client performs JSON:API round trips. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	prefix string
	hc     *http.Client
	one    codec.Codec[jsonapi.Document]
	many   codec.Codec[jsonapi.CollectionDocument]
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("transport: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: base URL: %w", err)
	}
	one, err := codec.For[jsonapi.Document](opts.Format)
	if err != nil {
		return nil, err
	}
	many, err := codec.For[jsonapi.CollectionDocument](opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.MaxBody > 0 {
		one = codec.Limit[jsonapi.Document]{Inner: one, MaxDecode: opts.MaxBody}
		many = codec.Limit[jsonapi.CollectionDocument]{Inner: many, MaxDecode: opts.MaxBody}
	}
	c := &Client{base: base, one: one, many: many}
	c.prefix = strings.TrimRight(opts.Prefix, "/")
	if opts.Prefix == "" {
		c.prefix = defaultPrefix
	}
	c.hc = opts.HTTPClient
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	return c, nil
}

// CollectionURL returns the URL of a collection, optionally windowed by page.
// It is also the natural dedup key for list requests.
func (c *Client) CollectionURL(collection string, page *Page) string {
	u := c.base.JoinPath(c.prefix, collection)
	if page != nil {
		q := url.Values{}
		q.Set("page[offset]", strconv.Itoa(page.Offset))
		q.Set("page[limit]", strconv.Itoa(page.Limit))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ItemURL returns the URL of a single resource.
func (c *Client) ItemURL(collection, id string) string {
	return c.base.JoinPath(c.prefix, collection, id).String()
}

// List fetches a collection, or one page of it when page is non-nil.
func (c *Client) List(ctx context.Context, collection string, page *Page) ([]jsonapi.Resource, error) {
	u := c.CollectionURL(collection, page)
	raw, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	doc, err := c.many.Decode(raw)
	if err != nil {
		return nil, &ProtocolError{Method: http.MethodGet, URL: u, Err: err}
	}
	return doc.Data, nil
}

// Get fetches one resource. A 404 or a null document yields ErrNotFound.
func (c *Client) Get(ctx context.Context, collection, id string) (jsonapi.Resource, error) {
	u := c.ItemURL(collection, id)
	raw, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return jsonapi.Resource{}, ErrNotFound
		}
		return jsonapi.Resource{}, err
	}
	return c.decodeOne(http.MethodGet, u, raw, true)
}

// Create posts r (whose ID should be empty) and returns the stored resource.
func (c *Client) Create(ctx context.Context, collection string, r jsonapi.Resource) (jsonapi.Resource, error) {
	return c.write(ctx, http.MethodPost, c.CollectionURL(collection, nil), r)
}

// Update puts r at collection/id and returns the stored resource.
func (c *Client) Update(ctx context.Context, collection, id string, r jsonapi.Resource) (jsonapi.Resource, error) {
	return c.write(ctx, http.MethodPut, c.ItemURL(collection, id), r)
}

func (c *Client) write(ctx context.Context, method, u string, r jsonapi.Resource) (jsonapi.Resource, error) {
	body, err := c.one.Encode(jsonapi.Document{Data: &r})
	if err != nil {
		return jsonapi.Resource{}, fmt.Errorf("transport: encode %s body: %w", method, err)
	}
	raw, err := c.do(ctx, method, u, body, c.one.ContentType())
	if err != nil {
		return jsonapi.Resource{}, err
	}
	return c.decodeOne(method, u, raw, false)
}

func (c *Client) decodeOne(method, u string, raw []byte, nullIsNotFound bool) (jsonapi.Resource, error) {
	doc, err := c.one.Decode(raw)
	if err != nil {
		return jsonapi.Resource{}, &ProtocolError{Method: method, URL: u, Err: err}
	}
	if doc.Data == nil {
		if nullIsNotFound {
			return jsonapi.Resource{}, ErrNotFound
		}
		return jsonapi.Resource{}, &ProtocolError{Method: method, URL: u, Err: errors.New("empty data")}
	}
	return *doc.Data, nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, contentType string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u, Err: err}
	}
	req.Header.Set("Accept", c.one.ContentType())
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: u, Status: res.StatusCode, Body: string(data)}
	}
	return data, nil
}
