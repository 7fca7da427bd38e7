// Package remote provides a core.Database talking to a database served over
// the CouchDB-style REST API of package server.
//
// Like other HTTP clients of this API, it has no dedicated single-document
// write: a transform layer routes Put through BulkDocs.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/veneer/pkg/core"
)

// DefaultPollInterval is the delay between polls of a live changes feed.
const DefaultPollInterval = time.Second

// Client is a remote core.Database.
type Client struct {
	base         string
	name         string
	http         *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollInterval sets the polling delay of live changes feeds.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// New creates a client for the database served at rawURL.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid database url %q: scheme must be http or https", rawURL)
	}
	c := &Client{
		base:         strings.TrimSuffix(u.String(), "/"),
		name:         strings.TrimPrefix(u.Path, "/"),
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
	}
	if c.name == "" {
		c.name = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// Info implements core.Database. When the server can not be reached only
// the static fields are filled in.
func (c *Client) Info() core.Info {
	info := core.Info{Name: c.name}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.do(ctx, http.MethodGet, c.endpoint("", nil), nil, &info); err != nil {
		c.logger.Warn("database info unavailable", "url", c.base, "error", err)
		info.Name = c.name
	}
	info.Adapter = core.AdapterHTTP
	info.DedicatedPut = false
	return info
}

// HasDedicatedPut implements core.PutCapability. Clients of the REST API
// always write through _bulk_docs.
func (c *Client) HasDedicatedPut() bool {
	return false
}

// Get implements core.Database.
func (c *Client) Get(ctx context.Context, id string, opts core.Options) (core.GetResult, error) {
	if id == "" {
		return core.GetResult{}, core.BadRequest("missing _id")
	}
	endpoint := c.endpoint(docPath(id), opts)
	if opts.Has(core.OptOpenRevs) {
		var revs []core.RevResult
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &revs); err != nil {
			return core.GetResult{}, err
		}
		if revs == nil {
			revs = []core.RevResult{}
		}
		return core.GetResult{Revs: revs}, nil
	}
	var doc core.Document
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &doc); err != nil {
		return core.GetResult{}, err
	}
	return core.GetResult{Doc: doc}, nil
}

// Put implements core.Database.
func (c *Client) Put(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	id := doc.ID()
	if id == "" {
		return core.WriteResult{}, core.BadRequest("missing _id")
	}
	var res core.WriteResult
	err := c.do(ctx, http.MethodPut, c.endpoint(docPath(id), opts), doc, &res)
	return res, err
}

// BulkDocs implements core.Database.
func (c *Client) BulkDocs(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error) {
	body := map[string]any{"docs": docs}
	if _, ok := opts[core.OptNewEdits]; ok {
		body[core.OptNewEdits] = opts.Bool(core.OptNewEdits, true)
	}
	var results []core.WriteResult
	if err := c.do(ctx, http.MethodPost, c.endpoint("_bulk_docs", nil), body, &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = []core.WriteResult{}
	}
	return results, nil
}

// AllDocs implements core.Database. A keys option is sent in the body.
func (c *Client) AllDocs(ctx context.Context, opts core.Options) (core.AllDocsResponse, error) {
	var resp core.AllDocsResponse
	keys := opts.Strings(core.OptKeys)
	if keys == nil {
		err := c.do(ctx, http.MethodGet, c.endpoint("_all_docs", opts), nil, &resp)
		return resp, err
	}
	rest := opts.Clone()
	delete(rest, core.OptKeys)
	err := c.do(ctx, http.MethodPost, c.endpoint("_all_docs", rest), map[string]any{"keys": keys}, &resp)
	return resp, err
}

// BulkGet implements core.Database.
func (c *Client) BulkGet(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error) {
	var resp core.BulkGetResponse
	err := c.do(ctx, http.MethodPost, c.endpoint("_bulk_get", opts), map[string]any{"docs": reqs}, &resp)
	return resp, err
}

// Query implements core.Database. fun is "ddoc/view".
func (c *Client) Query(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error) {
	ddoc, view, ok := strings.Cut(strings.TrimPrefix(fun, "_design/"), "/")
	if !ok || ddoc == "" || view == "" {
		return core.QueryResponse{}, core.BadRequest(fmt.Sprintf("invalid view name %q", fun))
	}
	var resp core.QueryResponse
	path := "_design/" + url.PathEscape(ddoc) + "/_view/" + url.PathEscape(view)
	err := c.do(ctx, http.MethodGet, c.endpoint(path, opts), nil, &resp)
	return resp, err
}

// Close implements core.Database.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// docPath escapes an id into a single path segment.
func docPath(id string) string {
	return url.PathEscape(id)
}

// Options sent as plain strings rather than JSON.
var stringOptions = map[string]bool{
	core.OptRev:        true,
	core.OptFilterGlob: true,
	core.OptSince:      true,
}

func (c *Client) endpoint(path string, opts core.Options) string {
	u := c.base + "/" + path
	if len(opts) == 0 {
		return u
	}
	q := url.Values{}
	for name, v := range opts {
		if s, ok := v.(string); ok && stringOptions[name] {
			q.Set(name, s)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		q.Set(name, string(data))
	}
	return u + "?" + q.Encode()
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// do sends one request. Error responses are turned into *core.Error.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", "method", method, "url", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return &core.Error{
				Status: resp.StatusCode,
				Name:   http.StatusText(resp.StatusCode),
				Err:    errors.New(resp.Status),
			}
		}
		return core.ErrorFromName(eb.Error, eb.Reason)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

var _ core.Database = (*Client)(nil)
var _ core.PutCapability = (*Client)(nil)
