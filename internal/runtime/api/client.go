// Package api is the HTTP client for the commitlog server. It implements the
// jobs.API interface plus the package discovery and checkout endpoints.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/drblury/commitlog/internal/runtime/catalog"
	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
	"github.com/drblury/commitlog/internal/runtime/ids"
	"github.com/drblury/commitlog/internal/runtime/jsoncodec"
	"github.com/drblury/commitlog/internal/runtime/logging"
)

// Encoding selects the body format of catalog messages.
type Encoding string

const (
	EncodingJSON   Encoding = "json"
	EncodingBinary Encoding = "binary"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/x-protobuf"

	// HeaderRequestID carries a ULID identifying each request.
	HeaderRequestID = "X-Request-Id"
)

const (
	pathPackages = "/listPackages"
	pathTests    = "/listTests"
	pathSubmit   = "/listFiles"
	pathStatus   = "/job/"
	pathCheckout = "/checkout"
)

// defaultResponseLimit bounds response bodies when the codec has no limit.
const defaultResponseLimit = 256 << 20

// ParseEncoding validates an encoding name. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingBinary:
		return EncodingBinary, nil
	default:
		return "", fmt.Errorf("commitlog: unknown encoding %q", s)
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithEncoding selects the request body encoding.
func WithEncoding(e Encoding) Option {
	return func(c *Client) { c.encoding = e }
}

// WithCodec sets the catalog codec, and with it the message size limit.
func WithCodec(codec catalog.Codec) Option {
	return func(c *Client) { c.codec = codec }
}

// WithLogger sets the request logger.
func WithLogger(l logging.ServiceLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to one commitlog server. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	codec    catalog.Codec
	encoding Encoding
	logger   logging.ServiceLogger
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("commitlog: parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("commitlog: server url %q must be http or https", baseURL)
	}

	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 30 * time.Second},
		codec:    catalog.NewCodec(catalog.Options{}),
		encoding: EncodingJSON,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := ParseEncoding(string(c.encoding)); err != nil {
		return nil, err
	}
	return c, nil
}

// ListPackages returns the packages the server can analyse.
func (c *Client) ListPackages(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, pathPackages, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTests returns the tests of pkg. A package without tests yields nil.
func (c *Client) ListTests(ctx context.Context, pkg string) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, pathTests, url.Values{"pkg": {pkg}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit starts a job. Servers that answer with a bare job id in a text body
// are accepted as well as encoded SubmitResponse bodies.
func (c *Client) Submit(ctx context.Context, req catalog.SubmitRequest) (catalog.SubmitResponse, error) {
	body, contentType, err := c.encode(&req)
	if err != nil {
		return catalog.SubmitResponse{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, pathSubmit, nil, body, contentType)
	if err != nil {
		return catalog.SubmitResponse{}, err
	}

	var out catalog.SubmitResponse
	if resp.isBinary() || looksLikeJSON(resp.body) {
		if err := c.decode(resp, &out); err != nil {
			return catalog.SubmitResponse{}, err
		}
		return out, nil
	}
	out.ID = strings.TrimSpace(string(resp.body))
	return out, nil
}

// Status fetches the status of job id.
func (c *Client) Status(ctx context.Context, id string) (catalog.JobStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, pathStatus+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return catalog.JobStatus{}, err
	}
	var out catalog.JobStatus
	if err := c.decode(resp, &out); err != nil {
		return catalog.JobStatus{}, err
	}
	return out, nil
}

// Checkout asks the server to write the files of req to its working tree.
func (c *Client) Checkout(ctx context.Context, req catalog.CheckoutRequest) error {
	body, contentType, err := c.encode(&req)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, pathCheckout, nil, body, contentType)
	return err
}

type response struct {
	contentType string
	body        []byte
}

func (r response) isBinary() bool { return r.contentType == ContentTypeBinary }

func (c *Client) encode(m catalog.Message) ([]byte, string, error) {
	if c.encoding == EncodingBinary {
		b, err := c.codec.Marshal(m)
		return b, ContentTypeBinary, err
	}
	b, err := c.codec.MarshalJSON(m)
	return b, ContentTypeJSON, err
}

func (c *Client) decode(resp response, m catalog.Message) error {
	if resp.isBinary() {
		return c.codec.Unmarshal(resp.body, m)
	}
	return c.codec.UnmarshalJSON(resp.body, m)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	if err := jsoncodec.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", errspkg.ErrInvalidEncoding, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (response, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return response{}, err
	}
	requestID := ids.CreateULID()
	req.Header.Set(HeaderRequestID, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.encoding == EncodingBinary {
		req.Header.Set("Accept", ContentTypeBinary+", "+ContentTypeJSON+";q=0.9")
	} else {
		req.Header.Set("Accept", ContentTypeJSON)
	}

	fields := logging.LogFields{"method": method, "path": path, "request_id": requestID}
	c.logger.Trace("Sending request", fields)

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	limit := int64(defaultResponseLimit)
	if max := c.codec.Options().MaxSize; max > 0 {
		limit = int64(max)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return response{}, fmt.Errorf("commitlog: read %s response: %w", path, err)
	}
	if int64(len(data)) > limit {
		return response{}, fmt.Errorf("%w: %s response exceeds %d bytes", errspkg.ErrMessageTooLarge, path, limit)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Request rejected", logging.LogFields{"path": path, "status": resp.StatusCode})
		return response{}, fmt.Errorf("%w: %s %s: %d %s", errspkg.ErrUnexpectedStatus,
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return response{contentType: mediaType, body: data}, nil
}

func looksLikeJSON(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}
