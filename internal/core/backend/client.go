package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRequestFailed covers every way a backend call can fail: transport errors,
// non-2xx statuses, unreadable bodies and undecodable metadata.
var ErrRequestFailed = errors.New("backend request failed")

// Endpoint paths exposed by the analysis backend.
const (
	ThumbnailPath = "/api/thumbnail"
	MetadataPath  = "/api/metadata"
	DownloadPath  = "/api/download"
)

// DefaultUserAgent is sent with every backend request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (compatible; videfly/1.0)"

// Payload is a binary response body together with its media type.
type Payload struct {
	Data        []byte
	ContentType string
}

// ClientOptions controls how the backend is contacted.
type ClientOptions struct {
	// Timeout bounds each request. Zero means no client-side timeout; a hung
	// backend then leaves the caller waiting until the context is done.
	Timeout time.Duration
	// MaxBodySize caps the number of bytes read from a response body.
	// Bodies larger than this fail the request. 0 means no limit.
	MaxBodySize int64
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Transport optionally replaces the default HTTP transport.
	Transport http.RoundTripper
}

// Client calls the three analysis endpoints of the backend service.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	UserAgent   string
	MaxBodySize int64
}

// NewClient returns a Client for the backend reachable at baseURL.
//
// baseURL is not validated; an empty or malformed address simply makes every
// request fail with ErrRequestFailed.
func NewClient(baseURL string, opts ClientOptions) *Client {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		UserAgent:   ua,
		MaxBodySize: opts.MaxBodySize,
	}
}

// Thumbnail fetches the preview image for videoURL.
func (c *Client) Thumbnail(ctx context.Context, videoURL string) (Payload, error) {
	return c.fetchPayload(ctx, ThumbnailPath, videoURL)
}

// Download fetches the full video payload for videoURL.
func (c *Client) Download(ctx context.Context, videoURL string) (Payload, error) {
	return c.fetchPayload(ctx, DownloadPath, videoURL)
}

// Metadata fetches the technical metadata record for videoURL. Field order
// follows the order of keys in the backend's JSON object.
func (c *Client) Metadata(ctx context.Context, videoURL string) (Metadata, error) {
	body, _, err := c.get(ctx, MetadataPath, videoURL)
	if err != nil {
		return nil, err
	}
	md, err := DecodeMetadata(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRequestFailed, MetadataPath, err)
	}
	return md, nil
}

// EndpointURL builds the request URL for an endpoint path, percent-encoding
// videoURL into the url query parameter.
func (c *Client) EndpointURL(path, videoURL string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	return base + path + "?url=" + url.QueryEscape(videoURL)
}

func (c *Client) fetchPayload(ctx context.Context, path, videoURL string) (Payload, error) {
	body, contentType, err := c.get(ctx, path, videoURL)
	if err != nil {
		return Payload{}, err
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return Payload{Data: body, ContentType: contentType}, nil
}

func (c *Client) get(ctx context.Context, path, videoURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EndpointURL(path, videoURL), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrRequestFailed, path, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s: HTTP %d", ErrRequestFailed, path, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if c.MaxBodySize > 0 {
		// Read one extra byte so an oversized body is detected rather than truncated.
		reader = io.LimitReader(resp.Body, c.MaxBodySize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: reading body: %v", ErrRequestFailed, path, err)
	}
	if c.MaxBodySize > 0 && int64(len(data)) > c.MaxBodySize {
		return nil, "", fmt.Errorf("%w: %s: body exceeds %d bytes", ErrRequestFailed, path, c.MaxBodySize)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
