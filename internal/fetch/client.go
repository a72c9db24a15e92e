package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// DefaultMaxBytes caps remote source downloads.
const DefaultMaxBytes = int64(utils.MaxSourceSize)

// Client downloads app sources over HTTP for registry installs.
type Client struct {
	client   *retryablehttp.Client
	maxBytes int64
	breakers *breakerSet
}

// NewClient creates a download client. maxBytes of zero or less falls back
// to DefaultMaxBytes.
func NewClient(maxBytes int64) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil // Disable logging

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Client{client: rc, maxBytes: maxBytes, breakers: newBreakerSet()}
}

// Download fetches a script from rawURL and returns it as a string. The
// response must be text, valid UTF-8, and within the size cap. Origins
// that keep failing are cut off for a cooldown and report
// ErrOriginUnavailable.
func (c *Client) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	br := c.breakers.get(u.Host)
	if !br.allow(time.Now()) {
		return "", fmt.Errorf("%w: %s", ErrOriginUnavailable, u.Host)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		br.record(false, time.Now())
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		br.record(false, time.Now())
		return "", fmt.Errorf("download failed: %s", resp.Status)
	}
	if resp.ContentLength > c.maxBytes {
		br.record(true, time.Now())
		return "", fmt.Errorf("source exceeds %d byte limit", c.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		br.record(false, time.Now())
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	br.record(true, time.Now())
	if int64(len(data)) > c.maxBytes {
		return "", fmt.Errorf("source exceeds %d byte limit", c.maxBytes)
	}
	if len(data) == 0 {
		return "", errors.New("empty response body")
	}

	mt := mimetype.Detect(data)
	if !textLike(mt) {
		return "", fmt.Errorf("unexpected content type %s", mt.String())
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("source is %s encoded, expected UTF-8", detectCharset(data))
	}

	return string(data), nil
}

// textLike reports whether detected content could be a script. Remote
// sources are plain text, never archives or binaries.
func textLike(mt *mimetype.MIME) bool {
	s := mt.String()
	return strings.HasPrefix(s, "text/") ||
		strings.HasPrefix(s, "application/javascript") ||
		strings.HasPrefix(s, "application/json")
}

// detectCharset names the encoding for error messages only.
func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "unknown"
	}
	return strings.ToLower(result.Charset)
}
