package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
)

// Downloader retrieves one URL. A Downloader is used for a single call and
// then released with Close.
type Downloader interface {
	// Download returns the upstream status code and, for 200, the body as
	// UTF-8 text. A failure before any status was received returns status 0
	// and a non-nil error.
	Download(ctx context.Context, rawURL string) (status int, body string, err error)
	Close() error
}

// Factory makes a fresh Downloader for each fetch request.
type Factory func() Downloader

var (
	ErrUnsupportedURL = errors.New("unsupported url")
	ErrBodyTooLarge   = errors.New("upstream body too large")
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 * 1024 * 1024 // 10 MiB
	DefaultUserAgent    = "fetchgate/1.0"
)

type HTTPConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// HTTPDownloader fetches http and https URLs with its own transport, which
// Close releases.
type HTTPDownloader struct {
	config    HTTPConfig
	transport *http.Transport
	client    *http.Client
}

func NewHTTPDownloader(config HTTPConfig) *HTTPDownloader {
	config = config.withDefaults()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	return &HTTPDownloader{
		config:    config,
		transport: tr,
		client:    &http.Client{Transport: tr, Timeout: config.Timeout},
	}
}

// HTTPFactory returns a Factory producing HTTPDownloaders.
func HTTPFactory(config HTTPConfig) Factory {
	return func() Downloader { return NewHTTPDownloader(config) }
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) (int, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return http.StatusBadRequest, "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return http.StatusBadRequest, "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	req.Header.Set("User-Agent", d.config.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, "", nil
	}

	limited := http.MaxBytesReader(nil, resp.Body, d.config.MaxBodyBytes)
	body, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) {
		// charset sniffing hit an empty body
		return resp.StatusCode, "", nil
	}
	if err != nil {
		return 0, "", readErr(u, err)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, "", readErr(u, err)
	}
	return resp.StatusCode, string(data), nil
}

func readErr(u *url.URL, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("read %s: %w", u.Redacted(), err)
}

// Close drops the idle upstream connections held by this downloader.
func (d *HTTPDownloader) Close() error {
	d.transport.CloseIdleConnections()
	return nil
}
