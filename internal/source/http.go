package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"balances/internal/core"
	"balances/internal/log"
)

const errorBodyLimit = 4 << 10

// HTTPFetcher issues GET requests against the balances endpoint.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.httpClient = c }
}

// WithTimeout sets a client timeout. Zero keeps the transport defaults.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.httpClient = &http.Client{Timeout: d, Transport: f.httpClient.Transport}
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *log.Logger) HTTPOption {
	return func(f *HTTPFetcher) { f.logger = l.WithComponent(log.ComponentUpstream) }
}

func NewHTTPFetcher(url string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		url:        url,
		httpClient: &http.Client{},
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchSnapshot performs exactly one request. Caches are bypassed on both
// the client and any intermediary.
func (f *HTTPFetcher) FetchSnapshot(ctx context.Context) (core.Snapshot, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return core.Snapshot{}, f.fail(ctx, OpRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return core.Snapshot{}, f.fail(ctx, OpRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return core.Snapshot{}, f.fail(ctx, OpStatus, &StatusError{
			Code:    resp.StatusCode,
			Message: upstreamMessage(body),
		})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Snapshot{}, f.fail(ctx, OpRead, err)
	}

	snap, err := core.DecodeSnapshot(body)
	if err != nil {
		return core.Snapshot{}, f.fail(ctx, OpDecode, err)
	}

	f.logger.DebugContext(ctx, "Snapshot fetched",
		log.FieldURL, f.url,
		log.FieldBytes, len(body),
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func (f *HTTPFetcher) fail(ctx context.Context, op string, err error) error {
	f.logger.WarnContext(ctx, "Snapshot fetch failed",
		log.FieldURL, f.url,
		log.FieldOperation, op,
		log.FieldError, err.Error(),
	)
	return &LoadError{Op: op, Source: f.url, Err: err}
}

// upstreamMessage extracts {"error": "..."} from an error body, falling back
// to the trimmed text when it is short and not JSON.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return strings.TrimSpace(payload.Error)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

var _ Fetcher = (*HTTPFetcher)(nil)

func (f *HTTPFetcher) String() string { return fmt.Sprintf("http(%s)", f.url) }
