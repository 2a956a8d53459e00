package savelog

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxArtifactSize bounds how much of the save log is read per request.
const maxArtifactSize = 16 << 20

// Fetcher retrieves the save log over HTTP.
type Fetcher struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher for saveURL. requestsPerSecond <= 0 disables
// pacing; otherwise polling never hits the server faster than that.
func NewFetcher(client *http.Client, saveURL string, requestsPerSecond float64, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Fetcher{
		client:  client,
		url:     saveURL,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("savelog"),
	}
}

// URL returns the address of the save log.
func (f *Fetcher) URL() string { return f.url }

// FetchText returns the body of the save log as served.
func (f *Fetcher) FetchText(ctx context.Context) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", f.url, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch save log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("save log %s returned status %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return "", fmt.Errorf("failed to read save log body: %w", err)
	}
	f.logger.Debug("Fetched save log.", zap.String("url", f.url), zap.Int("bytes", len(body)))
	return string(body), nil
}

// Fetch retrieves the save log and decodes its most recent envelope.
func (f *Fetcher) Fetch(ctx context.Context) (Envelope, error) {
	text, err := f.FetchText(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}
