// Package intel talks to the external analysis services: the web3
// security kit for repository intent labels and the smartbert model
// for embeddings. Both are optional collaborators; an unreachable
// service degrades the audit, never aborts it.
package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/solaudit/solaudit/pkg/errs"
	"github.com/solaudit/solaudit/pkg/observability"
)

const (
	healthTimeout  = 2 * time.Second
	requestTimeout = 30 * time.Second
	cacheSize      = 64
)

// Config holds the service endpoints. Empty endpoints disable the
// corresponding capability.
type Config struct {
	IntentEndpoint string
	EmbedEndpoint  string
	Timeout        time.Duration
}

// ScanRequest is the wire request both services accept on POST /scan.
type ScanRequest struct {
	RepositoryPath string `json:"repository_path"`
	WithIntent     bool   `json:"with_intent"`
	WithEmbed      bool   `json:"with_embed"`
}

// ScanResult carries what the services know about a repository.
type ScanResult struct {
	Intents   []string  `json:"intents,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// ServiceStatus is one service's reachability snapshot.
type ServiceStatus struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	Reachable bool   `json:"reachable"`
}

type Client struct {
	cfg     Config
	http    *http.Client
	cache   *lru.Cache[string, *ScanResult]
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = requestTimeout
	}
	cache, _ := lru.New[string, *ScanResult](cacheSize)
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		logger:  logger,
		metrics: observability.GetMetrics(),
	}
}

// Intents asks the security kit what the repository is. Results are
// cached per path; repository content does not change mid-audit.
func (c *Client) Intents(ctx context.Context, repoPath string) ([]string, error) {
	if c.cfg.IntentEndpoint == "" {
		return nil, nil
	}
	res, err := c.scan(ctx, "web3-sekit", c.cfg.IntentEndpoint, ScanRequest{
		RepositoryPath: repoPath,
		WithIntent:     true,
	})
	if err != nil {
		return nil, err
	}
	return res.Intents, nil
}

// Embedding fetches the repository's embedding vector from smartbert.
func (c *Client) Embedding(ctx context.Context, repoPath string) ([]float64, error) {
	if c.cfg.EmbedEndpoint == "" {
		return nil, nil
	}
	res, err := c.scan(ctx, "smartbert", c.cfg.EmbedEndpoint, ScanRequest{
		RepositoryPath: repoPath,
		WithEmbed:      true,
	})
	if err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// Status probes both services with a short health check against their
// root path.
func (c *Client) Status(ctx context.Context) []ServiceStatus {
	statuses := []ServiceStatus{
		{Name: "web3-sekit", Endpoint: c.cfg.IntentEndpoint},
		{Name: "smartbert", Endpoint: c.cfg.EmbedEndpoint},
	}
	for i := range statuses {
		if statuses[i].Endpoint == "" {
			continue
		}
		statuses[i].Reachable = c.healthy(ctx, statuses[i].Endpoint)
	}
	return statuses
}

func (c *Client) healthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 300
}

// scanResponse tolerates the older "labels" field name alongside the
// current "intents".
type scanResponse struct {
	Intents   []string  `json:"intents"`
	Labels    []string  `json:"labels"`
	Embedding []float64 `json:"embedding"`
}

func (c *Client) scan(ctx context.Context, service, endpoint string, sreq ScanRequest) (*ScanResult, error) {
	key := cacheKey(service, sreq)
	if res, ok := c.cache.Get(key); ok {
		c.metrics.IntelCacheHits.Inc()
		return res, nil
	}

	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, fmt.Errorf("encoding scan request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/scan", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IntelRequests.WithLabelValues(service, "unreachable").Inc()
		return nil, fmt.Errorf("%s at %s: %w: %v", service, endpoint, errs.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.metrics.IntelRequests.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s returned %d: %w", service, resp.StatusCode, errs.ErrServiceUnavailable)
	}

	var sresp scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&sresp); err != nil {
		c.metrics.IntelRequests.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s sent malformed response: %w: %v", service, errs.ErrServiceUnavailable, err)
	}
	c.metrics.IntelRequests.WithLabelValues(service, "ok").Inc()

	intents := sresp.Intents
	if len(intents) == 0 {
		intents = sresp.Labels
	}
	res := &ScanResult{Intents: intents, Embedding: sresp.Embedding}
	c.cache.Add(key, res)

	c.logger.Debug("intel scan complete",
		"service", service,
		"path", sreq.RepositoryPath,
		"intents", len(res.Intents),
		"embedding_dims", len(res.Embedding))
	return res, nil
}

func cacheKey(service string, sreq ScanRequest) string {
	return service + "|" + sreq.RepositoryPath
}
