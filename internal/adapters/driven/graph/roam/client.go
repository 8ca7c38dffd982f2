package roam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quillgraph/quill-cli/internal/core/domain"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
	"github.com/quillgraph/quill-cli/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.GraphClient = (*Client)(nil)

const (
	// DefaultBaseURL is the Roam backend API entry point.
	DefaultBaseURL = "https://api.roamresearch.com"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// Roam's documented limit is 50 requests per minute. The proactive
	// throttle stays below it so bulk ancestor lookups don't trip 429s.
	proactiveRate  = 0.8
	proactiveBurst = 3

	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second
)

// Config holds Roam client configuration.
type Config struct {
	// BaseURL is the API entry point. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is the Roam API token (required).
	Token string

	// Graph is the graph name (required).
	Graph string

	// Timeout is the per-request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client implements driven.GraphClient against the Roam backend API.
type Client struct {
	baseURL string
	token   string
	graph   string
	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration

	// peerMu guards the cached per-graph peer URL set from 307 redirects.
	peerMu  sync.Mutex
	peerURL string
}

// NewClient creates a Roam backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: roam api token is required", domain.ErrInvalidInput)
	}
	if cfg.Graph == "" {
		return nil, fmt.Errorf("%w: roam graph name is required", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger.Debug("Roam client for graph %q, token %s", cfg.Graph, maskToken(cfg.Token))

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		graph:   cfg.Graph,
		client: &http.Client{
			Timeout: cfg.Timeout,
			// Redirects are followed manually so the peer URL can be cached.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(proactiveRate), proactiveBurst),
		backoff: initialBackoff,
	}, nil
}

// FetchAll returns every block in the graph with its metadata.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Block, error) {
	query := `[:find ?uid ?string ?edit-time ?page-uid ?page-title
	           :where
	           [?b :block/uid ?uid]
	           [?b :block/string ?string]
	           [?b :edit/time ?edit-time]
	           [?b :block/page ?page]
	           [?page :block/uid ?page-uid]
	           [?page :node/title ?page-title]]`

	blocks, err := c.queryBlocks(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.attachParents(ctx, blocks, 0); err != nil {
		return nil, err
	}

	logger.Debug("Fetched %d blocks from graph %q", len(blocks), c.graph)
	return blocks, nil
}

// FetchModifiedSince returns blocks edited strictly after the given
// epoch-millisecond timestamp.
func (c *Client) FetchModifiedSince(ctx context.Context, timestamp int64) ([]domain.Block, error) {
	query := fmt.Sprintf(`[:find ?uid ?string ?edit-time ?page-uid ?page-title
	           :where
	           [?b :block/uid ?uid]
	           [?b :block/string ?string]
	           [?b :edit/time ?edit-time]
	           [(> ?edit-time %d)]
	           [?b :block/page ?page]
	           [?page :block/uid ?page-uid]
	           [?page :node/title ?page-title]]`, timestamp)

	blocks, err := c.queryBlocks(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.attachParents(ctx, blocks, timestamp); err != nil {
		return nil, err
	}

	logger.Debug("Fetched %d blocks modified since %d", len(blocks), timestamp)
	return blocks, nil
}

// FetchAncestorChain returns ancestor block contents ordered from root to
// immediate parent. A block with no parents yields an empty chain.
func (c *Client) FetchAncestorChain(ctx context.Context, uid string) ([]string, error) {
	query := fmt.Sprintf(`[:find ?parent-string ?parent-order
	           :where
	           [?b :block/uid %q]
	           [?b :block/parents ?parent]
	           [?parent :block/string ?parent-string]
	           [?parent :block/order ?parent-order]]`, uid)

	rows, err := c.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	type entry struct {
		content string
		order   int64
	}
	entries := make([]entry, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("ancestor row has %d columns, want 2", len(row))
		}
		content, ok := row[0].(string)
		if !ok {
			return nil, fmt.Errorf("ancestor content is %T, want string", row[0])
		}
		entries = append(entries, entry{content: content, order: toInt64(row[1])})
	}

	// Lower order means closer to the root.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].order < entries[j-1].order; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	chain := make([]string, len(entries))
	for i, e := range entries {
		chain[i] = e.content
	}
	return chain, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// queryBlocks runs a five-column block query and converts rows to blocks.
func (c *Client) queryBlocks(ctx context.Context, query string) ([]domain.Block, error) {
	rows, err := c.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	blocks := make([]domain.Block, 0, len(rows))
	for _, row := range rows {
		if len(row) != 5 {
			return nil, fmt.Errorf("block row has %d columns, want 5", len(row))
		}
		uid, ok1 := row[0].(string)
		content, ok2 := row[1].(string)
		pageUID, ok3 := row[3].(string)
		pageTitle, ok4 := row[4].(string)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, fmt.Errorf("block row %v has unexpected column types", row)
		}
		blocks = append(blocks, domain.Block{
			UID:       uid,
			Content:   content,
			EditTime:  toInt64(row[2]),
			PageUID:   pageUID,
			PageTitle: pageTitle,
		})
	}
	return blocks, nil
}

// attachParents resolves direct parent UIDs for the given blocks with a
// single extra query. modifiedAfter limits the join to recently edited
// blocks; zero means all of them.
func (c *Client) attachParents(ctx context.Context, blocks []domain.Block, modifiedAfter int64) error {
	if len(blocks) == 0 {
		return nil
	}

	filter := ""
	if modifiedAfter > 0 {
		filter = fmt.Sprintf(`
	           [?b :edit/time ?edit-time]
	           [(> ?edit-time %d)]`, modifiedAfter)
	}
	query := fmt.Sprintf(`[:find ?uid ?parent-uid
	           :where
	           [?p :block/children ?b]
	           [?b :block/uid ?uid]%s
	           [?p :block/uid ?parent-uid]]`, filter)

	rows, err := c.runQuery(ctx, query)
	if err != nil {
		return err
	}

	parents := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			continue
		}
		uid, ok1 := row[0].(string)
		parentUID, ok2 := row[1].(string)
		if ok1 && ok2 {
			parents[uid] = parentUID
		}
	}

	for i := range blocks {
		blocks[i].ParentUID = parents[blocks[i].UID]
	}
	return nil
}

// runQuery POSTs a Datalog query and returns the result rows.
func (c *Client) runQuery(ctx context.Context, query string) ([][]any, error) {
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	respBody, err := c.call(ctx, fmt.Sprintf("/api/graph/%s/q", c.graph), body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result [][]any `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return parsed.Result, nil
}

// call POSTs to the Roam API with redirect caching and bounded
// exponential backoff on transient failures.
func (c *Client) call(ctx context.Context, path string, body []byte) ([]byte, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Roam request retry %d/%d after %s: %v", attempt, maxRetries, backoff, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		respBody, retryable, err := c.callOnce(ctx, path, body)
		if err == nil {
			return respBody, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %w", domain.ErrSourceUnreachable, maxRetries+1, lastErr)
}

// callOnce performs a single POST, following at most one cached redirect
// hop. The second return value reports whether the failure is transient.
func (c *Client) callOnce(ctx context.Context, path string, body []byte) ([]byte, bool, error) {
	// One extra iteration to retry against a freshly cached peer.
	for hop := 0; hop < 2; hop++ {
		resp, err := c.post(ctx, c.endpoint()+path, body)
		if err != nil {
			return nil, true, fmt.Errorf("post %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusTemporaryRedirect || resp.StatusCode == http.StatusPermanentRedirect {
			location := resp.Header.Get("Location")
			_ = resp.Body.Close()
			if location == "" {
				return nil, false, fmt.Errorf("redirect without location header")
			}
			peer, err := peerBase(location)
			if err != nil {
				return nil, false, err
			}
			c.setPeer(peer)
			logger.Debug("Cached Roam peer %s", peer)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, true, fmt.Errorf("read response: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, false, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, false, fmt.Errorf("authentication failed (HTTP 401): check the api token")
		case resp.StatusCode == http.StatusBadRequest:
			return nil, false, fmt.Errorf("bad request (HTTP 400): %s", respBody)
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, true, fmt.Errorf("rate limited (HTTP 429)")
		case resp.StatusCode >= 500:
			return nil, true, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, respBody)
		default:
			return nil, false, fmt.Errorf("unexpected status (HTTP %d): %s", resp.StatusCode, respBody)
		}
	}

	return nil, true, fmt.Errorf("redirect loop for %s", path)
}

// post sends one authenticated POST request.
func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Authorization", "Bearer "+c.token)

	return c.client.Do(req)
}

// endpoint returns the cached peer URL or the base URL.
func (c *Client) endpoint() string {
	c.peerMu.Lock()
	defer c.peerMu.Unlock()
	if c.peerURL != "" {
		return c.peerURL
	}
	return c.baseURL
}

// setPeer caches the per-graph peer URL.
func (c *Client) setPeer(peer string) {
	c.peerMu.Lock()
	defer c.peerMu.Unlock()
	c.peerURL = peer
}

// peerBase extracts scheme://host[:port] from a redirect location.
func peerBase(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("unparseable redirect location %q", location)
	}
	return u.Scheme + "://" + u.Host, nil
}

// maskToken hides the middle of a token for logging.
func maskToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	}
	return "***"
}

// toInt64 converts a JSON number (or int) to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
