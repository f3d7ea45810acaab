// Package ipfscat wraps a gateway-backed IPFS cat call with a concurrency
// gate, per-request timeout, in-flight request coalescing and a small
// content cache.
package ipfscat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// CatErrorKind classifies why a cat call failed.
type CatErrorKind string

const (
	GatewayTimeout CatErrorKind = "gateway_timeout"
	ClientTimeout  CatErrorKind = "client_timeout"
	NotFound       CatErrorKind = "not_found"
	Other          CatErrorKind = "other"
)

// CatError is returned by Client.Cat on failure.
type CatError struct {
	Kind  CatErrorKind
	Cid   string
	Cause error
}

func (e *CatError) Error() string {
	return fmt.Sprintf("ipfs cat %s: %s: %v", e.Cid, e.Kind, e.Cause)
}

func (e *CatError) Unwrap() error { return e.Cause }

// Client fetches raw IPFS content over a gateway, bounding concurrency and
// coalescing duplicate in-flight requests for the same CID.
type Client struct {
	endpoint string
	http     *http.Client
	sem      *semaphore.Weighted
	timeout  time.Duration
	group    singleflight.Group

	mu    sync.Mutex
	cache map[string][]byte
}

// New builds a Client against the given gateway endpoint, allowing at most
// concurrency in-flight requests and bounding each request to timeout.
func New(endpoint string, concurrency int64, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		sem:      semaphore.NewWeighted(concurrency),
		timeout:  timeout,
		cache:    make(map[string][]byte),
	}
}

// Cat fetches the content addressed by cid, serving from cache when
// available.
func (c *Client) Cat(ctx context.Context, cid string) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.cache[cid]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(cid, func() (any, error) {
		return c.fetch(ctx, cid)
	})
	if err != nil {
		return nil, err
	}
	data := v.([]byte)

	c.mu.Lock()
	c.cache[cid] = data
	c.mu.Unlock()
	return data, nil
}

func (c *Client) fetch(ctx context.Context, cid string) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &CatError{Kind: ClientTimeout, Cid: cid, Cause: err}
	}
	defer c.sem.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v0/cat?arg=%s", c.endpoint, cid)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, nil)
	if err != nil {
		return nil, &CatError{Kind: Other, Cid: cid, Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, &CatError{Kind: ClientTimeout, Cid: cid, Cause: err}
		}
		return nil, &CatError{Kind: Other, Cid: cid, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &CatError{Kind: NotFound, Cid: cid, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, &CatError{Kind: GatewayTimeout, Cid: cid, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &CatError{Kind: Other, Cid: cid, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CatError{Kind: Other, Cid: cid, Cause: err}
	}
	return data, nil
}

// InvalidateCache drops all cached content, forcing the next Cat call for
// any CID to hit the gateway again.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]byte)
}
