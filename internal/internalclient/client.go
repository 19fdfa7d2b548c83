package internalclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a small wrapper over *http.Client configured with the two
// timeouts and the retry count the sharder's config recognizes:
// conn_timeout governs the TCP handshake, node_timeout bounds the whole
// round trip, and tries caps the total number of attempts made while
// transport failures repeat before giving up.
type Client struct {
	baseURL string
	http    *http.Client
	tries   int
}

// New returns a Client pointed at baseURL (a proxy-equivalent endpoint,
// e.g. "http://127.0.0.1:6001"). tries must be >= 1; callers that pass 0
// get a single attempt.
func New(baseURL string, connTimeout, nodeTimeout time.Duration, tries int) *Client {
	if tries < 1 {
		tries = 1
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connTimeout}).DialContext,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: nodeTimeout, Transport: transport},
		tries:   tries,
	}
}

// FetchTrieFragment performs a
// ?format=trie&trie_nodes=distributed GET with the X-Skip-Sharding
// header, returning the raw response body for the caller to hand to
// trie.Deserialize.
func (c *Client) FetchTrieFragment(ctx context.Context, account, container string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/%s/%s?format=trie&trie_nodes=distributed",
		c.baseURL, url.PathEscape(account), url.PathEscape(container))

	var lastErr error
	for attempt := 0; attempt < c.tries; attempt++ {
		body, err := c.do(ctx, http.MethodGet, u, map[string]string{"X-Skip-Sharding": "On"})
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isTransport(err) {
			break
		}
	}
	return nil, lastErr
}

// CreateContainer performs a PUT request to create the container,
// stamping the storage policy header so the new shard container is
// placed under the same policy as its parent.
func (c *Client) CreateContainer(ctx context.Context, account, container, storagePolicy string) error {
	u := fmt.Sprintf("%s/v1/%s/%s", c.baseURL, url.PathEscape(account), url.PathEscape(container))

	var lastErr error
	for attempt := 0; attempt < c.tries; attempt++ {
		_, err := c.do(ctx, http.MethodPut, u, map[string]string{"X-Storage-Policy": storagePolicy})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransport(err) {
			break
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, u string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("internalclient: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, u, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrUnexpectedResponse, method, u, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %v", ErrTransport, method, u, readErr)
	}
	return body, nil
}

func isTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
