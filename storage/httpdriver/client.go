// Package httpdriver is a storage.Driver backed by a REST wire contract:
// HEAD=exists, GET=read, PUT (If-None-Match for allowOverwrite=false)=write,
// DELETE=delete, and a query-parameterized GET for list-by-prefix.
//
// Structured like a dial-once RPC client: a shared client, a per-call
// context with an optional timeout, and a single status-to-error mapping
// function — over plain HTTP rather than gRPC (see DESIGN.md).
package httpdriver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xdao.co/depot/digest"
	"xdao.co/depot/storage"
)

// CredentialSource supplies a fresh "nebula-credentials" header value for
// each request. Credential derivation is the external notary's concern;
// this driver only attaches whatever the source hands it.
type CredentialSource interface {
	Credentials(ctx context.Context) (string, error)
}

// StaticCredentials is a CredentialSource that always returns the same
// pre-encoded blob — useful for tests and for notaries that front-load
// credential derivation.
type StaticCredentials string

func (s StaticCredentials) Credentials(context.Context) (string, error) { return string(s), nil }

// Client implements storage.Driver over the repository's HTTP wire contract.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialSource
	UserAgent   string

	// Timeout applies per request when non-zero, layered atop the caller's
	// context deadline.
	Timeout time.Duration
}

var _ storage.Driver = (*Client)(nil)

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, c.Timeout)
}

func (c *Client) objectURL(namespace storage.Namespace, key string) string {
	return fmt.Sprintf("%s/repository/%s/%s", strings.TrimRight(c.BaseURL, "/"), namespace, key)
}

func (c *Client) newRequest(ctx context.Context, method string, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("user-agent", c.UserAgent)
	}
	req.Header.Set("accept", "application/bali")
	if c.Credentials != nil {
		cred, err := c.Credentials.Credentials(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("nebula-credentials", cred)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Exists(ctx context.Context, namespace storage.Namespace, key string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, c.objectURL(namespace, key), nil)
	if err != nil {
		return false, storage.NewIOError("exists", namespace, key, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, storage.NewServerDownError("exists", namespace, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, mapStatus("exists", namespace, key, resp)
	}
}

func (c *Client) Read(ctx context.Context, namespace storage.Namespace, key string) ([]byte, bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.objectURL(namespace, key), nil)
	if err != nil {
		return nil, false, storage.NewIOError("read", namespace, key, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, false, storage.NewServerDownError("read", namespace, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, storage.NewIOError("read", namespace, key, err)
		}
		return body, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, mapStatus("read", namespace, key, resp)
	}
}

func (c *Client) Write(ctx context.Context, namespace storage.Namespace, key string, data []byte, allowOverwrite bool) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPut, c.objectURL(namespace, key), strings.NewReader(string(data)))
	if err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	req.Header.Set("content-type", "application/bali")
	req.Header.Set("content-length", strconv.Itoa(len(data)))
	if !allowOverwrite {
		// If-None-Match: * requests the server reject the write when any
		// representation already exists at key, matching the immutable
		// classes' allowOverwrite=false contract.
		req.Header.Set("If-None-Match", "*")
	}
	if d, err := digest.Of(data); err == nil {
		req.Header.Set("nebula-digest", d.Hex())
	}

	resp, err := c.do(req)
	if err != nil {
		return storage.NewServerDownError("write", namespace, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return storage.NewConflictError("write", namespace, key)
	default:
		return mapStatus("write", namespace, key, resp)
	}
}

func (c *Client) Delete(ctx context.Context, namespace storage.Namespace, key string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, c.objectURL(namespace, key), nil)
	if err != nil {
		return false, storage.NewIOError("delete", namespace, key, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, storage.NewServerDownError("delete", namespace, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, mapStatus("delete", namespace, key, resp)
	}
}

func (c *Client) List(ctx context.Context, namespace storage.Namespace, prefix string, maxKeys int) ([]string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	u := fmt.Sprintf("%s/repository/%s", strings.TrimRight(c.BaseURL, "/"), namespace)
	q := url.Values{}
	q.Set("prefix", prefix)
	if maxKeys > 0 {
		q.Set("max", strconv.Itoa(maxKeys))
	}

	req, err := c.newRequest(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, storage.NewIOError("list", namespace, prefix, err)
	}
	req.Header.Set("accept", "text/plain")
	resp, err := c.do(req)
	if err != nil {
		return nil, storage.NewServerDownError("list", namespace, prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus("list", namespace, prefix, resp)
	}

	var out []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, storage.NewIOError("list", namespace, prefix, err)
	}
	return out, nil
}

func mapStatus(op string, namespace storage.Namespace, key string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusForbidden:
		return storage.NewInvalidCredentialsError(op, namespace, key)
	case http.StatusBadRequest:
		return storage.NewIOError(op, namespace, key, fmt.Errorf("malformed request (400)"))
	case http.StatusNotFound:
		return nil
	default:
		return storage.NewIOError(op, namespace, key, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
