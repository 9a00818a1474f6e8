// ABOUTME: Authenticated request client for the game client's local control plane
// ABOUTME: Issues GET/PUT/POST calls and returns untyped JSON or a typed RequestError

package lcu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/2389/lcu-gateway/internal/credential"
)

const (
	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 16 << 20
)

// Null is the JSON null literal. It is returned for empty 2xx bodies and by
// Help when the listing is absent.
var Null = json.RawMessage("null")

// ErrUnsupportedMethod is returned for methods other than GET, PUT and POST.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Options configures the HTTP transport used by the client.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify trusts the control plane's self-signed certificate.
	InsecureSkipVerify bool
	// HTTPClient overrides the client built from the other options.
	HTTPClient *http.Client
}

// Client makes calls against the control plane. It holds no mutable state and
// is safe for concurrent use.
type Client struct {
	cred   credential.Credential
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the given credential. Pass nil logger for default.
func NewClient(cred credential.Credential, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // loopback endpoint with a self-signed certificate
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}
	return &Client{
		cred:   cred,
		http:   httpClient,
		logger: logger.With("component", "lcu"),
	}
}

// Credential returns the credential the client was built with.
func (c *Client) Credential() credential.Credential {
	return c.cred
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPut, path, body)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodPost, path, body)
}

// Help fetches the control plane's endpoint listing. The listing may not exist
// yet while the client is starting, so every failure collapses to Null.
func (c *Client) Help(ctx context.Context) json.RawMessage {
	data, err := c.Get(ctx, "/help")
	if err != nil {
		c.logger.Debug("help listing unavailable", "error", err)
		return Null
	}
	return data
}

// Request performs one call and returns the response body as raw JSON.
// body is marshalled when non-nil. There are no retries.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodPost:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if body != nil {
		data, err := marshalBody(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cred.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", c.cred.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: KindUnreachable, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RequestError{Kind: KindUnreachable, Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("request rejected", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &RequestError{Kind: KindRejected, Method: method, Path: path, Status: resp.StatusCode, Err: rejectionDetail(data)}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Null, nil
	}
	if !json.Valid(data) {
		return nil, &RequestError{Kind: KindMalformed, Method: method, Path: path, Err: fmt.Errorf("%d bytes of invalid JSON", len(data))}
	}
	return json.RawMessage(data), nil
}

// marshalBody passes pre-encoded JSON through untouched.
func marshalBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		if !json.Valid(b) {
			return nil, errors.New("raw body is not valid JSON")
		}
		return b, nil
	case []byte:
		if !json.Valid(b) {
			return nil, errors.New("raw body is not valid JSON")
		}
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// rejectionDetail extracts the control plane's error message, if it sent one.
func rejectionDetail(body []byte) error {
	if !gjson.ValidBytes(body) {
		return nil
	}
	fields := gjson.GetManyBytes(body, "message", "errorCode")
	msg, code := fields[0].String(), fields[1].String()
	if msg == "" {
		return nil
	}
	if code != "" {
		return fmt.Errorf("%s: %s", code, msg)
	}
	return errors.New(msg)
}
