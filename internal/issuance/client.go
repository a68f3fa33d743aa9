// Package issuance is the HTTP adapter for the external invoice issuance
// service. It sends one document per call and never retries: a failed
// attempt is reported to the caller, who decides whether to send it again
// with a new idempotency key.
package issuance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/logging"
)

// Error codes assigned locally when the service gives none.
const (
	CodeNetwork          = "NETWORK"
	CodeResponseTooLarge = "RESPONSE_TOO_LARGE"
)

// DefaultMaxResponseBytes bounds how much of a response body is read.
const DefaultMaxResponseBytes int64 = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string

	// Timeout of zero leaves the transport default in place.
	Timeout time.Duration

	MaxResponseBytes int64
}

// Client implements core.Issuer over HTTP.
type Client struct {
	endpoint string
	token    string
	maxBody  int64
	http     *http.Client
}

// NewClient validates cfg and returns a Client. A nil httpClient gets a
// dedicated client with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("issuance base url %q is not an absolute URL", cfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("issuance base url %q must use http or https", cfg.BaseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	return &Client{
		endpoint: base + "/comprobantes",
		token:    cfg.Token,
		maxBody:  cfg.MaxResponseBytes,
		http:     httpClient,
	}, nil
}

// Issue posts one payload. Transport failures come back as a
// *core.IssueError with code NETWORK; non-2xx answers carry the service's
// own code and message.
func (c *Client) Issue(ctx context.Context, req core.IssueRequest) (*core.IssueResult, error) {
	body, err := json.Marshal(toWire(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &core.IssueError{Code: CodeNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &core.IssueError{Code: CodeNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(raw)) > c.maxBody {
		return nil, &core.IssueError{
			Code:       CodeResponseTooLarge,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", c.maxBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeFailure(resp.StatusCode, raw)
	}
	return decodeSuccess(ctx, raw), nil
}

// decodeSuccess never fails: the service accepted the document, so an
// unreadable body is kept raw rather than reported as a rejection.
func decodeSuccess(ctx context.Context, raw []byte) *core.IssueResult {
	result := &core.IssueResult{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return result
	}
	var ok wireResult
	if err := json.Unmarshal(raw, &ok); err != nil {
		logging.FromContext(ctx).Warn("unreadable issuance response", "error", err, "bytes", len(raw))
		if quoted, err := json.Marshal(string(raw)); err == nil {
			result.Raw = quoted
		}
		return result
	}
	result.AuthCode = ok.AuthCode
	result.AuthCodeExpiry = ok.AuthCodeExpiry
	result.DocumentNumber = ok.DocumentNumber.String()
	result.Raw = json.RawMessage(raw)
	return result
}

func decodeFailure(status int, raw []byte) error {
	ie := &core.IssueError{StatusCode: status}

	var body wireError
	if err := json.Unmarshal(raw, &body); err == nil {
		ie.Code = body.Code
		ie.Message = body.Message
		if ie.Message == "" {
			ie.Message = body.Error
		}
	}
	if ie.Code == "" {
		ie.Code = fmt.Sprintf("HTTP_%d", status)
	}
	if ie.Message == "" {
		ie.Err = errors.New(http.StatusText(status))
		slog.Debug("issuance rejection without message", "status", status)
	}
	return ie
}

// Endpoint returns the URL documents are posted to.
func (c *Client) Endpoint() string { return c.endpoint }
