/*
Package magic provides a small client for the Magic Admin API. It decodes the DID
tokens produced by the Magic browser SDK and resolves the user metadata that
belongs to the token's issuer.

This package includes the following components:

- MetadataLookup interface: The single capability callers depend on, easy to mock in unit tests.
- Client struct: Implements MetadataLookup against the Magic Admin REST API.
*/

// Package magic provides a client for the Magic Admin API.
package magic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Chandra179/magic-auth-service/pkg/serializer"
)

const (
	// DefaultBaseURL is the public Magic Admin API endpoint.
	DefaultBaseURL = "https://api.magic.link"

	userInfoPath    = "/v1/admin/auth/user/get"
	secretKeyHeader = "X-Magic-Secret-Key"
	maxResponseSize = 1 << 20
)

// MetadataLookup resolves the user behind a DID token.
// This interface can be implemented or mocked for testing purposes.
type MetadataLookup interface {
	// GetMetadataByToken validates the DID token and returns the user's metadata.
	GetMetadataByToken(ctx context.Context, didToken string) (*UserMetadata, error)
}

// UserMetadata is the user record returned by the Admin API.
// Fields the API omits are left at their zero value.
type UserMetadata struct {
	Issuer             string `json:"issuer"`
	Email              string `json:"email"`
	PublicAddress      string `json:"public_address"`
	Phone              string `json:"phone_number"`
	IsTwoFactorEnabled bool   `json:"is_mfa_enabled"`
}

// APIError is returned when the Admin API rejects a request.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("magic api request failed: %s", e.Code)
	}
	return fmt.Sprintf("magic api request failed with status %d", e.StatusCode)
}

type apiResponse struct {
	Data      UserMetadata `json:"data"`
	ErrorCode string       `json:"error_code"`
	Message   string       `json:"message"`
	Status    string       `json:"status"`
}

// Client talks to the Magic Admin API with a secret key.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	serializer serializer.JSONSerializer
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Admin API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for Admin API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithSerializer replaces the JSON serializer.
func WithSerializer(ser serializer.JSONSerializer) Option {
	return func(c *Client) {
		if ser != nil {
			c.serializer = ser
		}
	}
}

// WithClock sets the time source used for token lifetime checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a Client for the given secret key.
// It returns an error if the key is empty.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("secret key is required")
	}

	c := &Client{
		secretKey:  secretKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		serializer: serializer.NewJSONSerialization(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetMetadataByToken decodes the DID token, checks its claims and proof, then
// fetches the metadata of its issuer.
func (c *Client) GetMetadataByToken(ctx context.Context, didToken string) (*UserMetadata, error) {
	token, err := c.ParseDIDToken(didToken)
	if err != nil {
		return nil, err
	}
	if err := token.Validate(c.now()); err != nil {
		return nil, err
	}
	if err := token.VerifyProof(); err != nil {
		return nil, err
	}
	return c.GetMetadataByIssuer(ctx, token.Claim.Issuer)
}

// GetMetadataByIssuer fetches the metadata of the user identified by issuer.
func (c *Client) GetMetadataByIssuer(ctx context.Context, issuer string) (*UserMetadata, error) {
	endpoint := c.baseURL + userInfoPath + "?" + url.Values{"issuer": {issuer}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build magic request: %w", err)
	}
	req.Header.Set(secretKeyHeader, c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("magic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read magic response: %w", err)
	}

	var out apiResponse
	if err := c.serializer.Decode(body, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to decode magic response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !strings.EqualFold(out.Status, "ok") {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: out.ErrorCode, Message: out.Message}
	}

	return &out.Data, nil
}
