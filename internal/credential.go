package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Chandra179/magic-auth-service/pkg/magic"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is reported when Magic returns metadata without an issuer.
const DefaultIssuer = "https://api.magic.link"

const fallbackValidationError = "Token validation failed"

var (
	// Hosts match on this exact text.
	ErrNotInitialized    = errors.New("Magic SDK not initialized. Call initializeMagic first.") //nolint:stylecheck // ST1005: wording is the host-facing message
	ErrJWTNotImplemented = errors.New("JWT validation not yet implemented")
)

// DelegateFailure wraps any failure raised by the Magic client.
type DelegateFailure struct {
	Err error
}

func (e *DelegateFailure) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *DelegateFailure) Unwrap() error {
	return e.Err
}

// ClientFactory builds a Magic client for an API key.
type ClientFactory func(apiKey string) (magic.MetadataLookup, error)

type InitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ValidationResult struct {
	Success bool          `json:"success"`
	Data    *UserMetadata `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// UserMetadata is the caller-facing view of a Magic user. Optional fields are
// null when Magic did not return them.
type UserMetadata struct {
	Email              *string `json:"email"`
	PublicAddress      *string `json:"publicAddress"`
	Issuer             string  `json:"issuer"`
	Phone              *string `json:"phone"`
	IsTwoFactorEnabled bool    `json:"isTwoFactorEnabled"`
}

// CredentialFacade forwards credential checks to Magic and reshapes the
// outcome into success/error envelopes. Nothing escapes its methods as an
// error or panic.
type CredentialFacade struct {
	newClient ClientFactory
	logger    *slog.Logger

	mu     sync.RWMutex
	client magic.MetadataLookup
}

func NewCredentialFacade(newClient ClientFactory, logger *slog.Logger) *CredentialFacade {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialFacade{
		newClient: newClient,
		logger:    logger,
	}
}

// InitializeMagic builds the Magic client for apiKey. A later successful call
// replaces the current client; a failed call leaves it untouched.
func (f *CredentialFacade) InitializeMagic(apiKey string) InitResult {
	client, err := f.buildClient(apiKey)
	if err != nil {
		f.logger.Error("[Magic] Initialization failed", "error", err)
		return InitResult{Success: false, Error: err.Error()}
	}

	f.mu.Lock()
	f.client = client
	f.mu.Unlock()

	f.logger.Info("[Magic] Initialized successfully")
	return InitResult{Success: true, Message: "Magic SDK initialized"}
}

func (f *CredentialFacade) buildClient(apiKey string) (client magic.MetadataLookup, err error) {
	if f.newClient == nil {
		return nil, errors.New("magic client factory is not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			client, err = nil, fmt.Errorf("magic client construction panicked: %v", r)
		}
	}()

	client, err = f.newClient(apiKey)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("magic client factory returned no client")
	}
	return client, nil
}

// ValidateDIDToken resolves the user behind a Magic DID token.
func (f *CredentialFacade) ValidateDIDToken(ctx context.Context, didToken string) ValidationResult {
	md, err := f.lookup(ctx, didToken)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = fallbackValidationError
		}
		f.logger.ErrorContext(ctx, "[Magic] Token validation failed", "error", msg)
		return ValidationResult{Success: false, Error: msg}
	}
	return ValidationResult{Success: true, Data: toUserMetadata(md)}
}

func (f *CredentialFacade) lookup(ctx context.Context, didToken string) (md *magic.UserMetadata, err error) {
	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()

	if client == nil {
		return nil, ErrNotInitialized
	}

	defer func() {
		if r := recover(); r != nil {
			md, err = nil, &DelegateFailure{Err: fmt.Errorf("%v", r)}
		}
	}()

	md, err = client.GetMetadataByToken(ctx, didToken)
	if err != nil {
		return nil, &DelegateFailure{Err: err}
	}
	if md == nil {
		return nil, &DelegateFailure{}
	}
	return md, nil
}

// ValidateJWTToken is reserved for tokens issued by external OIDC providers.
// It always reports that the feature is unavailable.
func (f *CredentialFacade) ValidateJWTToken(ctx context.Context, jwtToken, issuer string) ValidationResult {
	f.logger.InfoContext(ctx, "[Magic] JWT validation requested for issuer", "issuer", issuer)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(jwtToken, claims); err != nil {
		f.logger.DebugContext(ctx, "[Magic] JWT could not be decoded", "error", err)
	} else {
		tokenIssuer, _ := claims.GetIssuer()
		f.logger.DebugContext(ctx, "[Magic] JWT decoded without verification",
			"token_issuer", tokenIssuer, "issuer_match", tokenIssuer == issuer)
	}

	return ValidationResult{Success: false, Error: ErrJWTNotImplemented.Error()}
}

func toUserMetadata(md *magic.UserMetadata) *UserMetadata {
	issuer := md.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &UserMetadata{
		Email:              optional(md.Email),
		PublicAddress:      optional(md.PublicAddress),
		Issuer:             issuer,
		Phone:              optional(md.Phone),
		IsTwoFactorEnabled: md.IsTwoFactorEnabled,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
