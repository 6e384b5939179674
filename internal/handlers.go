package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Chandra179/magic-auth-service/pkg/serializer"
	"github.com/google/uuid"
)

const (
	maxRequestBody  = 1 << 20
	protectedPrefix = "/api/"
	requestIDHeader = "X-Request-Id"
)

type contextKey int

const userContextKey contextKey = iota

// CredentialValidator is the part of CredentialFacade used over HTTP.
type CredentialValidator interface {
	ValidateDIDToken(ctx context.Context, didToken string) ValidationResult
	ValidateJWTToken(ctx context.Context, jwtToken, issuer string) ValidationResult
}

type MagicHandlers struct {
	validator CredentialValidator
	ser       serializer.JSONSerializer
	logger    *slog.Logger
}

type didTokenRequest struct {
	DIDToken string `json:"didToken"`
}

type jwtTokenRequest struct {
	JWTToken string `json:"jwtToken"`
	Issuer   string `json:"issuer"`
}

func NewMagicHandlers(validator CredentialValidator, ser serializer.JSONSerializer, logger *slog.Logger) *MagicHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MagicHandlers{
		validator: validator,
		ser:       ser,
		logger:    logger,
	}
}

// UserFromContext returns the Magic user attached by BearerAuth.
func UserFromContext(ctx context.Context) (*UserMetadata, bool) {
	user, ok := ctx.Value(userContextKey).(*UserMetadata)
	return user, ok && user != nil
}

func (h *MagicHandlers) ValidateDIDToken(w http.ResponseWriter, r *http.Request) {
	var req didTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.validator.ValidateDIDToken(r.Context(), req.DIDToken)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnauthorized
	}
	h.writeJSON(w, status, result)
}

func (h *MagicHandlers) ValidateJWTToken(w http.ResponseWriter, r *http.Request) {
	var req jwtTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.validator.ValidateJWTToken(r.Context(), req.JWTToken, req.Issuer)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusNotImplemented
	}
	h.writeJSON(w, status, result)
}

// CurrentUser returns the metadata of the authenticated caller.
func (h *MagicHandlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, ValidationResult{Success: false, Error: "Not authenticated"})
		return
	}
	h.writeJSON(w, http.StatusOK, ValidationResult{Success: true, Data: user})
}

// BearerAuth validates the Magic DID token on every request under /api/ and
// stores the resulting user in the request context.
func (h *MagicHandlers) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		logger := h.logger.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)

		if !strings.HasPrefix(r.URL.Path, protectedPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			logger.Warn("Missing or invalid Authorization header")
			h.writeJSON(w, http.StatusUnauthorized, ValidationResult{Success: false, Error: "Missing or invalid Authorization header"})
			return
		}

		result := h.validator.ValidateDIDToken(r.Context(), token)
		if !result.Success {
			logger.Warn("Magic token validation failed", "error", result.Error)
			h.writeJSON(w, http.StatusUnauthorized, ValidationResult{Success: false, Error: result.Error})
			return
		}

		logger.Info("Magic token validated", "issuer", result.Data.Issuer)
		ctx := context.WithValue(r.Context(), userContextKey, result.Data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len("Bearer "):])
	return token, token != ""
}

func (h *MagicHandlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ValidationResult{Success: false, Error: "Failed to read request body"})
		return false
	}
	if err := h.ser.Decode(body, v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ValidationResult{Success: false, Error: "Invalid request body"})
		return false
	}
	return true
}

func (h *MagicHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := h.ser.Encode(v)
	if err != nil {
		h.logger.Error("Failed to serialize response", "error", err)
		http.Error(w, "Failed to serialize response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
