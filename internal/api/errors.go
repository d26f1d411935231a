package api

import (
	"errors"
	"net/http"
)

// Error kinds surfaced to clients in the error_type field.
const (
	KindAuth           = "auth_error"
	KindFile           = "file_error"
	KindTierLimit      = "tier_limit_error"
	KindProviderConfig = "provider_config_error"
	KindProvider       = "provider_error"
	KindInternal       = "internal_error"
)

type AppError struct {
	Code    int    `json:"-"`
	Kind    string `json:"error_type,omitempty"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Kind: KindAuth, Message: "unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: "internal server error"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Kind: KindAuth, Message: "invalid email or password"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusConflict, Message: "email already registered"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Kind: KindAuth, Message: "invalid or expired token"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

// NewFileError covers unreadable, empty, unsupported, and oversized uploads.
func NewFileError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindFile, Message: msg}
}

// NewTierLimitError covers both the monthly usage cap and pro-only features.
func NewTierLimitError(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Kind: KindTierLimit, Message: msg}
}

func NewProviderConfigError(msg string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindProviderConfig, Message: msg}
}

func NewProviderError(msg string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindProvider, Message: msg}
}

func NewInternalError(msg, details string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Details: details}
}

// HandleError writes err as a JSON error response. AppErrors keep their
// status code and kind; anything else becomes an opaque 500.
func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONAppError(w, appErr)
		return
	}
	JSONAppError(w, ErrInternalServer)
}
