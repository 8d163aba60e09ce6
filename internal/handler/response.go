package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

// Response is the JSON envelope of successful API calls.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Body    any    `json:"body,omitempty"`
}

// ErrorResponse is the JSON envelope of failed API calls.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is an error with the status and body written to the client.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Response messages.
const (
	msgRegistered = "Registration has been completed. The following access token will be used for accessing the API. Should this token become compromised or lost, you can reset or recover this token at the following endpoints."
	msgRecovered  = "Your token has been successfully recovered, please try not to lose it next time."
	msgReset      = "Your token has been successfully regenerated. Please use the new token provided for all future requests."
	msgUploaded   = "The file has been successfully uploaded. You can find and view it at the following link."
	msgDeleted    = "The file has been successfully deleted. Below is the previous link it was available from."
	msgNotFound   = "The requested content was not found on the server."
)

// API errors not produced by the auth guard.
var (
	errInvalidEmail = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "IdentityRejected: Please provide a valid email address for registration.",
	}
	errPasswordRequired = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "IdentityRejected: You must specify a password for registration using 'password' as the key.",
	}
	errEmailTaken = &APIError{
		Status:  http.StatusConflict,
		Code:    "Conflict",
		Message: "IdentityRejected: The requested email may already exist, require verification, or be permanently disabled.",
	}
	errInvalidNamespace = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "IdentityRejected: The requested namespace must be 1 to 64 letters, digits, '_' or '-', starting with a letter or digit.",
	}
	errNamespaceTaken = &APIError{
		Status:  http.StatusConflict,
		Code:    "Conflict",
		Message: "IdentityRejected: The requested namespace may already exist, require verification, or be permanently disabled.",
	}
	errInvalidContentID = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "ContentRejected: The requested name cannot be used as a content identifier.",
	}
	errUploadMissing = &APIError{
		Status:  http.StatusUnsupportedMediaType,
		Code:    "UnsupportedMediaType",
		Message: "You must specify the uploaded file using upload as the parameter or multi-part body request key.",
	}
	errNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "NotFound",
		Message: msgNotFound,
	}
	errMethodNotAllowed = &APIError{
		Status:  http.StatusMethodNotAllowed,
		Code:    "MethodNotAllowed",
		Message: "The requested method is not allowed on this resource.",
	}
	errTooLarge = &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "PayloadTooLarge",
		Message: "The request body exceeds the maximum allowed size.",
	}
	errBadRequestBody = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BadRequest",
		Message: "The request body could not be parsed.",
	}
	errTooManyRequests = &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    "TooManyRequests",
		Message: "You have exceeded the request rate for this resource. Please slow down.",
	}
	errExhausted = &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "ServiceUnavailable",
		Message: "No free identifier could be generated. Please try again later.",
	}
	errInternal = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "InternalServer",
		Message: "An internal error occurred while processing the request.",
	}
)

// toAPIError maps service, domain and auth errors to API errors.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if authErr, ok := auth.AsError(err); ok {
		return &APIError{Status: authErr.Status, Code: authErr.Code, Message: authErr.Message}
	}

	var conflict *service.NameConflictError
	if errors.As(err, &conflict) {
		return &APIError{Status: http.StatusConflict, Code: "Conflict", Message: conflict.Error()}
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return errTooLarge
	}

	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		return errInvalidEmail
	case errors.Is(err, service.ErrPasswordRequired):
		return errPasswordRequired
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return errEmailTaken
	case errors.Is(err, domain.ErrInvalidNamespace):
		return errInvalidNamespace
	case errors.Is(err, domain.ErrNamespaceAlreadyExists):
		return errNamespaceTaken
	case errors.Is(err, domain.ErrInvalidContentID):
		return errInvalidContentID
	case errors.Is(err, service.ErrUploadMissing):
		return errUploadMissing
	case errors.Is(err, domain.ErrContentNotFound):
		return errNotFound
	case errors.Is(err, service.ErrIdentifierExhausted):
		return errExhausted
	default:
		return errInternal
	}
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as an ErrorResponse. Unexpected errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, apiErr.Status, ErrorResponse{Code: apiErr.Code, Message: apiErr.Message})
}
