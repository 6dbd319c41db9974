package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes propagated to API clients.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodePreconditionRequire = "PRECONDITION_REQUIRED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewValidationError reports bad input or an illegal state change.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError reports an authenticated caller acting outside their rights.
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewConflictError reports a uniqueness clash such as a duplicate signup.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// NewPreconditionRequiredError reports a business precondition the caller has not met yet,
// e.g. logging in before activating the account.
func NewPreconditionRequiredError(message string) *AppError {
	return &AppError{
		Code:    CodePreconditionRequire,
		Message: message,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewRateLimitedError reports a request rejected by a rate limiter.
func NewRateLimitedError() *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
	}
}

// NewUnavailableError reports a dependency that is temporarily unreachable.
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: message,
		Err:     err,
	}
}

// HideInternalDetails strips wrapped causes from internal errors before they reach clients.
var HideInternalDetails bool

// StatusFor maps an error to the HTTP status it should be reported with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeConflict:
		return fiber.StatusConflict
	case CodePreconditionRequire:
		return fiber.StatusPreconditionRequired
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	case CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{Status: "error"}

	var appErr *AppError
	if errors.As(err, &appErr) {
		response.Error = appErr.Message
		response.Code = appErr.Code
		if appErr.Err != nil && !(HideInternalDetails && appErr.Code == CodeInternal) {
			response.Details = appErr.Err.Error()
		}
	} else if status >= fiber.StatusInternalServerError {
		response.Error = "Internal server error"
		response.Code = CodeInternal
		if !HideInternalDetails {
			response.Details = err.Error()
		}
	} else {
		response.Error = err.Error()
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError writes err using the status derived from its code.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}

// Envelope is the success response shape returned by every JSON endpoint.
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// Respond writes a success envelope with the given status code.
func Respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}
