// Package errors defines the typed error carried from services to the HTTP
// layer. A Code fixes the status, retry hint and how much of the error is
// shown to callers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Order pricing rejections. The order is never created when one of these is returned.
	CodeEmptyOrder          Code = "EMPTY_ORDER"
	CodeInvalidPrice        Code = "INVALID_PRICE"
	CodeItemUnavailable     Code = "ITEM_UNAVAILABLE"
	CodeNonPositiveTotal    Code = "NON_POSITIVE_TOTAL"
	CodeCatalogItemNotFound Code = "CATALOG_ITEM_NOT_FOUND"

	CodePaymentProvider Code = "PAYMENT_PROVIDER_ERROR"
	CodeSignature       Code = "SIGNATURE_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets structured details reach the response body.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

func caller(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, ExposeMessage: true}
}

func server(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, DetailsAllowed: details, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    caller(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:  caller(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:     caller(http.StatusForbidden, "access denied", false),
	CodeNotFound:      caller(http.StatusNotFound, "resource not found", false),
	CodeConflict:      caller(http.StatusConflict, "conflict detected", false),
	CodeStateConflict: caller(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:   caller(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "too many requests", ExposeMessage: true},
	CodeInternal:      server(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:    server(http.StatusServiceUnavailable, "dependency unavailable", true),

	CodeEmptyOrder:          {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "order has no purchasable lines", DetailsAllowed: true},
	CodeInvalidPrice:        {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "catalog item has an invalid price", DetailsAllowed: true},
	CodeItemUnavailable:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "catalog item is not available", DetailsAllowed: true},
	CodeNonPositiveTotal:    {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "order total must be positive", DetailsAllowed: true},
	CodeCatalogItemNotFound: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "catalog item not found", DetailsAllowed: true},

	CodePaymentProvider: server(http.StatusBadGateway, "payment provider unavailable", false),
	CodeSignature:       {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid signature"},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Classify returns the first typed error in err's chain, wrapping untyped
// errors as CodeInternal.
func Classify(err error) *Error {
	if typed := As(err); typed != nil {
		return typed
	}
	if err == nil {
		err = stderrors.New("unknown error")
	}
	return Wrap(CodeInternal, err, "unexpected error")
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Metadata() Metadata {
	return MetadataFor(e.Code())
}

// PublicMessage is what callers see for this error.
func (e *Error) PublicMessage() string {
	meta := e.Metadata()
	if meta.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// PublicDetails returns details only for codes that allow them.
func (e *Error) PublicDetails() any {
	if !e.Metadata().DetailsAllowed {
		return nil
	}
	return e.Details()
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error with the same code, so New(code, "") works as a
// sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the first typed error in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the first typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
