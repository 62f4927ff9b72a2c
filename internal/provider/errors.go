package provider

import (
	"errors"
	"fmt"
	"strings"

	"quotelog/internal/httpx"
)

// ErrorCode classifies every failure that aborts a run.
type ErrorCode string

const (
	CodeInputValidation   ErrorCode = "INPUT_VALIDATION"
	CodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	CodeTransport         ErrorCode = "TRANSPORT"
	CodePayloadShape      ErrorCode = "PAYLOAD_SHAPE"
	CodeProviderReported  ErrorCode = "PROVIDER_REPORTED"
	CodeMissingQuote      ErrorCode = "MISSING_QUOTE"
)

func (c ErrorCode) String() string { return string(c) }

// Sentinels for errors.Is; they match any *Error with the same code.
var (
	ErrInputValidation   = &Error{Code: CodeInputValidation}
	ErrMissingCredential = &Error{Code: CodeMissingCredential}
	ErrTransport         = &Error{Code: CodeTransport}
	ErrPayloadShape      = &Error{Code: CodePayloadShape}
	ErrProviderReported  = &Error{Code: CodeProviderReported}
	ErrMissingQuote      = &Error{Code: CodeMissingQuote}
)

// Error carries the diagnostic context of a failure.
type Error struct {
	Code     ErrorCode
	Provider string
	Symbol   string
	// Status and Body are set for transport failures with an HTTP response.
	Status int
	Body   string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " ")))
	if e.Provider != "" {
		fmt.Fprintf(&b, " from %s", e.Provider)
	}
	if e.Symbol != "" {
		fmt.Fprintf(&b, " for %s", e.Symbol)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Provider == "" && t.Symbol == "" && t.Err == nil
}

// Reported is a failure the provider signalled in an otherwise valid payload,
// e.g. an error object or a rate-limit notice.
func Reported(name, symbol, msg string) error {
	return &Error{Code: CodeProviderReported, Provider: name, Symbol: symbol, Msg: msg}
}

// Shape is an unexpected payload structure.
func Shape(name, symbol string, err error) error {
	return &Error{Code: CodePayloadShape, Provider: name, Symbol: symbol, Err: err}
}

// Missing is a symbol absent from a response, or present without a usable value.
func Missing(name, symbol string, err error) error {
	return &Error{Code: CodeMissingQuote, Provider: name, Symbol: symbol, Err: err}
}

// Invalid is a malformed input token.
func Invalid(symbol, msg string) error {
	return &Error{Code: CodeInputValidation, Symbol: symbol, Msg: msg}
}

// FromHTTP classifies an error from httpx.Endpoint.GetJSON.
func FromHTTP(name, symbol string, err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return &Error{Code: CodeTransport, Provider: name, Symbol: symbol, Status: se.StatusCode, Body: se.Body, Err: err}
	}
	if errors.Is(err, httpx.ErrDecode) {
		return &Error{Code: CodePayloadShape, Provider: name, Symbol: symbol, Err: err}
	}
	return &Error{Code: CodeTransport, Provider: name, Symbol: symbol, Err: err}
}
