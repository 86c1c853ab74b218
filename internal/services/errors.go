package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredentials reports a login the remote site rejected. The operator can fix it.
	ErrCredentials = errors.New("invalid login or password")

	// ErrProtocol reports markup or redirects that no longer match the login flow.
	ErrProtocol = errors.New("unexpected response from VK")

	ErrMalformedPage     = errors.New("malformed page")
	ErrUnsupportedMethod = errors.New("unsupported form method")
	ErrTokenExtraction   = errors.New("access token missing from redirect")

	// ErrTransport reports network failures and undecodable responses.
	ErrTransport = errors.New("transport failure")
)

// RequestParam is one entry of the request_params list echoed back in an API error.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIError is an error envelope returned by the VK method endpoint.
type APIError struct {
	Code          int            `json:"error_code"`
	Message       string         `json:"error_msg"`
	RequestParams []RequestParam `json:"request_params"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Is matches another *APIError with the same code, so callers can compare against [ErrAuthorization] and friends.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// Param returns the echoed value of the named request parameter.
func (e *APIError) Param(key string) (string, bool) {
	for _, p := range e.RequestParams {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Detail renders the error with the echoed request as "key=value" pairs.
func (e *APIError) Detail() string {
	parts := make([]string, 0, len(e.RequestParams))
	for _, p := range e.RequestParams {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return e.Error() + " [" + strings.Join(parts, " ") + "]"
}

// Well known API error codes.
var (
	ErrUnknown          = &APIError{Code: 1}
	ErrTooManyRequests  = &APIError{Code: 6}
	ErrAuthorization    = &APIError{Code: 5}
	ErrPermissionDenied = &APIError{Code: 15}
	ErrAccessDenied     = &APIError{Code: 201}
)
