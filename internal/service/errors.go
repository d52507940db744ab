package service

import (
	"errors"
	"net/url"
)

// ErrorKind classifies a failed dataset fetch.
type ErrorKind string

const (
	// KindTransport means the backend could not be reached or the body could not be read.
	KindTransport ErrorKind = "transport"
	// KindUpstreamStatus means the backend answered with a non-2xx status.
	KindUpstreamStatus ErrorKind = "upstream_status"
	// KindDecode means the backend answered 2xx with a body that is not JSON.
	KindDecode ErrorKind = "decode"
)

// defaultStatusMessage is used when a failed backend response has an empty body.
const defaultStatusMessage = "Failed to load dataset"

// FetchError is the result of a failed dataset fetch. Message is what the
// caller should see.
type FetchError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // backend status, only for KindUpstreamStatus
	Err        error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func transportError(err error) *FetchError {
	msg := err.Error()
	// Drop the `Get "<url>":` prefix so the message names the cause.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &FetchError{Kind: KindTransport, Message: msg, Err: err}
}

func statusError(code int, body []byte) *FetchError {
	msg := string(body)
	if msg == "" {
		msg = defaultStatusMessage
	}
	return &FetchError{Kind: KindUpstreamStatus, Message: msg, StatusCode: code}
}

func decodeError(err error) *FetchError {
	return &FetchError{Kind: KindDecode, Message: err.Error(), Err: err}
}
