package minimax

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when an attempt didn't finish in time.
	ErrTimeout = errors.New("minimax: timeout")
	// ErrTransport is returned for any other network failure.
	ErrTransport = errors.New("minimax: transport error")
	// ErrMalformedResponse is returned when a body can't be decoded or lacks
	// the status envelope.
	ErrMalformedResponse = errors.New("minimax: malformed response")
	// ErrMissingAudio is returned when a generation response has no audio.
	ErrMissingAudio = errors.New("minimax: missing audio payload")
)

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// APIError is a well formed rejection from the API (status_code != 0).
type APIError struct {
	StatusCode int
	StatusMsg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("minimax: api error %d: %s", e.StatusCode, e.StatusMsg)
}

func (r *baseResp) err() error {
	if r == nil {
		return fmt.Errorf("%w: missing base_resp", ErrMalformedResponse)
	}
	if r.StatusCode != 0 {
		return &APIError{StatusCode: r.StatusCode, StatusMsg: r.StatusMsg}
	}
	return nil
}

// StatusError is returned for HTTP responses other than 200.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("minimax: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("minimax: unexpected status %d: %s", e.Code, e.Msg)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

func newStatusError(code int, body []byte) *StatusError {
	var envelope struct {
		BaseResp *baseResp `json:"base_resp"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.BaseResp != nil && envelope.BaseResp.StatusMsg != "" {
		return &StatusError{Code: code, Msg: envelope.BaseResp.StatusMsg}
	}
	return &StatusError{Code: code, Msg: truncate(string(body), 100)}
}
