// Package api provides the Ricordi server API client.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
)

// ErrUnauthorized indicates a 401 response: the token is missing or expired.
// Treated as an ordinary transport error, visible but never fatal.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response from the server. Detail carries the
// optional {"detail": ...} body the server attaches to validation failures.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == nethttp.StatusUnauthorized
}

// Detail extracts the user-facing message from an error, preferring the
// server's detail string when present.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return err.Error()
}

// statusError reads a failed response body and builds a StatusError.
func statusError(resp *nethttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Detail == "" {
		payload.Detail = ""
	}
	if payload.Detail == "" && len(body) > 0 && len(body) < 512 {
		payload.Detail = string(body)
	}

	return &StatusError{Status: resp.StatusCode, Detail: payload.Detail}
}
