package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	// ServerError is the "error" field of the response body, if any.
	ServerError string
	// ServerMessage is the "message" field of the response body, if any.
	ServerMessage string
	Body          string
}

func (e *StatusError) Error() string {
	switch {
	case e.ServerError != "":
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.ServerError)
	case e.ServerMessage != "":
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.ServerMessage)
	case e.Body != "":
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("backend status %d", e.StatusCode)
	}
}

func newStatusError(resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &StatusError{StatusCode: resp.StatusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		e.ServerError = strings.TrimSpace(payload.Error)
		e.ServerMessage = strings.TrimSpace(payload.Message)
	}
	if e.ServerError == "" && e.ServerMessage == "" {
		e.Body = strings.TrimSpace(string(data))
	}
	return e
}

// ServerError returns the backend-supplied "error" text carried by err, or "".
func ServerError(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.ServerError
	}
	return ""
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}
