package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnauthorized means the session is invalid. Callers clear the session
	// and send the operator back to login.
	ErrUnauthorized = errors.New("session invalid or expired")
	// ErrInvalidCredentials is returned by Login on 401.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLoginFailed is matched by every other Login failure.
	ErrLoginFailed = errors.New("login failed")
	// ErrMalformedResponse means a 2xx body did not have the expected shape.
	ErrMalformedResponse = errors.New("unexpected response format")
	// ErrNotFound matches a 404 from any call.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server supplied message, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is match ErrUnauthorized and ErrNotFound against status codes.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// LoginError is a non-2xx, non-401 login response.
type LoginError struct {
	StatusCode int
	Message    string
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login failed: %s", e.Message)
	}
	return fmt.Sprintf("login failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *LoginError) Unwrap() error { return ErrLoginFailed }

// Kind is the error taxonomy shared by controllers and the presentation layer.
type Kind int

const (
	// KindNone is a nil error.
	KindNone Kind = iota
	// KindUnauthorized always clears the session and redirects to login.
	KindUnauthorized
	// KindInvalidCredentials is a rejected login.
	KindInvalidCredentials
	// KindMalformed is a response with an unexpected shape.
	KindMalformed
	// KindNetworkOrServer is every other failure.
	KindNetworkOrServer
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindMalformed:
		return "malformed"
	default:
		return "network_or_server"
	}
}

// Classify maps err onto the taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	default:
		return KindNetworkOrServer
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var le *LoginError
	if errors.As(err, &le) {
		return le.StatusCode
	}
	return 0
}

const maxMessageLen = 200

// serverMessage extracts {message} or {error} from body, falling back to
// the trimmed text.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
