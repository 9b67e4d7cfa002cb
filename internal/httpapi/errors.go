package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failed request.
type Kind string

const (
	KindAuth            Kind = "auth"
	KindValidation      Kind = "validation"
	KindForbidden       Kind = "forbidden"
	KindEmailUnverified Kind = "email_unverified"
	KindNotFound        Kind = "not_found"
	KindNetwork         Kind = "network"
	KindServer          Kind = "server"
	KindHTTP            Kind = "http"
)

// Error is the single error shape returned by Client for every failed call.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
	Err     error

	fromBody bool
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindNetwork {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasServerMessage reports whether Message came from the response body rather
// than being a generic fallback.
func (e *Error) HasServerMessage() bool {
	return e.fromBody
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

var emailUnverifiedCodes = map[string]bool{
	"email_not_verified": true,
	"email_unverified":   true,
}

const maxErrorBody = 1 << 20

// parseError builds an *Error from a non-2xx response. The body is read but not closed.
func parseError(resp *http.Response) *Error {
	e := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if isJSON(resp.Header.Get("Content-Type")) && len(raw) > 0 {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err == nil {
			fillFromBody(e, body)
		}
	}

	if e.Kind == KindForbidden && emailUnverifiedCodes[e.Code] {
		e.Kind = KindEmailUnverified
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP error %d", resp.StatusCode)
	}
	return e
}

func fillFromBody(e *Error, body map[string]any) {
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := body[key].(string); ok && s != "" {
			e.Message = s
			e.fromBody = true
			break
		}
	}
	if s, ok := body["code"].(string); ok {
		e.Code = s
	}

	for key, v := range body {
		switch key {
		case "detail", "message", "error", "code":
			continue
		}
		if msgs := stringList(v); len(msgs) > 0 {
			if e.Fields == nil {
				e.Fields = make(map[string][]string)
			}
			e.Fields[key] = msgs
		}
	}

	if e.Message == "" && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		first := keys[0]
		e.fromBody = true
		if first == "non_field_errors" {
			e.Message = strings.Join(e.Fields[first], " ")
		} else {
			e.Message = first + ": " + strings.Join(e.Fields[first], " ")
		}
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindHTTP
	}
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}
