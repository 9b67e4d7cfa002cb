package rpc

import (
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorMessage renders a call error for display: the status message, then one
// line per rejected field.
func ErrorMessage(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	if st.Code() == codes.Unavailable && st.Message() == "" {
		return "daemon not reachable"
	}
	var b strings.Builder
	b.WriteString(st.Message())
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, v := range br.GetFieldViolations() {
			b.WriteString("\n  ")
			b.WriteString(v.GetField())
			b.WriteString(": ")
			b.WriteString(v.GetDescription())
		}
	}
	return b.String()
}

// FieldErrors extracts the per-field validation messages of a call error.
func FieldErrors(err error) map[string][]string {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out map[string][]string
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, v := range br.GetFieldViolations() {
			if out == nil {
				out = make(map[string][]string)
			}
			out[v.GetField()] = append(out[v.GetField()], v.GetDescription())
		}
	}
	return out
}
