package api

import (
	"context"
	"errors"
	"sort"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/realtime"
	"github.com/matheus3301/souk/internal/workflow"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a domain error onto a gRPC status whose message is the text a
// front-end should show. Validation field errors travel as BadRequest details.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}

	msg := backend.UserMessage(err)
	code := codes.Internal
	var e *httpapi.Error
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, workflow.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, realtime.ErrNotConnected), errors.Is(err, realtime.ErrNoSession):
		code = codes.Unavailable
	case errors.As(err, &e):
		code = codeForKind(e.Kind)
	}

	st := grpcstatus.New(code, msg)
	if e != nil && len(e.Fields) > 0 {
		if withDetails, derr := st.WithDetails(badRequest(e.Fields)); derr == nil {
			st = withDetails
		}
	}
	return st.Err()
}

func codeForKind(k httpapi.Kind) codes.Code {
	switch k {
	case httpapi.KindAuth:
		return codes.Unauthenticated
	case httpapi.KindValidation:
		return codes.InvalidArgument
	case httpapi.KindForbidden, httpapi.KindEmailUnverified:
		return codes.PermissionDenied
	case httpapi.KindNotFound:
		return codes.NotFound
	case httpapi.KindNetwork, httpapi.KindServer:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func badRequest(fields map[string][]string) *errdetails.BadRequest {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	br := &errdetails.BadRequest{}
	for _, f := range names {
		for _, d := range fields[f] {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f, Description: d})
		}
	}
	return br
}

func invalid(msg string) error {
	return grpcstatus.Error(codes.InvalidArgument, msg)
}

var errNotSignedIn = grpcstatus.Error(codes.Unauthenticated, "Sign in first.")
