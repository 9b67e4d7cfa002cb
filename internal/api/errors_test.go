package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matheus3301/souk/internal/backend"
	"github.com/matheus3301/souk/internal/httpapi"
	"github.com/matheus3301/souk/internal/realtime"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/workflow"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"auth", &httpapi.Error{Kind: httpapi.KindAuth, Message: "x"}, codes.Unauthenticated},
		{"validation", &httpapi.Error{Kind: httpapi.KindValidation, Message: "x"}, codes.InvalidArgument},
		{"forbidden", &httpapi.Error{Kind: httpapi.KindForbidden}, codes.PermissionDenied},
		{"unverified", &httpapi.Error{Kind: httpapi.KindEmailUnverified}, codes.PermissionDenied},
		{"not found", &httpapi.Error{Kind: httpapi.KindNotFound}, codes.NotFound},
		{"network", &httpapi.Error{Kind: httpapi.KindNetwork, Err: errors.New("refused")}, codes.Unavailable},
		{"server", &httpapi.Error{Kind: httpapi.KindServer}, codes.Unavailable},
		{"wrapped", fmt.Errorf("load: %w", &httpapi.Error{Kind: httpapi.KindNotFound}), codes.NotFound},
		{"missing item", fmt.Errorf("order 9: %w", workflow.ErrNotFound), codes.NotFound},
		{"offline socket", realtime.ErrNotConnected, codes.Unavailable},
		{"cancelled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grpcstatus.Code(toStatus(tt.err)); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToStatusPassesStatusThrough(t *testing.T) {
	in := invalid("Enter a name.")
	if got := toStatus(in); got != in {
		t.Errorf("toStatus changed an existing status: %v", got)
	}
	if toStatus(nil) != nil {
		t.Error("toStatus(nil) should be nil")
	}
}

func TestToStatusMessageAndFields(t *testing.T) {
	err := toStatus(&httpapi.Error{
		Kind:    httpapi.KindValidation,
		Message: "Check the highlighted fields.",
		Fields: map[string][]string{
			"price": {"Ensure this value is greater than 0."},
			"email": {"Enter a valid email address.", "This field is required."},
		},
	})
	st, _ := grpcstatus.FromError(err)
	if st.Message() != backend.UserMessage(&httpapi.Error{Kind: httpapi.KindValidation, Message: "Check the highlighted fields."}) {
		t.Errorf("message = %q", st.Message())
	}

	fields := rpc.FieldErrors(err)
	if len(fields["email"]) != 2 || fields["price"][0] != "Ensure this value is greater than 0." {
		t.Errorf("fields = %v", fields)
	}

	want := st.Message() +
		"\n  email: Enter a valid email address." +
		"\n  email: This field is required." +
		"\n  price: Ensure this value is greater than 0."
	if got := rpc.ErrorMessage(err); got != want {
		t.Errorf("ErrorMessage =\n%s\nwant\n%s", got, want)
	}
}
