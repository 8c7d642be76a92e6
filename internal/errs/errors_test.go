package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not authorized", NotAuthorized(""), CodeNotAuthorized},
		{"bad request", BadRequest("missing field"), CodeBadRequest},
		{"invalid argument", InvalidArgument("too many waypoints"), CodeInvalidArgument},
		{"not implemented", NotImplemented(""), CodeNotImplemented},
		{"bad method", BadMethod(""), CodeBadMethod},
		{"server error", ServerError(""), CodeServerError},
		{"wrapped", ServerErrorWrap(fmt.Errorf("boom"), "downstream failed"), CodeServerError},
		{"foreign error defaults to server_error", fmt.Errorf("plain"), CodeServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Errorf("CodeOf(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorMessageDefaults(t *testing.T) {
	e := NotAuthorized("")
	if e.Message != "not authorized" {
		t.Errorf("empty message should default, got %q", e.Message)
	}

	e = InvalidArgument("")
	if e.Message != "" {
		t.Errorf("InvalidArgument has no default message, got %q", e.Message)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := ServerErrorWrap(cause, "store unreachable")

	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the original cause")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := BadRequest("missing starting_point")
	b := BadRequest("missing final_point")

	if !errors.Is(a, b) {
		t.Error("two bad_request errors should match via errors.Is regardless of message")
	}
	if errors.Is(a, NotAuthorized("")) {
		t.Error("errors with different codes should not match")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := ServerErrorWrap(cause, "routing engine unreachable")

	got := err.Error()
	if got == "" {
		t.Fatal("Error() returned empty string")
	}
	if !errors.Is(err, ServerError("")) {
		t.Error("wrapped server error should still report code server_error")
	}
}
