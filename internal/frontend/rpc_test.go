package frontend

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trasaroute/trasaroute/internal/errs"
)

func TestHTTPStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.NotAuthorized(""), http.StatusUnauthorized},
		{errs.BadRequest("x"), http.StatusBadRequest},
		{errs.InvalidArgument("x"), http.StatusBadRequest},
		{errs.NotImplemented(""), http.StatusNotImplemented},
		{errs.BadMethod(""), http.StatusMethodNotAllowed},
		{errs.ServerError("x"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := httpStatusFor(c.err); got != c.want {
			t.Errorf("httpStatusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestJSONRPCErrorCodeIsStablePerTaxonomyMember(t *testing.T) {
	seen := map[int]string{}
	for _, code := range []string{
		errs.CodeNotAuthorized, errs.CodeBadRequest, errs.CodeInvalidArgument,
		errs.CodeNotImplemented, errs.CodeBadMethod, errs.CodeServerError,
	} {
		n := jsonRPCErrorCode(code)
		if other, dup := seen[n]; dup && other != code {
			t.Errorf("jsonRPCErrorCode collision: %q and %q both map to %d", other, code, n)
		}
		seen[n] = code
	}
}

func TestDispatchUnknownMethodIsNotImplemented(t *testing.T) {
	services := ServiceMap{}
	_, err := dispatch(context.Background(), services, requestContext{}, Request{Method: "bogus"})
	if errs.CodeOf(err) != errs.CodeNotImplemented {
		t.Errorf("expected not_implemented, got %v", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	services := ServiceMap{
		"echo": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return map[string]string{"uid": rc.UID}, nil
		},
	}
	resp, err := dispatch(context.Background(), services, requestContext{UID: "u1"}, Request{Method: "echo", ID: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Result == nil {
		t.Fatal("expected a non-nil result")
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	wantErr := errs.BadRequest("nope")
	services := ServiceMap{
		"fail": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return nil, wantErr
		},
	}
	_, err := dispatch(context.Background(), services, requestContext{}, Request{Method: "fail"})
	if err != wantErr {
		t.Errorf("expected the handler's error to propagate, got %v", err)
	}
}
