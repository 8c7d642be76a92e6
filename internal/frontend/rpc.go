// Package frontend implements the JSON-RPC/WebSocket front end: the
// per-connection session state machine, CORS handling, auth, and the
// error-mapping contract.
package frontend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/trasaroute/trasaroute/internal/errs"
)

// Request is the inbound JSON-RPC envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is the outbound JSON-RPC envelope; exactly one of Result/Error
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MethodFunc handles one JSON-RPC method's params against an authenticated
// identity, returning a JSON-marshalable result or a taxonomy error.
type MethodFunc func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error)

// ServiceMap binds method names to handlers. Any method absent from this
// map fails the call with not_implemented.
type ServiceMap map[string]MethodFunc

// httpStatusFor implements the error -> HTTP status mapping.
func httpStatusFor(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeNotAuthorized:
		return http.StatusUnauthorized
	case errs.CodeBadRequest, errs.CodeInvalidArgument:
		return http.StatusBadRequest
	case errs.CodeNotImplemented:
		return http.StatusNotImplemented
	case errs.CodeBadMethod:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// jsonRPCErrorCode maps a taxonomy code to a JSON-RPC error code, giving
// each taxonomy member a distinct, stable numeric identity. not_implemented
// reuses JSON-RPC's "method not found" (-32601); the others come from the
// implementation-defined server-error range (-32000 to -32099).
func jsonRPCErrorCode(code string) int {
	switch code {
	case errs.CodeNotAuthorized:
		return -32001
	case errs.CodeBadRequest:
		return -32002
	case errs.CodeInvalidArgument:
		return -32003
	case errs.CodeNotImplemented:
		return -32601
	case errs.CodeBadMethod:
		return -32004
	default:
		return -32000
	}
}

// dispatch invokes the bound method for req, honoring the one-shot-RPC
// error-message policy (the caller decides whether to expose err.Error()
// for HTTP, or the intentionally opaque "unspecified error" for WebSocket).
func dispatch(ctx context.Context, services ServiceMap, rc requestContext, req Request) (Response, error) {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	handler, ok := services[req.Method]
	if !ok {
		return resp, errs.NotImplemented("")
	}

	result, err := handler(ctx, rc, req.Params)
	if err != nil {
		return resp, err
	}
	resp.Result = result
	return resp, nil
}
