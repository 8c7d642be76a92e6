package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/trasaroute/trasaroute/internal/auth"
	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/health"
	"github.com/trasaroute/trasaroute/internal/logging"
	"github.com/trasaroute/trasaroute/internal/services"
)

// maxPayloadBytes bounds the body of a single POST / request.
const maxPayloadBytes = 64 * 1024

var errServerError = fmt.Errorf("server_error")

// wsMaxMessageBytes is the WebSocket per-frame text message cap.
const wsMaxMessageBytes = 64 * 1024

// requestContext is the authenticated identity bound to one call.
type requestContext = services.RequestContext

// Server is the HTTP/WebSocket JSON-RPC front end.
type Server struct {
	keySet   *auth.KeySet
	services ServiceMap
	logger   *logging.Logger
	upgrader websocket.Upgrader
	health   *health.Checker
}

// NewServer builds the front end's router. checks feeds the
// /healthcheck/deps endpoint; /healthcheck itself ignores them.
func NewServer(keySet *auth.KeySet, services ServiceMap, logger *logging.Logger, checks ...health.Check) *Server {
	return &Server{
		keySet:   keySet,
		services: services,
		logger:   logger,
		health:   health.NewChecker(checks...),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    wsMaxMessageBytes,
			WriteBufferSize:   wsMaxMessageBytes,
			EnableCompression: true,
			CheckOrigin:       func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the chi mux implementing the Routing state's dispatch
// table: GET /healthcheck, OPTIONS / (CORS preflight), POST / (JSON-RPC),
// GET / with Upgrade: websocket, anything else -> 405.
//
// /healthcheck is the spec-mandated liveness probe: an unconditional 200
// with an empty body, never gated on dependency state. The richer
// per-dependency report (result store reachability, etc.) is an ambient
// operational concern the spec leaves open, so it is exposed separately
// at /healthcheck/deps rather than folded into the documented contract.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(recoverPanic(s.logger))
	r.Get("/healthcheck", health.LivenessHandler())
	r.Get("/healthcheck/deps", s.health.Handler())
	r.Options("/", s.handlePreflight)
	r.Post("/", s.handlePost)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			writeError(w, badMethodError())
			return
		}
		s.handleUpgrade(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, badMethodError())
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, badMethodError())
	})
	return r
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, content-type")
	h.Set("Access-Control-Allow-Methods", "post")
	h.Set("Access-Control-Allow-Credentials", "true")
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		s.handleUpgrade(w, r)
		return
	}

	setCORSHeaders(w)

	identity, ok := s.keySet.Authorize(r.Header.Get("Authorization"))
	if !ok {
		writeHTTPError(w, httpError{status: http.StatusUnauthorized, err: fmt.Errorf("not_authorized")})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHTTPError(w, httpError{status: http.StatusBadRequest, err: err})
		return
	}

	resp, err := dispatch(r.Context(), s.services, requestContext{UID: identity.UID, IDP: identity.IDP}, req)
	if err != nil {
		writeHTTPError(w, httpError{status: httpStatusFor(err), err: err})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type httpError struct {
	status int
	err    error
}

func writeHTTPError(w http.ResponseWriter, he httpError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": he.err.Error()})
}

func writeError(w http.ResponseWriter, he httpError) {
	writeHTTPError(w, he)
}

func badMethodError() httpError {
	return httpError{status: http.StatusMethodNotAllowed, err: fmt.Errorf("bad_method")}
}

// handleUpgrade authorizes once at upgrade (per spec: HTTP verifies per
// call, WebSocket verifies once at upgrade) then enters WsReading <->
// WsWriting: one pending request at a time per session.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.keySet.Authorize(r.Header.Get("Authorization"))
	if !ok {
		writeHTTPError(w, httpError{status: http.StatusUnauthorized, err: fmt.Errorf("not_authorized")})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageBytes)
	conn.EnableWriteCompression(true)
	conn.SetCompressionLevel(3)

	rc := requestContext{UID: identity.UID, IDP: identity.IDP}
	s.wsReadLoop(context.Background(), conn, rc)
}

func (s *Server) wsReadLoop(ctx context.Context, conn *websocket.Conn, rc requestContext) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(data, &req); err != nil {
			resp = Response{JSONRPC: "2.0", Error: &RPCError{Code: jsonRPCErrorCode(""), Message: "unspecified error"}}
		} else {
			r, dispatchErr := dispatch(ctx, s.services, rc, req)
			if dispatchErr != nil {
				r.Error = &RPCError{Code: jsonRPCErrorCode(errs.CodeOf(dispatchErr)), Message: "unspecified error"}
			}
			resp = r
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return
		}
		deadline := time.Now().Add(10 * time.Second)
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}
