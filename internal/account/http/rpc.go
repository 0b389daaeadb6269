package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/obs"
	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/internal/account/service"
	"github.com/keyhavenhq/accountd/pkg/httpx"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

const jsonrpcVersion = "2.0"

type rpcRequest struct {
	JSONRPC string                     `json:"jsonrpc"`
	ID      json.RawMessage            `json:"id"`
	Method  string                     `json:"method"`
	Params  map[string]json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcerr.Error   `json:"error,omitempty"`
}

// rpcMethod handles one dispatched call. Parameter validation runs before
// any authorization check inside every method.
type rpcMethod func(r *http.Request, params map[string]json.RawMessage) (any, error)

// RPCHandler dispatches the JSON-RPC 2.0 method table over a single POST
// endpoint.
type RPCHandler struct {
	Registration *service.RegistrationService
	Session      *service.SessionService
	Accounts     *service.AccountService
	Authorizer   *service.Authorizer
	Keys         *jwtx.KeySet
	Metrics      *obs.Metrics

	methods map[string]rpcMethod
}

func (h *RPCHandler) init() {
	h.methods = map[string]rpcMethod{
		"register":          h.register,
		"login":             h.login,
		"readProfile":       h.readProfile,
		"updateProfile":     h.updateProfile,
		"readPermission":    h.readPermission,
		"updatePermission":  h.updatePermission,
		"setAdmin":          h.setAdmin,
		"listUsers":         h.listUsers,
		"getPublicKeyStore": h.getPublicKeyStore,
	}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.methods == nil {
		h.init()
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: jsonrpcVersion, Error: rpcerr.ParseError()})
		return
	}
	if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		writeRPC(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcerr.InvalidRequest()})
		return
	}

	method, ok := h.methods[req.Method]
	if !ok {
		h.observe(req.Method, rpcerr.CodeMethodNotFound, 0)
		writeRPC(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcerr.MethodNotFound(req.Method)})
		return
	}

	start := time.Now()
	result, err := method(r, req.Params)
	if err != nil {
		rpcErr, ok := rpcerr.From(err)
		if !ok {
			// Infrastructure failure; never let it cross the boundary raw.
			slogx.FromContext(r.Context()).Error("rpc method failed",
				slog.String("rpc_method", req.Method),
				slog.Any("error", err),
			)
			rpcErr = rpcerr.Internal()
		}
		h.observe(req.Method, rpcErr.Code, time.Since(start))
		writeRPC(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcErr})
		return
	}

	h.observe(req.Method, 0, time.Since(start))
	writeRPC(w, rpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result})
}

func (h *RPCHandler) observe(method string, code int, elapsed time.Duration) {
	if h.Metrics != nil {
		h.Metrics.ObserveRPC(method, code, elapsed)
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	// JSON-RPC errors ride on HTTP 200; the envelope carries the outcome.
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// --- method implementations -------------------------------------------------

func (h *RPCHandler) register(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	password, err := stringParam(params, "password")
	if err != nil {
		return nil, err
	}
	profile, err := objectParam(params, "profile")
	if err != nil {
		return nil, err
	}
	return h.Registration.Register(r.Context(), email, password, profile)
}

func (h *RPCHandler) login(r *http.Request, _ map[string]json.RawMessage) (any, error) {
	email, password, ok := r.BasicAuth()
	if !ok {
		return nil, rpcerr.Unauthorized(map[string]any{"reason": "Basic authorization required"})
	}

	var apiKey *string
	if values, present := r.Header["X-Api-Key"]; present && len(values) > 0 {
		apiKey = &values[0]
	}
	return h.Session.Login(r.Context(), email, password, apiKey)
}

func (h *RPCHandler) readProfile(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.SelfOrAdmin(claims, email); err != nil {
		return nil, err
	}
	return h.Accounts.ReadProfile(r.Context(), email)
}

func (h *RPCHandler) updateProfile(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	profile, err := objectParam(params, "profile")
	if err != nil {
		return nil, err
	}
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.SelfOrAdmin(claims, email); err != nil {
		return nil, err
	}
	return h.Accounts.UpdateProfile(r.Context(), email, profile)
}

func (h *RPCHandler) readPermission(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.AdminOnly(claims); err != nil {
		return nil, err
	}
	return h.Accounts.ReadPermission(r.Context(), email)
}

func (h *RPCHandler) updatePermission(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	permission, err := objectParam(params, "permission")
	if err != nil {
		return nil, err
	}
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.AdminOnly(claims); err != nil {
		return nil, err
	}
	return h.Accounts.UpdatePermission(r.Context(), email, permission)
}

func (h *RPCHandler) setAdmin(r *http.Request, params map[string]json.RawMessage) (any, error) {
	email, err := stringParam(params, "email")
	if err != nil {
		return nil, err
	}
	admin, err := boolParam(params, "admin")
	if err != nil {
		return nil, err
	}
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.AdminOnly(claims); err != nil {
		return nil, err
	}
	return h.Accounts.SetAdmin(r.Context(), email, admin)
}

func (h *RPCHandler) listUsers(r *http.Request, _ map[string]json.RawMessage) (any, error) {
	claims, err := h.Authorizer.Authenticate(bearerToken(r))
	if err != nil {
		return nil, err
	}
	if err := h.Authorizer.AdminOnly(claims); err != nil {
		return nil, err
	}
	return h.Accounts.ListUsers(r.Context())
}

func (h *RPCHandler) getPublicKeyStore(_ *http.Request, _ map[string]json.RawMessage) (any, error) {
	return h.Keys.PublicJWKS(), nil
}

// --- parameter extraction ---------------------------------------------------

// rawParam treats an explicit JSON null the same as an absent field; a null
// value must never decode to a zero value and slip past validation.
func rawParam(params map[string]json.RawMessage, name string) (json.RawMessage, error) {
	raw, ok := params[name]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil, rpcerr.MissingParameter(name)
	}
	return raw, nil
}

func stringParam(params map[string]json.RawMessage, name string) (string, error) {
	raw, err := rawParam(params, name)
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", rpcerr.InvalidParams(map[string]any{
			"message":   "expected a string",
			"parameter": name,
		})
	}
	return value, nil
}

func objectParam(params map[string]json.RawMessage, name string) (map[string]any, error) {
	raw, err := rawParam(params, name)
	if err != nil {
		return nil, err
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return nil, rpcerr.InvalidParams(map[string]any{
			"message":   "expected an object",
			"parameter": name,
		})
	}
	return value, nil
}

// boolParam is strict: JSON true/false only, no coercion from strings or
// numbers.
func boolParam(params map[string]json.RawMessage, name string) (bool, error) {
	raw, err := rawParam(params, name)
	if err != nil {
		return false, err
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, rpcerr.InvalidParams(map[string]any{
			"message":   "expected a boolean",
			"parameter": name,
		})
	}
	return value, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
