// Package rpcerr defines the typed business errors that cross the JSON-RPC
// boundary. Every expected failure is one of these values; anything else is
// an infrastructure failure and surfaces as a generic internal error.
package rpcerr

import "fmt"

// JSON-RPC 2.0 protocol codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Application error codes. The -330xx block is part of the public contract;
// clients match on these numbers.
const (
	CodeEntityNotFound      = -33001
	CodeEntityDuplicated    = -33002
	CodeUnauthorized        = -33005
	CodeDBFailInsert        = -33006
	CodeAccountNotActivated = -33007
	CodeInvalidJWS          = -33008
)

// Error is a JSON-RPC error object with a structured data payload.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is works across payload-carrying
// instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// InvalidParams reports malformed or missing caller input. data.parameter
// names the offending field.
func InvalidParams(data map[string]any) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: data}
}

// MissingParameter is the common InvalidParams case for an absent field.
func MissingParameter(name string) *Error {
	return InvalidParams(map[string]any{
		"message":   "missing parameter",
		"parameter": name,
	})
}

// EntityNotFound reports a failed lookup. Deliberately ambiguous where
// distinguishing "no such user" from "wrong token" would let callers
// enumerate accounts.
func EntityNotFound(data map[string]any) *Error {
	return &Error{Code: CodeEntityNotFound, Message: "Entity not found", Data: data}
}

// EntityDuplicated reports a registration collision.
func EntityDuplicated(data map[string]any) *Error {
	return &Error{Code: CodeEntityDuplicated, Message: "Entity duplicated", Data: data}
}

// Unauthorized reports a credential or authorization failure.
func Unauthorized(data map[string]any) *Error {
	return &Error{Code: CodeUnauthorized, Message: "Unauthorized", Data: data}
}

// DBFailInsert reports that storage accepted the precondition but the write
// did not take effect.
func DBFailInsert(data map[string]any) *Error {
	return &Error{Code: CodeDBFailInsert, Message: "Failed DB insert", Data: data}
}

// AccountNotActivated reports a login attempt against a pending registration.
func AccountNotActivated(data map[string]any) *Error {
	return &Error{Code: CodeAccountNotActivated, Message: "Account not activated", Data: data}
}

// InvalidJWS reports a bearer token that is missing, malformed, or
// semantically incomplete.
func InvalidJWS(data map[string]any) *Error {
	return &Error{Code: CodeInvalidJWS, Message: "Invalid JWS", Data: data}
}

// MethodNotFound reports an unknown RPC method.
func MethodNotFound(method string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: "Method not found",
		Data:    map[string]any{"method": method},
	}
}

// Internal is the generic infrastructure failure; details stay in the logs.
func Internal() *Error {
	return &Error{Code: CodeInternal, Message: "Internal error"}
}

// ParseError reports an unparseable request body.
func ParseError() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

// InvalidRequest reports a structurally invalid JSON-RPC envelope.
func InvalidRequest() *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid request"}
}

// From extracts an *Error from err, or wraps it as Internal. The bool
// reports whether err was a typed business error.
func From(err error) (*Error, bool) {
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr, true
	}
	return Internal(), false
}
