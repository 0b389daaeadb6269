package service

import (
	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

// Authorizer is the decision function behind every privileged RPC method.
// The checks run in a fixed order: bearer extraction, signature/expiry
// verification, claim-shape validation, then the per-operation rule. Each
// stage maps to exactly one error kind so clients can tell a broken token
// from a denied one.
type Authorizer struct {
	Verifier jwtx.Verifier
}

// Authenticate verifies the bearer token and validates the claim shape.
// token is the raw value after the "Bearer " prefix, empty when no bearer
// header was supplied.
func (a *Authorizer) Authenticate(token string) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, rpcerr.InvalidJWS(map[string]any{"reason": "missing bearer token"})
	}

	claims, err := a.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, rpcerr.InvalidJWS(map[string]any{"reason": "invalid or expired token"})
	}

	// A token that verifies but lacks the identity claims is semantically
	// incomplete; admin must be present even when false.
	if !claims.HasSubject() {
		return jwtx.Claims{}, rpcerr.InvalidJWS(map[string]any{"reason": "missing claim sub"})
	}
	if !claims.HasAdmin() {
		return jwtx.Claims{}, rpcerr.InvalidJWS(map[string]any{"reason": "missing claim admin"})
	}
	return claims, nil
}

// SelfOrAdmin grants access when the caller is the target identity or holds
// the admin claim. The denial payload names both sides.
func (a *Authorizer) SelfOrAdmin(claims jwtx.Claims, targetEmail string) error {
	if claims.Subject == targetEmail || claims.IsAdmin() {
		return nil
	}
	return rpcerr.Unauthorized(map[string]any{
		"email": targetEmail,
		"sub":   claims.Subject,
	})
}

// AdminOnly grants access to admin callers. The denial payload carries only
// the caller, distinguishing it from a self-or-admin denial.
func (a *Authorizer) AdminOnly(claims jwtx.Claims) error {
	if claims.IsAdmin() {
		return nil
	}
	return rpcerr.Unauthorized(map[string]any{"sub": claims.Subject})
}
