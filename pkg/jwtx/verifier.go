package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a signed token and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// keySetVerifier resolves the signing key by kid against a KeySet. The same
// verifier accepts every algorithm in its allow-list, so a set that carries
// both Ed25519 and P-256 keys (e.g. mid-migration) keeps verifying tokens
// signed under either.
type keySetVerifier struct {
	keys    *KeySet
	issuer  string
	methods []string
}

// NewVerifier creates a Verifier over the KeySet, accepting the given
// algorithms. With no algorithms it accepts EdDSA and ES256.
func NewVerifier(keys *KeySet, issuer string, algorithms ...string) Verifier {
	if len(algorithms) == 0 {
		algorithms = []string{
			jwt.SigningMethodEdDSA.Alg(),
			jwt.SigningMethodES256.Alg(),
		}
	}
	return &keySetVerifier{keys: keys, issuer: issuer, methods: algorithms}
}

// Verify validates the compact JWS string and returns its parsed Claims.
// Malformed tokens, unknown kids, bad signatures, and expired tokens all
// fail here; callers treat every failure as a single invalid-token class.
func (v *keySetVerifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods(v.methods))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
