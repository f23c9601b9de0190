// token/verifier.go
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	verdict_errors "github.com/verdictd/verdict/errors"
)

// Verifier validates signed access tokens against the trust bundle and the
// expected issuer/audience. It is pure over (token, key set): no side
// effects beyond the bundle's bounded key fetch.
type Verifier struct {
	issuer      string
	audience    string
	trustBundle *TrustBundle
	parser      *jwt.Parser
}

func NewVerifier(issuer, audience string, leeway time.Duration, trustBundle *TrustBundle) *Verifier {
	return &Verifier{
		issuer:      issuer,
		audience:    audience,
		trustBundle: trustBundle,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
			jwt.WithAudience(audience),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(leeway),
		),
	}
}

// Verify parses and validates rawToken, returning the claim set or one of
// the token sentinel errors.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims := &Claims{}

	if _, err := v.parser.ParseWithClaims(rawToken, claims, v.keyFunc(ctx)); err != nil {
		return nil, v.mapError(err)
	}

	return claims, nil
}

func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		keyID, _ := t.Header["kid"].(string)
		if keyID == "" {
			return nil, verdict_errors.ErrTokenSignatureInvalid
		}

		key, err := v.trustBundle.Key(ctx, keyID)
		if err != nil {
			return nil, err
		}

		var rawKey interface{}
		if err := key.Raw(&rawKey); err != nil {
			return nil, fmt.Errorf("failed to materialize signing key %s: %w", keyID, err)
		}

		return rawKey, nil
	}
}

// mapError reduces golang-jwt's joined validation errors to the service's
// token taxonomy. Expiry is checked before audience/issuer so an expired
// token reports TOKEN_EXPIRED regardless of its other claims.
func (v *Verifier) mapError(err error) error {
	switch {
	case errors.Is(err, verdict_errors.ErrKeyFetchTimeout):
		return verdict_errors.ErrKeyFetchTimeout
	case errors.Is(err, jwt.ErrTokenMalformed):
		return verdict_errors.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, verdict_errors.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return verdict_errors.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return verdict_errors.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return verdict_errors.ErrTokenAudienceMismatch
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return verdict_errors.ErrTokenIssuerMismatch
	default:
		return verdict_errors.ErrTokenMalformed
	}
}
