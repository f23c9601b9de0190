// token/resolver.go
package token

import (
	"context"

	"github.com/verdictd/verdict/model"
)

// IdentityResolver turns a bearer token into a Principal. The resolved
// identity lives only for the duration of one evaluation; there is no
// in-process session state.
type IdentityResolver interface {
	Resolve(ctx context.Context, rawToken string) (*model.Principal, error)
}

// ClaimsResolver resolves principals from validated token claims.
type ClaimsResolver struct {
	verifier *Verifier
}

func NewClaimsResolver(verifier *Verifier) *ClaimsResolver {
	return &ClaimsResolver{verifier: verifier}
}

func (r *ClaimsResolver) Resolve(ctx context.Context, rawToken string) (*model.Principal, error) {
	claims, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	attributes := make(map[string]interface{})
	if claims.Department != "" {
		attributes["department"] = claims.Department
	}
	if claims.AccessLevel != "" {
		attributes["access_level"] = claims.AccessLevel
	}
	if claims.AccountID != "" {
		attributes["account_id"] = claims.AccountID
	}
	if claims.Issuer != "" {
		attributes["issuer"] = claims.Issuer
	}

	return &model.Principal{
		ID:         claims.Subject,
		Attributes: attributes,
	}, nil
}
