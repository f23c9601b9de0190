// token/claims.go
package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the validated claim set of an access token. The custom claims
// mirror what the trusted identity provider issues for TBAC: the subject's
// department, access level, and owning account.
type Claims struct {
	Department  string `json:"department,omitempty"`
	AccessLevel string `json:"access_level,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	jwt.RegisteredClaims
}
