// errors/token_errors.go
package errors

import "errors"

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenAudienceMismatch = errors.New("token audience mismatch")
	ErrTokenIssuerMismatch   = errors.New("token issuer mismatch")
	ErrKeyFetchTimeout       = errors.New("signing key fetch timed out")
)
