// errors/policy_errors.go
package errors

import "errors"

var (
	ErrStoreNotFound     = errors.New("policy store not found")
	ErrSchemaMismatch    = errors.New("policy references undeclared entity type or attribute")
	ErrInvalidPolicyData = errors.New("invalid policy data")
	ErrDatabaseOperation = errors.New("database operation failed")
	ErrInternalServer    = errors.New("internal server error")
)
