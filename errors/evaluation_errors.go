// errors/evaluation_errors.go
package errors

import "errors"

var (
	ErrAttributeMissing = errors.New("required attribute missing from request")
	ErrUnknownOperator  = errors.New("unknown condition operator")
)
