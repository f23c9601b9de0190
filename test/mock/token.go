// test/mock/token.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/verdictd/verdict/model"
)

// MockIdentityResolver is a mock implementation of token.IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, rawToken string) (*model.Principal, error) {
	args := m.Called(ctx, rawToken)
	if principal, ok := args.Get(0).(*model.Principal); ok {
		return principal, args.Error(1)
	}
	return nil, args.Error(1)
}
