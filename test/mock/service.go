// test/mock/service.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/service"
)

// MockAuthorizationService is a mock implementation of service.IAuthorizationService
type MockAuthorizationService struct {
	mock.Mock
}

func (m *MockAuthorizationService) Authorize(ctx context.Context, request service.AuthorizeRequest) (*model.Decision, error) {
	args := m.Called(ctx, request)
	if decision, ok := args.Get(0).(*model.Decision); ok {
		return decision, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPolicyStoreService is a mock implementation of service.IPolicyStoreService
type MockPolicyStoreService struct {
	mock.Mock
}

func (m *MockPolicyStoreService) GetSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error) {
	args := m.Called(ctx, storeID)
	if snapshot, ok := args.Get(0).(*model.PolicySnapshot); ok {
		return snapshot, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyStoreService) GetSchema(ctx context.Context, storeID string) (*model.Schema, error) {
	args := m.Called(ctx, storeID)
	if schema, ok := args.Get(0).(*model.Schema); ok {
		return schema, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyStoreService) ReplaceSnapshot(ctx context.Context, storeID string, policies []model.Policy, schema model.Schema) (*model.PolicySnapshot, error) {
	args := m.Called(ctx, storeID, policies, schema)
	if snapshot, ok := args.Get(0).(*model.PolicySnapshot); ok {
		return snapshot, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyStoreService) StoreIDs() []string {
	args := m.Called()
	return args.Get(0).([]string)
}
