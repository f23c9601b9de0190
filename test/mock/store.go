// test/mock/store.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/verdictd/verdict/model"
)

// MockSnapshotPersister is a mock implementation of service.SnapshotPersister
type MockSnapshotPersister struct {
	mock.Mock
}

func (m *MockSnapshotPersister) SaveSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotPersister) LoadSnapshots(ctx context.Context) ([]*model.PolicySnapshot, error) {
	args := m.Called(ctx)
	if snapshots, ok := args.Get(0).([]*model.PolicySnapshot); ok {
		return snapshots, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSnapshotCache is a mock implementation of service.SnapshotCache
type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) CacheSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotCache) GetCachedSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error) {
	args := m.Called(ctx, storeID)
	if snapshot, ok := args.Get(0).(*model.PolicySnapshot); ok {
		return snapshot, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSnapshotCache) DeleteCachedSnapshot(ctx context.Context, storeID string) error {
	args := m.Called(ctx, storeID)
	return args.Error(0)
}
