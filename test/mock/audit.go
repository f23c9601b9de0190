// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/verdictd/verdict/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogDecision(ctx context.Context, event audit.DecisionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditService) QueryDecisions(ctx context.Context, from, to time.Time, principalID, resourceID string, limit, offset int) ([]audit.DecisionEvent, error) {
	args := m.Called(ctx, from, to, principalID, resourceID, limit, offset)
	return args.Get(0).([]audit.DecisionEvent), args.Error(1)
}
