// audit/service.go
package audit

import (
	"context"
	"time"
)

type Service interface {
	LogDecision(ctx context.Context, event DecisionEvent) error
	QueryDecisions(ctx context.Context, from, to time.Time, principalID, resourceID string, limit, offset int) ([]DecisionEvent, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogDecision(ctx context.Context, event DecisionEvent) error {
	return s.repo.LogDecision(ctx, event)
}

func (s *service) QueryDecisions(ctx context.Context, from, to time.Time, principalID, resourceID string, limit, offset int) ([]DecisionEvent, error) {
	return s.repo.QueryDecisions(ctx, from, to, principalID, resourceID, limit, offset)
}
