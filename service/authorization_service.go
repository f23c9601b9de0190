// service/authorization_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verdictd/verdict/audit"
	verdict_errors "github.com/verdictd/verdict/errors"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/token"
	"github.com/verdictd/verdict/util"
)

// AuthorizeRequest is the service-level authorization question. Principal
// is optional; when set it must match the token's subject.
type AuthorizeRequest struct {
	Token     string
	Principal string
	Action    string
	Resource  string
	Context   map[string]interface{}
	StoreID   string
}

type IAuthorizationService interface {
	Authorize(ctx context.Context, request AuthorizeRequest) (*model.Decision, error)
}

// SnapshotProvider yields the current snapshot of a policy store.
type SnapshotProvider interface {
	GetSnapshot(storeID string) (*model.PolicySnapshot, error)
}

type DecisionEvaluator interface {
	Evaluate(ctx context.Context, request *model.AccessRequest, snapshot *model.PolicySnapshot) *model.Decision
	FlushCache()
}

// AuthorizationService ties token verification, snapshot lookup, and
// evaluation together. Every failure along the way surfaces as a DENY
// decision with a machine-readable reason code; Authorize itself returns a
// non-nil error only when even a fail-closed decision cannot be produced.
type AuthorizationService struct {
	resolver  token.IdentityResolver
	snapshots SnapshotProvider
	evaluator DecisionEvaluator
	eventBus  *util.EventBus
}

func NewAuthorizationService(resolver token.IdentityResolver, snapshots SnapshotProvider, evaluator DecisionEvaluator, auditService audit.Service, eventBus *util.EventBus) *AuthorizationService {
	service := &AuthorizationService{
		resolver:  resolver,
		snapshots: snapshots,
		evaluator: evaluator,
		eventBus:  eventBus,
	}

	// Set up event subscriptions
	eventBus.Subscribe(util.EventDecisionRecorded, func(ctx context.Context, event util.Event) error {
		decisionEvent, ok := event.Payload.(audit.DecisionEvent)
		if !ok {
			return fmt.Errorf("invalid event payload type: %T", event.Payload)
		}
		return auditService.LogDecision(ctx, decisionEvent)
	})
	eventBus.Subscribe(util.EventPolicyStoreReplaced, service.handleStoreReplaced)

	return service
}

func (s *AuthorizationService) handleStoreReplaced(ctx context.Context, event util.Event) error {
	snapshot, ok := event.Payload.(*model.PolicySnapshot)
	if !ok {
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}

	logger.Info("Policy store replaced event received",
		zap.String("storeID", snapshot.StoreID),
		zap.String("version", snapshot.Version))

	s.evaluator.FlushCache()

	return nil
}

// Authorize verifies the bearer token, resolves the principal, and
// evaluates the request against the store's current snapshot.
func (s *AuthorizationService) Authorize(ctx context.Context, request AuthorizeRequest) (*model.Decision, error) {
	start := time.Now()

	principal, err := s.resolver.Resolve(ctx, request.Token)
	if err != nil {
		decision := deniedDecision(reasonForTokenError(err), start)
		s.recordDecision(ctx, request, principal, decision)

		logger.Warn("Token verification failed",
			zap.String("reason", decision.Reason),
			zap.String("resource", request.Resource),
			zap.Error(err))

		return decision, nil
	}

	if request.Principal != "" && request.Principal != principal.ID {
		decision := deniedDecision(model.ReasonPrincipalMismatch, start)
		s.recordDecision(ctx, request, principal, decision)

		logger.Warn("Request principal does not match token subject",
			zap.String("requestPrincipal", request.Principal),
			zap.String("tokenSubject", principal.ID))

		return decision, nil
	}

	snapshot, err := s.snapshots.GetSnapshot(request.StoreID)
	if err != nil {
		reason := model.ReasonInternalError
		if errors.Is(err, verdict_errors.ErrStoreNotFound) {
			reason = model.ReasonStoreNotFound
		}

		decision := deniedDecision(reason, start)
		s.recordDecision(ctx, request, principal, decision)

		logger.Warn("Policy store lookup failed",
			zap.String("storeID", request.StoreID),
			zap.Error(err))

		return decision, nil
	}

	accessRequest := &model.AccessRequest{
		Principal: *principal,
		Action:    request.Action,
		Resource:  request.Resource,
		Context:   request.Context,
	}

	decision := s.evaluator.Evaluate(ctx, accessRequest, snapshot)
	s.recordDecision(ctx, request, principal, decision)

	return decision, nil
}

func (s *AuthorizationService) recordDecision(ctx context.Context, request AuthorizeRequest, principal *model.Principal, decision *model.Decision) {
	principalID := request.Principal
	if principal != nil {
		principalID = principal.ID
	}

	// Handlers run after the response is written; the request context may
	// already be canceled by then, so the publish must not inherit it.
	s.eventBus.Publish(context.WithoutCancel(ctx), util.EventDecisionRecorded, audit.DecisionEvent{
		Timestamp:        time.Now().UTC(),
		PrincipalID:      principalID,
		Action:           request.Action,
		ResourceID:       request.Resource,
		Outcome:          string(decision.Outcome),
		Reason:           decision.Reason,
		MatchedPolicyIDs: decision.MatchedPolicyIDs,
		StoreID:          request.StoreID,
		StoreVersion:     decision.StoreVersion,
		EvaluationTimeMS: decision.EvaluationTimeMS,
	})
}

func deniedDecision(reason string, start time.Time) *model.Decision {
	return &model.Decision{
		Outcome:          model.OutcomeDeny,
		Reason:           reason,
		MatchedPolicyIDs: []string{},
		EvaluationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

func reasonForTokenError(err error) string {
	switch {
	case errors.Is(err, verdict_errors.ErrTokenMalformed):
		return model.ReasonTokenMalformed
	case errors.Is(err, verdict_errors.ErrTokenSignatureInvalid):
		return model.ReasonSignatureInvalid
	case errors.Is(err, verdict_errors.ErrTokenExpired):
		return model.ReasonTokenExpired
	case errors.Is(err, verdict_errors.ErrTokenAudienceMismatch):
		return model.ReasonAudienceMismatch
	case errors.Is(err, verdict_errors.ErrTokenIssuerMismatch):
		return model.ReasonIssuerMismatch
	case errors.Is(err, verdict_errors.ErrKeyFetchTimeout):
		return model.ReasonKeyFetchTimeout
	default:
		return model.ReasonInternalError
	}
}
