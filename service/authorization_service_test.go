// service/authorization_service_test.go
package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdictd/verdict/audit"
	"github.com/verdictd/verdict/engine"
	verdict_errors "github.com/verdictd/verdict/errors"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/service"
	"github.com/verdictd/verdict/store"
	"github.com/verdictd/verdict/test/mock"
	"github.com/verdictd/verdict/util"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	defer logger.Sync()
	m.Run()
}

func loadedManager(t *testing.T) *store.Manager {
	t.Helper()

	manager := store.NewManager()
	_, err := manager.Replace("default", []model.Policy{
		{
			ID:      "permit-engineering",
			Effect:  model.EffectPermit,
			Actions: []string{"read"},
			Conditions: []model.Condition{
				{Attribute: "principal.department", Operator: model.OpEqual, Value: "engineering"},
			},
		},
	}, model.Schema{
		EntityTypes: map[string]model.EntityType{
			"principal": {Attributes: map[string]string{"department": "string"}},
		},
	})
	require.NoError(t, err)

	return manager
}

func newAuthorizationService(t *testing.T, resolver *mock.MockIdentityResolver) (*service.AuthorizationService, *mock.MockAuditService, chan audit.DecisionEvent) {
	t.Helper()

	recorded := make(chan audit.DecisionEvent, 10)
	auditService := new(mock.MockAuditService)
	auditService.On("LogDecision", testify_mock.Anything, testify_mock.Anything).
		Run(func(args testify_mock.Arguments) {
			recorded <- args.Get(1).(audit.DecisionEvent)
		}).
		Return(nil)

	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eventBus.Start(ctx)

	authorizationService := service.NewAuthorizationService(
		resolver,
		loadedManager(t),
		engine.NewEvaluator(16),
		auditService,
		eventBus,
	)

	return authorizationService, auditService, recorded
}

func awaitDecisionEvent(t *testing.T, recorded chan audit.DecisionEvent) audit.DecisionEvent {
	t.Helper()

	select {
	case event := <-recorded:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return audit.DecisionEvent{}
	}
}

func TestAuthorizationService_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("PermitMatch_Allows", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{
				ID:         "alice",
				Attributes: map[string]interface{}{"department": "engineering"},
			}, nil)

		authorizationService, _, recorded := newAuthorizationService(t, resolver)

		decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
			Token:    "good-token",
			Action:   "read",
			Resource: "doc-1",
			StoreID:  "default",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeAllow, decision.Outcome)
		assert.Equal(t, model.ReasonPermitMatched, decision.Reason)
		assert.Equal(t, []string{"permit-engineering"}, decision.MatchedPolicyIDs)

		event := awaitDecisionEvent(t, recorded)
		assert.Equal(t, "alice", event.PrincipalID)
		assert.Equal(t, "read", event.Action)
		assert.Equal(t, "doc-1", event.ResourceID)
		assert.Equal(t, string(model.OutcomeAllow), event.Outcome)
		assert.Equal(t, model.ReasonPermitMatched, event.Reason)
		assert.Equal(t, "default", event.StoreID)
	})

	t.Run("TokenFailures_DenyWithReason", func(t *testing.T) {
		cases := []struct {
			name   string
			err    error
			reason string
		}{
			{"Malformed", verdict_errors.ErrTokenMalformed, model.ReasonTokenMalformed},
			{"SignatureInvalid", verdict_errors.ErrTokenSignatureInvalid, model.ReasonSignatureInvalid},
			{"Expired", verdict_errors.ErrTokenExpired, model.ReasonTokenExpired},
			{"AudienceMismatch", verdict_errors.ErrTokenAudienceMismatch, model.ReasonAudienceMismatch},
			{"IssuerMismatch", verdict_errors.ErrTokenIssuerMismatch, model.ReasonIssuerMismatch},
			{"KeyFetchTimeout", verdict_errors.ErrKeyFetchTimeout, model.ReasonKeyFetchTimeout},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resolver := new(mock.MockIdentityResolver)
				resolver.On("Resolve", testify_mock.Anything, "bad-token").Return(nil, tc.err)

				authorizationService, _, recorded := newAuthorizationService(t, resolver)

				decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
					Token:    "bad-token",
					Action:   "read",
					Resource: "doc-1",
					StoreID:  "default",
				})
				require.NoError(t, err)
				assert.Equal(t, model.OutcomeDeny, decision.Outcome)
				assert.Equal(t, tc.reason, decision.Reason)
				assert.Empty(t, decision.MatchedPolicyIDs)

				event := awaitDecisionEvent(t, recorded)
				assert.Equal(t, tc.reason, event.Reason)
			})
		}
	})

	t.Run("CanceledRequestContext_StillDeliversAuditEvent", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{
				ID:         "alice",
				Attributes: map[string]interface{}{"department": "engineering"},
			}, nil)

		contexts := make(chan context.Context, 10)
		auditService := new(mock.MockAuditService)
		auditService.On("LogDecision", testify_mock.Anything, testify_mock.Anything).
			Run(func(args testify_mock.Arguments) {
				contexts <- args.Get(0).(context.Context)
			}).
			Return(nil)

		eventBus := util.NewEventBus()
		busCtx, cancelBus := context.WithCancel(context.Background())
		defer cancelBus()
		eventBus.Start(busCtx)

		authorizationService := service.NewAuthorizationService(
			resolver, loadedManager(t), engine.NewEvaluator(16), auditService, eventBus)

		// The request context is already canceled when the decision is
		// recorded, as it is once gin has written the response.
		requestCtx, cancelRequest := context.WithCancel(context.Background())
		cancelRequest()

		decision, err := authorizationService.Authorize(requestCtx, service.AuthorizeRequest{
			Token:    "good-token",
			Action:   "read",
			Resource: "doc-1",
			StoreID:  "default",
		})
		require.NoError(t, err)
		require.Equal(t, model.OutcomeAllow, decision.Outcome)

		select {
		case handlerCtx := <-contexts:
			assert.NoError(t, handlerCtx.Err())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for audit event")
		}
	})

	t.Run("PrincipalMismatch_Denies", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{ID: "alice"}, nil)

		authorizationService, _, _ := newAuthorizationService(t, resolver)

		decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
			Token:     "good-token",
			Principal: "bob",
			Action:    "read",
			Resource:  "doc-1",
			StoreID:   "default",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonPrincipalMismatch, decision.Reason)
	})

	t.Run("MatchingPrincipal_Evaluates", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{
				ID:         "alice",
				Attributes: map[string]interface{}{"department": "engineering"},
			}, nil)

		authorizationService, _, _ := newAuthorizationService(t, resolver)

		decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
			Token:     "good-token",
			Principal: "alice",
			Action:    "read",
			Resource:  "doc-1",
			StoreID:   "default",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeAllow, decision.Outcome)
	})

	t.Run("UnknownStore_Denies", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{ID: "alice"}, nil)

		authorizationService, _, _ := newAuthorizationService(t, resolver)

		decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
			Token:    "good-token",
			Action:   "read",
			Resource: "doc-1",
			StoreID:  "missing",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonStoreNotFound, decision.Reason)
	})

	t.Run("NoMatchingPolicy_Denies", func(t *testing.T) {
		resolver := new(mock.MockIdentityResolver)
		resolver.On("Resolve", testify_mock.Anything, "good-token").
			Return(&model.Principal{
				ID:         "carol",
				Attributes: map[string]interface{}{"department": "finance"},
			}, nil)

		authorizationService, _, _ := newAuthorizationService(t, resolver)

		decision, err := authorizationService.Authorize(ctx, service.AuthorizeRequest{
			Token:    "good-token",
			Action:   "read",
			Resource: "doc-1",
			StoreID:  "default",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeDeny, decision.Outcome)
		assert.Equal(t, model.ReasonNoMatchingPolicy, decision.Reason)
	})
}

// flushRecorder observes cache flushes triggered by store replacement events.
type flushRecorder struct {
	flushed chan struct{}
}

func (f *flushRecorder) Evaluate(ctx context.Context, request *model.AccessRequest, snapshot *model.PolicySnapshot) *model.Decision {
	return &model.Decision{Outcome: model.OutcomeDeny, Reason: model.ReasonNoMatchingPolicy, MatchedPolicyIDs: []string{}}
}

func (f *flushRecorder) FlushCache() {
	f.flushed <- struct{}{}
}

func TestAuthorizationService_StoreReplacedFlushesCache(t *testing.T) {
	auditService := new(mock.MockAuditService)
	auditService.On("LogDecision", testify_mock.Anything, testify_mock.Anything).Return(nil)

	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	evaluator := &flushRecorder{flushed: make(chan struct{}, 1)}
	service.NewAuthorizationService(new(mock.MockIdentityResolver), loadedManager(t), evaluator, auditService, eventBus)

	eventBus.Publish(ctx, util.EventPolicyStoreReplaced, &model.PolicySnapshot{
		StoreID: "default",
		Version: "v2",
	})

	select {
	case <-evaluator.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cache flush")
	}
}
