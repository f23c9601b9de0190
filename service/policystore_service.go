// service/policystore_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	verdict_errors "github.com/verdictd/verdict/errors"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
	"github.com/verdictd/verdict/store"
	"github.com/verdictd/verdict/util"
)

type IPolicyStoreService interface {
	GetSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error)
	GetSchema(ctx context.Context, storeID string) (*model.Schema, error)
	ReplaceSnapshot(ctx context.Context, storeID string, policies []model.Policy, schema model.Schema) (*model.PolicySnapshot, error)
	StoreIDs() []string
}

// SnapshotPersister stores snapshots durably.
type SnapshotPersister interface {
	SaveSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error
	LoadSnapshots(ctx context.Context) ([]*model.PolicySnapshot, error)
}

// SnapshotCache is the shared cache other instances warm from.
type SnapshotCache interface {
	CacheSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error
	GetCachedSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error)
	DeleteCachedSnapshot(ctx context.Context, storeID string) error
}

// PolicyStoreService handles business logic for policy store operations
type PolicyStoreService struct {
	persister      SnapshotPersister
	cache          SnapshotCache
	manager        *store.Manager
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

// NewPolicyStoreService creates a new instance of PolicyStoreService
func NewPolicyStoreService(persister SnapshotPersister, cache SnapshotCache, manager *store.Manager, validationUtil *util.ValidationUtil, eventBus *util.EventBus) *PolicyStoreService {
	return &PolicyStoreService{
		persister:      persister,
		cache:          cache,
		manager:        manager,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}
}

// LoadPersisted populates the in-memory store manager from durable storage
// and warms the shared snapshot cache. Called once at boot, before the
// HTTP server starts serving.
func (s *PolicyStoreService) LoadPersisted(ctx context.Context) error {
	snapshots, err := s.persister.LoadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted snapshots: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, snapshot := range snapshots {
		snapshot := snapshot
		s.manager.Install(snapshot)
		logger.Info("Loaded policy store snapshot",
			zap.String("storeID", snapshot.StoreID),
			zap.String("version", snapshot.Version),
			zap.Int("policyCount", len(snapshot.Policies)))

		g.Go(func() error {
			if err := s.cache.CacheSnapshot(gctx, snapshot); err != nil {
				logger.Warn("Failed to warm snapshot cache",
					zap.Error(err),
					zap.String("storeID", snapshot.StoreID))
			}
			return nil
		})
	}

	return g.Wait()
}

// GetSnapshot serves from the in-memory manager, falling back to the shared
// snapshot cache for stores another instance replaced since this one booted.
func (s *PolicyStoreService) GetSnapshot(ctx context.Context, storeID string) (*model.PolicySnapshot, error) {
	snapshot, err := s.manager.GetSnapshot(storeID)
	if err == nil {
		return snapshot, nil
	}

	cached, cacheErr := s.cache.GetCachedSnapshot(ctx, storeID)
	if cacheErr != nil {
		logger.Warn("Dropping unreadable cached snapshot",
			zap.Error(cacheErr),
			zap.String("storeID", storeID))
		if delErr := s.cache.DeleteCachedSnapshot(ctx, storeID); delErr != nil {
			logger.Error("Failed to drop cached snapshot", zap.Error(delErr), zap.String("storeID", storeID))
		}
		return nil, err
	}
	if cached == nil {
		return nil, err
	}

	s.manager.Install(cached)
	return cached, nil
}

func (s *PolicyStoreService) GetSchema(ctx context.Context, storeID string) (*model.Schema, error) {
	return s.manager.GetSchema(storeID)
}

func (s *PolicyStoreService) StoreIDs() []string {
	return s.manager.StoreIDs()
}

// ReplaceSnapshot validates the new snapshot, persists it durably, and only
// then installs it and notifies subscribers. A snapshot that failed to
// persist never serves authorization traffic, so a restart cannot silently
// revert the live policy set.
func (s *PolicyStoreService) ReplaceSnapshot(ctx context.Context, storeID string, policies []model.Policy, schema model.Schema) (*model.PolicySnapshot, error) {
	if err := s.validationUtil.ValidateSnapshotRequest(policies, schema); err != nil {
		return nil, fmt.Errorf("%w: %v", verdict_errors.ErrInvalidPolicyData, err)
	}

	snapshot, err := store.NewSnapshot(storeID, policies, schema)
	if err != nil {
		return nil, err
	}

	if err := s.persister.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	s.manager.Install(snapshot)
	logger.Info("Policy store snapshot replaced",
		zap.String("storeID", storeID),
		zap.String("version", snapshot.Version),
		zap.Int("policyCount", len(policies)))

	if err := s.cache.CacheSnapshot(ctx, snapshot); err != nil {
		// Cache refresh is best effort; durable persistence is not.
		logger.Warn("Failed to refresh snapshot cache",
			zap.Error(err),
			zap.String("storeID", storeID))
	}

	s.eventBus.Publish(context.WithoutCancel(ctx), util.EventPolicyStoreReplaced, snapshot)

	return snapshot, nil
}
