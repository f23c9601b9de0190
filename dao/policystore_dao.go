// dao/policystore_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	verdict_errors "github.com/verdictd/verdict/errors"
	logger "github.com/verdictd/verdict/logging"
	"github.com/verdictd/verdict/model"
)

// PolicyStoreDAO persists policy-store snapshots durably. One node per
// store; a save replaces the node's whole snapshot, matching the store
// manager's atomic-replace semantics.
type PolicyStoreDAO struct {
	Driver neo4j.Driver
}

func NewPolicyStoreDAO(driver neo4j.Driver) *PolicyStoreDAO {
	dao := &PolicyStoreDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the store ID
func (dao *PolicyStoreDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on policy store ID")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_policy_store_id IF NOT EXISTS
        FOR (s:POLICY_STORE) REQUIRE s.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			logger.Error("Failed to create unique constraint", zap.Error(err))
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraint on policy store ID", zap.Error(err))
		return err
	}

	logger.Info("Successfully ensured unique constraint on policy store ID")
	return nil
}

// SaveSnapshot writes one store's snapshot. Policies and schema are stored
// as JSON documents on the node.
func (dao *PolicyStoreDAO) SaveSnapshot(ctx context.Context, snapshot *model.PolicySnapshot) error {
	start := time.Now()
	logger.Info("Persisting policy store snapshot",
		zap.String("storeID", snapshot.StoreID),
		zap.String("version", snapshot.Version))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	policiesJSON, err := json.Marshal(snapshot.Policies)
	if err != nil {
		return fmt.Errorf("failed to marshal policies: %w", err)
	}

	schemaJSON, err := json.Marshal(snapshot.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (s:POLICY_STORE {id: $id})
        SET s.version = $version,
            s.lastModified = $lastModified,
            s.policies = $policies,
            s.schema = $schema
        RETURN s.id as id
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"id":           snapshot.StoreID,
			"version":      snapshot.Version,
			"lastModified": snapshot.LastModified.Format(time.RFC3339Nano),
			"policies":     string(policiesJSON),
			"schema":       string(schemaJSON),
		})
		if err != nil {
			return nil, verdict_errors.ErrDatabaseOperation
		}
		if !result.Next() {
			return nil, verdict_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to persist snapshot",
			zap.Error(err),
			zap.String("storeID", snapshot.StoreID))
		return err
	}

	logger.Info("Snapshot persisted",
		zap.String("storeID", snapshot.StoreID),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// LoadSnapshots reads every persisted store snapshot, for boot-time
// population of the store manager.
func (dao *PolicyStoreDAO) LoadSnapshots(ctx context.Context) ([]*model.PolicySnapshot, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (s:POLICY_STORE)
        RETURN s.id as id, s.version as version, s.lastModified as lastModified,
               s.policies as policies, s.schema as schema
        `
		records, err := transaction.Run(query, nil)
		if err != nil {
			return nil, verdict_errors.ErrDatabaseOperation
		}

		var snapshots []*model.PolicySnapshot
		for records.Next() {
			record := records.Record()
			snapshot, err := snapshotFromRecord(record)
			if err != nil {
				logger.Error("Skipping unreadable policy store record", zap.Error(err))
				continue
			}
			snapshots = append(snapshots, snapshot)
		}
		return snapshots, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load policy store snapshots: %w", err)
	}

	return result.([]*model.PolicySnapshot), nil
}

func snapshotFromRecord(record *neo4j.Record) (*model.PolicySnapshot, error) {
	id, _ := record.Get("id")
	version, _ := record.Get("version")
	lastModified, _ := record.Get("lastModified")
	policiesJSON, _ := record.Get("policies")
	schemaJSON, _ := record.Get("schema")

	storeID, ok := id.(string)
	if !ok {
		return nil, fmt.Errorf("policy store record has no id")
	}

	storeVersion, ok := version.(string)
	if !ok {
		return nil, fmt.Errorf("policy store %s has no version", storeID)
	}

	snapshot := &model.PolicySnapshot{
		StoreID: storeID,
		Version: storeVersion,
	}

	if s, ok := lastModified.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid lastModified on store %s: %w", snapshot.StoreID, err)
		}
		snapshot.LastModified = t
	}

	if s, ok := policiesJSON.(string); ok {
		if err := json.Unmarshal([]byte(s), &snapshot.Policies); err != nil {
			return nil, fmt.Errorf("invalid policies on store %s: %w", snapshot.StoreID, err)
		}
	}

	if s, ok := schemaJSON.(string); ok {
		if err := json.Unmarshal([]byte(s), &snapshot.Schema); err != nil {
			return nil, fmt.Errorf("invalid schema on store %s: %w", snapshot.StoreID, err)
		}
	}

	return snapshot, nil
}
