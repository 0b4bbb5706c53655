package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// newEntity prepares an entity for its first write.
func newEntity(entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	if entity == nil {
		return nil, fmt.Errorf("nil entity")
	}
	if entity.TypeName == "" {
		return nil, fmt.Errorf("entity type name is required")
	}
	out := entity.Clone()
	if out.GUID == "" {
		out.GUID = uuid.NewString()
	}
	now := time.Now().UTC()
	out.Version = 1
	out.CreateTime = now
	out.UpdateTime = now
	if out.UpdatedBy == "" {
		out.UpdatedBy = out.CreatedBy
	}
	return out, nil
}

// nextEntity prepares an update of stored with the content of update.
func nextEntity(stored, update *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	if update.Version != stored.Version {
		return nil, fmt.Errorf("%w: entity %s is at version %d, update carries %d",
			interfaces.ErrVersionConflict, stored.GUID, stored.Version, update.Version)
	}
	out := update.Clone()
	out.GUID = stored.GUID
	out.CreatedBy = stored.CreatedBy
	out.CreateTime = stored.CreateTime
	out.Version = stored.Version + 1
	out.UpdateTime = time.Now().UTC()
	return out, nil
}

func newRelationship(rel *interfaces.Relationship) (*interfaces.Relationship, error) {
	if rel == nil {
		return nil, fmt.Errorf("nil relationship")
	}
	if rel.TypeName == "" {
		return nil, fmt.Errorf("relationship type name is required")
	}
	if rel.End1.GUID == "" || rel.End2.GUID == "" {
		return nil, fmt.Errorf("relationship ends are required")
	}
	out := rel.Clone()
	if out.GUID == "" {
		out.GUID = uuid.NewString()
	}
	now := time.Now().UTC()
	out.Version = 1
	out.CreateTime = now
	out.UpdateTime = now
	if out.UpdatedBy == "" {
		out.UpdatedBy = out.CreatedBy
	}
	return out, nil
}

func nextRelationship(stored, update *interfaces.Relationship) (*interfaces.Relationship, error) {
	if update.Version != stored.Version {
		return nil, fmt.Errorf("%w: relationship %s is at version %d, update carries %d",
			interfaces.ErrVersionConflict, stored.GUID, stored.Version, update.Version)
	}
	out := update.Clone()
	out.GUID = stored.GUID
	out.End1 = stored.End1
	out.End2 = stored.End2
	out.CreatedBy = stored.CreatedBy
	out.CreateTime = stored.CreateTime
	out.Version = stored.Version + 1
	out.UpdateTime = time.Now().UTC()
	return out, nil
}

// sortEntities orders entities oldest first.
func sortEntities(entities []*interfaces.EntityDetail) {
	sort.SliceStable(entities, func(i, j int) bool {
		if !entities[i].CreateTime.Equal(entities[j].CreateTime) {
			return entities[i].CreateTime.Before(entities[j].CreateTime)
		}
		return entities[i].GUID < entities[j].GUID
	})
}

// sortRelationships orders relationships oldest first.
func sortRelationships(relationships []*interfaces.Relationship) {
	sort.SliceStable(relationships, func(i, j int) bool {
		if !relationships[i].CreateTime.Equal(relationships[j].CreateTime) {
			return relationships[i].CreateTime.Before(relationships[j].CreateTime)
		}
		return relationships[i].GUID < relationships[j].GUID
	})
}

func encodeEntity(entity *interfaces.EntityDetail) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity %s: %w", entity.GUID, err)
	}
	return data, nil
}

func decodeEntity(data []byte) (*interfaces.EntityDetail, error) {
	var entity interfaces.EntityDetail
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	return &entity, nil
}

func encodeRelationship(rel *interfaces.Relationship) ([]byte, error) {
	data, err := json.Marshal(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relationship %s: %w", rel.GUID, err)
	}
	return data, nil
}

func decodeRelationship(data []byte) (*interfaces.Relationship, error) {
	var rel interfaces.Relationship
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to decode relationship: %w", err)
	}
	return &rel, nil
}

// roundTrip gives in-process backends the same value shapes persistent ones
// return.
func roundTripEntity(entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	data, err := encodeEntity(entity)
	if err != nil {
		return nil, err
	}
	return decodeEntity(data)
}

func roundTripRelationship(rel *interfaces.Relationship) (*interfaces.Relationship, error) {
	data, err := encodeRelationship(rel)
	if err != nil {
		return nil, err
	}
	return decodeRelationship(data)
}
