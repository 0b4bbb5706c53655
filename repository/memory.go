package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// MemoryRepository keeps the metadata repository in process memory. Instances
// are held in their encoded form so callers never share state with the store.
// It is meant for tests and local development.
type MemoryRepository struct {
	mu            sync.RWMutex
	entities      map[string][]byte
	relationships map[string][]byte
	adjacency     map[string]map[string]struct{} // entity GUID -> relationship GUIDs
	uniqueKeys    map[string]string              // unique key -> entity GUID
	entityKeys    map[string]string              // entity GUID -> unique key
	relUniqueKeys map[string]string              // unique key -> relationship GUID
	relKeys       map[string]string              // relationship GUID -> unique key
	log           *slog.Logger
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(log *slog.Logger) *MemoryRepository {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryRepository{
		entities:      make(map[string][]byte),
		relationships: make(map[string][]byte),
		adjacency:     make(map[string]map[string]struct{}),
		uniqueKeys:    make(map[string]string),
		entityKeys:    make(map[string]string),
		relUniqueKeys: make(map[string]string),
		relKeys:       make(map[string]string),
		log:           log,
	}
}

// CreateEntity stores a new entity.
func (m *MemoryRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	stored, err := newEntity(entity)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.putEntityLocked(stored, true); err != nil {
		return nil, err
	}
	return roundTripEntity(stored)
}

// FindOrCreateEntity returns the entity registered under uniqueKey or creates it.
func (m *MemoryRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newEntity(entity)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if guid, ok := m.uniqueKeys[uniqueKey]; ok {
		existing, err := m.getEntityLocked(guid)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := m.putEntityLocked(stored, true); err != nil {
		return nil, false, err
	}
	m.uniqueKeys[uniqueKey] = stored.GUID
	m.entityKeys[stored.GUID] = uniqueKey

	m.log.Debug("Registered unique entity",
		slog.String("key", uniqueKey),
		slog.String("guid", stored.GUID))

	created, err := roundTripEntity(stored)
	return created, true, err
}

// GetEntity returns the entity with the given GUID.
func (m *MemoryRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntityLocked(guid)
}

// UpdateEntity replaces the stored entity when the versions match.
func (m *MemoryRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.getEntityLocked(entity.GUID)
	if err != nil {
		return nil, err
	}
	next, err := nextEntity(stored, entity)
	if err != nil {
		return nil, err
	}
	if err := m.putEntityLocked(next, false); err != nil {
		return nil, err
	}
	return roundTripEntity(next)
}

// DeleteEntity removes the entity and every relationship attached to it.
func (m *MemoryRepository) DeleteEntity(ctx context.Context, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[guid]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
	}

	for relGUID := range m.adjacency[guid] {
		m.deleteRelationshipLocked(relGUID)
	}
	delete(m.adjacency, guid)
	delete(m.entities, guid)
	if key, ok := m.entityKeys[guid]; ok {
		delete(m.uniqueKeys, key)
		delete(m.entityKeys, guid)
	}
	return nil
}

// FindEntities returns the entities matching search, oldest first.
func (m *MemoryRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*interfaces.EntityDetail
	for _, data := range m.entities {
		entity, err := decodeEntity(data)
		if err != nil {
			return nil, err
		}
		if search.Matches(entity) {
			out = append(out, entity)
		}
	}
	sortEntities(out)
	return out, nil
}

// CreateRelationship stores a new relationship between two stored entities.
func (m *MemoryRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putRelationshipLocked(stored)
}

// FindOrCreateRelationship returns the relationship registered under
// uniqueKey or creates it.
func (m *MemoryRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	if uniqueKey == "" {
		return nil, false, fmt.Errorf("unique key is required")
	}
	stored, err := newRelationship(relationship)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if guid, ok := m.relUniqueKeys[uniqueKey]; ok {
		existing, err := m.getRelationshipLocked(guid)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	created, err := m.putRelationshipLocked(stored)
	if err != nil {
		return nil, false, err
	}
	m.relUniqueKeys[uniqueKey] = stored.GUID
	m.relKeys[stored.GUID] = uniqueKey
	return created, true, nil
}

// GetRelationship returns the relationship with the given GUID.
func (m *MemoryRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRelationshipLocked(guid)
}

// UpdateRelationship replaces the stored relationship when the versions match.
func (m *MemoryRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.getRelationshipLocked(relationship.GUID)
	if err != nil {
		return nil, err
	}
	next, err := nextRelationship(stored, relationship)
	if err != nil {
		return nil, err
	}
	data, err := encodeRelationship(next)
	if err != nil {
		return nil, err
	}
	m.relationships[next.GUID] = data
	return decodeRelationship(data)
}

// DeleteRelationship removes the relationship.
func (m *MemoryRepository) DeleteRelationship(ctx context.Context, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.relationships[guid]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
	}
	m.deleteRelationshipLocked(guid)
	return nil
}

// GetRelationshipsForEntity returns the relationships attached to an entity.
func (m *MemoryRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*interfaces.Relationship
	for relGUID := range m.adjacency[entityGUID] {
		rel, err := m.getRelationshipLocked(relGUID)
		if err != nil {
			return nil, err
		}
		if typeName == "" || rel.TypeName == typeName {
			out = append(out, rel)
		}
	}
	sortRelationships(out)
	return out, nil
}

// Available always reports true.
func (m *MemoryRepository) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this repository.
func (m *MemoryRepository) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this repository.
func (m *MemoryRepository) LocationURI() string {
	return "memory://"
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}

func (m *MemoryRepository) getEntityLocked(guid string) (*interfaces.EntityDetail, error) {
	data, ok := m.entities[guid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrEntityNotFound, guid)
	}
	return decodeEntity(data)
}

func (m *MemoryRepository) putEntityLocked(entity *interfaces.EntityDetail, create bool) error {
	if _, exists := m.entities[entity.GUID]; exists && create {
		return fmt.Errorf("entity %s already exists", entity.GUID)
	}
	data, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	m.entities[entity.GUID] = data
	return nil
}

func (m *MemoryRepository) getRelationshipLocked(guid string) (*interfaces.Relationship, error) {
	data, ok := m.relationships[guid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, guid)
	}
	return decodeRelationship(data)
}

func (m *MemoryRepository) putRelationshipLocked(stored *interfaces.Relationship) (*interfaces.Relationship, error) {
	for _, end := range []string{stored.End1.GUID, stored.End2.GUID} {
		if _, ok := m.entities[end]; !ok {
			return nil, fmt.Errorf("%w: relationship end %s", interfaces.ErrEntityNotFound, end)
		}
	}
	if _, exists := m.relationships[stored.GUID]; exists {
		return nil, fmt.Errorf("relationship %s already exists", stored.GUID)
	}

	data, err := encodeRelationship(stored)
	if err != nil {
		return nil, err
	}
	m.relationships[stored.GUID] = data
	m.link(stored.End1.GUID, stored.GUID)
	m.link(stored.End2.GUID, stored.GUID)
	return decodeRelationship(data)
}

func (m *MemoryRepository) deleteRelationshipLocked(guid string) {
	rel, err := m.getRelationshipLocked(guid)
	if err == nil {
		delete(m.adjacency[rel.End1.GUID], guid)
		delete(m.adjacency[rel.End2.GUID], guid)
	}
	delete(m.relationships, guid)
	if key, ok := m.relKeys[guid]; ok {
		delete(m.relUniqueKeys, key)
		delete(m.relKeys, guid)
	}
}

func (m *MemoryRepository) link(entityGUID, relGUID string) {
	rels, ok := m.adjacency[entityGUID]
	if !ok {
		rels = make(map[string]struct{})
		m.adjacency[entityGUID] = rels
	}
	rels[relGUID] = struct{}{}
}
