package handlers

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const testMaxPageSize = 50

var testCaller = interfaces.NewCaller("tester", interfaces.ZoneConfig{})

// countingRepository counts the writes that reach the wrapped repository.
type countingRepository struct {
	interfaces.MetadataRepository
	writes atomic.Int64
}

func (c *countingRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	c.writes.Inc()
	return c.MetadataRepository.CreateEntity(ctx, entity)
}

func (c *countingRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	c.writes.Inc()
	return c.MetadataRepository.FindOrCreateEntity(ctx, uniqueKey, entity)
}

func (c *countingRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	c.writes.Inc()
	return c.MetadataRepository.UpdateEntity(ctx, entity)
}

func (c *countingRepository) DeleteEntity(ctx context.Context, guid string) error {
	c.writes.Inc()
	return c.MetadataRepository.DeleteEntity(ctx, guid)
}

func (c *countingRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	c.writes.Inc()
	return c.MetadataRepository.CreateRelationship(ctx, relationship)
}

func (c *countingRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	c.writes.Inc()
	return c.MetadataRepository.FindOrCreateRelationship(ctx, uniqueKey, relationship)
}

func (c *countingRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	c.writes.Inc()
	return c.MetadataRepository.UpdateRelationship(ctx, relationship)
}

func (c *countingRepository) DeleteRelationship(ctx context.Context, guid string) error {
	c.writes.Inc()
	return c.MetadataRepository.DeleteRelationship(ctx, guid)
}

func newTestRepositoryHandler(t *testing.T) (*RepositoryHandler, *countingRepository) {
	t.Helper()
	repo := &countingRepository{MetadataRepository: repository.NewMemoryRepository(slog.Default())}
	return NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()), repo
}

// createEntity stores an entity of typeName with the given qualified name.
func createEntity(t *testing.T, h *RepositoryHandler, caller interfaces.Caller, typeName, qualifiedName string) *interfaces.EntityDetail {
	t.Helper()
	entity, err := h.CreateEntity(context.Background(), caller, "", EntitySpec{
		TypeName:   typeName,
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.QualifiedNameProperty, qualifiedName),
	}, "test")
	require.NoError(t, err)
	return entity
}

// mockRepository is a testify mock of interfaces.MetadataRepository.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	args := m.Called(ctx, entity)
	out, _ := args.Get(0).(*interfaces.EntityDetail)
	return out, args.Error(1)
}

func (m *mockRepository) FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, bool, error) {
	args := m.Called(ctx, uniqueKey, entity)
	out, _ := args.Get(0).(*interfaces.EntityDetail)
	return out, args.Bool(1), args.Error(2)
}

func (m *mockRepository) GetEntity(ctx context.Context, guid string) (*interfaces.EntityDetail, error) {
	args := m.Called(ctx, guid)
	out, _ := args.Get(0).(*interfaces.EntityDetail)
	return out, args.Error(1)
}

func (m *mockRepository) UpdateEntity(ctx context.Context, entity *interfaces.EntityDetail) (*interfaces.EntityDetail, error) {
	args := m.Called(ctx, entity)
	out, _ := args.Get(0).(*interfaces.EntityDetail)
	return out, args.Error(1)
}

func (m *mockRepository) DeleteEntity(ctx context.Context, guid string) error {
	return m.Called(ctx, guid).Error(0)
}

func (m *mockRepository) FindEntities(ctx context.Context, search interfaces.EntitySearch) ([]*interfaces.EntityDetail, error) {
	args := m.Called(ctx, search)
	out, _ := args.Get(0).([]*interfaces.EntityDetail)
	return out, args.Error(1)
}

func (m *mockRepository) CreateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	args := m.Called(ctx, relationship)
	out, _ := args.Get(0).(*interfaces.Relationship)
	return out, args.Error(1)
}

func (m *mockRepository) FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *interfaces.Relationship) (*interfaces.Relationship, bool, error) {
	args := m.Called(ctx, uniqueKey, relationship)
	out, _ := args.Get(0).(*interfaces.Relationship)
	return out, args.Bool(1), args.Error(2)
}

func (m *mockRepository) GetRelationship(ctx context.Context, guid string) (*interfaces.Relationship, error) {
	args := m.Called(ctx, guid)
	out, _ := args.Get(0).(*interfaces.Relationship)
	return out, args.Error(1)
}

func (m *mockRepository) UpdateRelationship(ctx context.Context, relationship *interfaces.Relationship) (*interfaces.Relationship, error) {
	args := m.Called(ctx, relationship)
	out, _ := args.Get(0).(*interfaces.Relationship)
	return out, args.Error(1)
}

func (m *mockRepository) DeleteRelationship(ctx context.Context, guid string) error {
	return m.Called(ctx, guid).Error(0)
}

func (m *mockRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	args := m.Called(ctx, entityGUID, typeName)
	out, _ := args.Get(0).([]*interfaces.Relationship)
	return out, args.Error(1)
}

func (m *mockRepository) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockRepository) Name() string {
	return "mock"
}

func (m *mockRepository) LocationURI() string {
	return "memory://mock"
}

func (m *mockRepository) Close() error {
	return nil
}
