package handlers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/ruteri/metadata-governance-backend/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRepositoryHandler_CreateAndGet(t *testing.T) {
	h, _ := newTestRepositoryHandler(t)
	ctx := context.Background()

	created := createEntity(t, h, testCaller, interfaces.HostTypeName, "host-1")
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, testCaller.UserID, created.CreatedBy)

	got, err := h.GetEntity(ctx, testCaller, created.GUID, "guid", interfaces.ITInfrastructureTypeName, "test")
	require.NoError(t, err)
	assert.Equal(t, "host-1", got.Properties.GetString(interfaces.QualifiedNameProperty))

	_, err = h.GetEntity(ctx, testCaller, created.GUID, "guid", interfaces.ProjectTypeName, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = h.GetEntity(ctx, testCaller, "", "guid", "", "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = h.CreateEntity(ctx, testCaller, interfaces.AssetTypeName, EntitySpec{TypeName: interfaces.ProjectTypeName}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = h.CreateEntity(ctx, testCaller, "", EntitySpec{TypeName: "NoSuchType"}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestRepositoryHandler_UpdateSkipsUnchanged(t *testing.T) {
	h, counter := newTestRepositoryHandler(t)
	ctx := context.Background()
	entity := createEntity(t, h, testCaller, interfaces.ProjectTypeName, "project-1")

	writes := counter.writes.Load()
	_, changed, err := h.UpdateEntity(ctx, testCaller, entity.GUID, "guid", "", EntityUpdate{
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.QualifiedNameProperty, "project-1"),
		Merge:      true,
	}, "test")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, writes, counter.writes.Load())

	updated, changed, err := h.UpdateEntity(ctx, testCaller, entity.GUID, "guid", "", EntityUpdate{
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.DescriptionProperty, "first"),
		Merge:      true,
	}, "test")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "project-1", updated.Properties.GetString(interfaces.QualifiedNameProperty))
	assert.Equal(t, "first", updated.Properties.GetString(interfaces.DescriptionProperty))

	replaced, _, err := h.UpdateEntity(ctx, testCaller, entity.GUID, "guid", "", EntityUpdate{
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.QualifiedNameProperty, "project-2"),
	}, "test")
	require.NoError(t, err)
	assert.False(t, replaced.Properties.Has(interfaces.DescriptionProperty))
}

func TestRepositoryHandler_ZoneVisibility(t *testing.T) {
	repo := repository.NewMemoryRepository(slog.Default())
	h := NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default())
	ctx := context.Background()

	finance := interfaces.NewCaller("alice", interfaces.ZoneConfig{
		SupportedZones: []string{"finance"},
		DefaultZones:   []string{"finance"},
	})
	research := interfaces.NewCaller("bob", interfaces.ZoneConfig{
		SupportedZones: []string{"research"},
		DefaultZones:   []string{"research"},
	})

	ledger := createEntity(t, h, finance, interfaces.DatabaseTypeName, "ledger")
	assert.Equal(t, []string{"finance"}, ledger.Properties.GetStringSlice(interfaces.ZoneMembershipProperty))
	project := createEntity(t, h, finance, interfaces.ProjectTypeName, "audit-2024")
	assert.False(t, project.Properties.Has(interfaces.ZoneMembershipProperty))

	_, err := h.GetEntity(ctx, research, ledger.GUID, "guid", "", "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	_, err = h.GetEntity(ctx, research, project.GUID, "guid", "", "test")
	assert.NoError(t, err)

	found, err := h.GetEntitiesByType(ctx, research, interfaces.AssetTypeName, interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = h.GetEntitiesByType(ctx, finance, interfaces.AssetTypeName, interfaces.Paging{}, "test")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ledger.GUID, found[0].GUID)

	_, err = h.LinkElements(ctx, research, Link{
		TypeName: interfaces.ProjectScopeTypeName,
		End1GUID: project.GUID,
		End2GUID: ledger.GUID,
	}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestRepositoryHandler_SecurityPolicy(t *testing.T) {
	repo := repository.NewMemoryRepository(slog.Default())
	verifier := security.NewZoneSecurityVerifier(security.Policy{
		ReadOnlyUsers: []string{"reader"},
		ZoneWriters:   map[string][]string{"restricted": {"owner"}},
	}, slog.Default())
	h := NewRepositoryHandler(repo, nil, verifier, nil, testMaxPageSize, slog.Default())
	ctx := context.Background()

	reader := interfaces.NewCaller("reader", interfaces.ZoneConfig{})
	_, err := h.CreateEntity(ctx, reader, "", EntitySpec{TypeName: interfaces.ProjectTypeName}, "test")
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)

	owner := interfaces.NewCaller("owner", interfaces.ZoneConfig{DefaultZones: []string{"restricted"}})
	host := createEntity(t, h, owner, interfaces.HostTypeName, "host-1")

	other := interfaces.NewCaller("mallory", interfaces.ZoneConfig{})
	_, _, err = h.UpdateEntity(ctx, other, host.GUID, "guid", "", EntityUpdate{
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.DescriptionProperty, "mine now"),
		Merge:      true,
	}, "test")
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)
	assert.ErrorIs(t, h.DeleteEntity(ctx, other, host.GUID, "guid", "", "test"), interfaces.ErrUserNotAuthorized)
	assert.NoError(t, h.DeleteEntity(ctx, owner, host.GUID, "guid", "", "test"))
}

func TestRepositoryHandler_Effectivity(t *testing.T) {
	h, _ := newTestRepositoryHandler(t)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	future, err := h.CreateEntity(ctx, testCaller, "", EntitySpec{
		TypeName:    interfaces.ProjectTypeName,
		Properties:  interfaces.NewInstanceProperties().SetString(interfaces.QualifiedNameProperty, "next-quarter"),
		Effectivity: interfaces.Effectivity{EffectiveFrom: &start},
	}, "test")
	require.NoError(t, err)

	_, err = h.GetEntity(ctx, testCaller, future.GUID, "guid", "", "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = h.GetEntity(ctx, testCaller.AsOf(start.Add(time.Minute)), future.GUID, "guid", "", "test")
	assert.NoError(t, err)
}

func TestRepositoryHandler_LinkUpdatesSingleLink(t *testing.T) {
	h, counter := newTestRepositoryHandler(t)
	ctx := context.Background()
	project := createEntity(t, h, testCaller, interfaces.ProjectTypeName, "p")
	dependency := createEntity(t, h, testCaller, interfaces.ProjectTypeName, "q")

	link := Link{
		TypeName:   interfaces.ProjectDependencyTypeName,
		End1GUID:   project.GUID,
		End2GUID:   dependency.GUID,
		Properties: interfaces.NewInstanceProperties().SetString(interfaces.DependencySummaryProperty, "needs q"),
	}
	first, err := h.LinkElements(ctx, testCaller, link, "test")
	require.NoError(t, err)

	writes := counter.writes.Load()
	same, err := h.LinkElements(ctx, testCaller, link, "test")
	require.NoError(t, err)
	assert.Equal(t, first.GUID, same.GUID)
	assert.Equal(t, writes, counter.writes.Load())

	link.Properties = interfaces.NewInstanceProperties().SetString(interfaces.DependencySummaryProperty, "blocked on q")
	updated, err := h.LinkElements(ctx, testCaller, link, "test")
	require.NoError(t, err)
	assert.Equal(t, first.GUID, updated.GUID)
	assert.Equal(t, "blocked on q", updated.Properties.GetString(interfaces.DependencySummaryProperty))

	rels, err := h.GetRelationshipsBetween(ctx, testCaller, interfaces.ProjectDependencyTypeName, project.GUID, dependency.GUID, "test")
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	require.NoError(t, h.UnlinkElements(ctx, testCaller, interfaces.ProjectDependencyTypeName, project.GUID, dependency.GUID, "test"))
	rels, err = h.GetRelationshipsBetween(ctx, testCaller, interfaces.ProjectDependencyTypeName, project.GUID, dependency.GUID, "test")
	require.NoError(t, err)
	assert.Empty(t, rels)

	// Unlinking again is not an error.
	assert.NoError(t, h.UnlinkElements(ctx, testCaller, interfaces.ProjectDependencyTypeName, project.GUID, dependency.GUID, "test"))
}

func TestRepositoryHandler_LinkValidatesEnds(t *testing.T) {
	h, _ := newTestRepositoryHandler(t)
	ctx := context.Background()
	project := createEntity(t, h, testCaller, interfaces.ProjectTypeName, "p")
	zone := createEntity(t, h, testCaller, interfaces.GovernanceZoneTypeName, "z")

	_, err := h.LinkElements(ctx, testCaller, Link{
		TypeName: interfaces.ProjectHierarchyTypeName,
		End1GUID: project.GUID,
		End2GUID: zone.GUID,
	}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = h.LinkElements(ctx, testCaller, Link{
		TypeName: "NoSuchRelationship",
		End1GUID: project.GUID,
		End2GUID: zone.GUID,
	}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestRepositoryHandler_Find(t *testing.T) {
	h, _ := newTestRepositoryHandler(t)
	ctx := context.Background()
	createEntity(t, h, testCaller, interfaces.ProjectTypeName, "alpha-project")
	createEntity(t, h, testCaller, interfaces.ProjectTypeName, "beta-project")
	createEntity(t, h, testCaller, interfaces.LocationTypeName, "alpha-site")

	found, err := h.FindEntities(ctx, testCaller, "alpha.*", "", interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = h.FindEntities(ctx, testCaller, "alpha", interfaces.ProjectTypeName, interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Empty(t, found, "search strings match whole values")

	found, err = h.FindEntities(ctx, testCaller, ".*-project", interfaces.ProjectTypeName, interfaces.Paging{PageSize: 1}, "test")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = h.FindEntities(ctx, testCaller, "(", "", interfaces.Paging{}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	_, err = h.FindEntities(ctx, testCaller, "", "", interfaces.Paging{}, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	byName, err := h.GetEntitiesByName(ctx, testCaller, "beta-project", interfaces.ProjectTypeName, interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	byValue, err := h.GetEntitiesByPropertyValue(ctx, testCaller, interfaces.LocationTypeName, interfaces.QualifiedNameProperty, "alpha-site", interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Len(t, byValue, 1)
}

func TestRepositoryHandler_Classifications(t *testing.T) {
	h, counter := newTestRepositoryHandler(t)
	ctx := context.Background()
	site := createEntity(t, h, testCaller, interfaces.LocationTypeName, "site")
	props := interfaces.NewInstanceProperties().SetString(interfaces.NetworkAddressProperty, "10.0.0.1")

	classified, err := h.SetClassification(ctx, testCaller, site.GUID, "guid", "", interfaces.CyberLocationClassification, props, "test")
	require.NoError(t, err)
	require.NotNil(t, classified.Classification(interfaces.CyberLocationClassification))

	writes := counter.writes.Load()
	_, err = h.SetClassification(ctx, testCaller, site.GUID, "guid", "", interfaces.CyberLocationClassification, props, "test")
	require.NoError(t, err)
	assert.Equal(t, writes, counter.writes.Load())

	byClassification, err := h.GetEntitiesByClassification(ctx, testCaller, interfaces.LocationTypeName, interfaces.CyberLocationClassification, interfaces.Paging{}, "test")
	require.NoError(t, err)
	assert.Len(t, byClassification, 1)

	_, err = h.SetClassification(ctx, testCaller, site.GUID, "guid", "", interfaces.TaskClassification, nil, "test")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	declassified, err := h.RemoveClassification(ctx, testCaller, site.GUID, "guid", "", interfaces.CyberLocationClassification, "test")
	require.NoError(t, err)
	assert.Nil(t, declassified.Classification(interfaces.CyberLocationClassification))
}

func TestRepositoryHandler_UntypedRelationship(t *testing.T) {
	repo := new(mockRepository)
	h := NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default())
	project := &interfaces.EntityDetail{GUID: "p", TypeName: interfaces.ProjectTypeName}
	repo.On("GetEntity", mock.Anything, "p").Return(project, nil)
	repo.On("GetRelationshipsForEntity", mock.Anything, "p", interfaces.ProjectHierarchyTypeName).
		Return([]*interfaces.Relationship{{GUID: "r"}}, nil)

	_, err := h.GetRelatedEntities(context.Background(), testCaller, RelatedQuery{
		GUID:              "p",
		GUIDParameterName: "guid",
		RelationshipType:  interfaces.ProjectHierarchyTypeName,
		RelatedEnd:        2,
	}, interfaces.Paging{}, "test")
	assert.ErrorIs(t, err, interfaces.ErrPropertyServer)
	repo.AssertExpectations(t)
}
