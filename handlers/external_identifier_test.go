package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/metrics"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/ruteri/metadata-governance-backend/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type externalIDFixture struct {
	repo    *RepositoryHandler
	counter *countingRepository
	handler *ExternalIdentifierHandler[*beans.ExternalIdentifierElement, *beans.MetadataElement]
	scope   *interfaces.EntityDetail
	element *interfaces.EntityDetail
}

func newExternalIDFixture(t *testing.T) *externalIDFixture {
	t.Helper()
	repo, counter := newTestRepositoryHandler(t)
	return &externalIDFixture{
		repo:    repo,
		counter: counter,
		handler: NewExternalIdentifierHandler(repo, beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default()),
		scope:   createEntity(t, repo, testCaller, interfaces.SoftwareServerTypeName, "crm-server"),
		element: createEntity(t, repo, testCaller, interfaces.DatabaseTypeName, "customers-db"),
	}
}

func (f *externalIDFixture) correlation(element *interfaces.EntityDetail, identifier string) Correlation {
	return Correlation{
		ElementGUID: element.GUID,
		Identifier:  identifier,
		ScopeGUID:   f.scope.GUID,
	}
}

func TestSetUpExternalIdentifier_CreatesAndLinks(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()

	guid, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1"), beans.ExternalIdentifierProperties{
		Usage:                    "primary key",
		PermittedSynchronization: beans.FromThirdParty,
	})
	require.NoError(t, err)
	require.NotEmpty(t, guid)

	externalID, err := f.handler.GetExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, guid, externalID.GUID)
	assert.Equal(t, "CUST-1", externalID.Properties.Identifier)
	assert.Equal(t, beans.LocalKey, externalID.Properties.KeyPattern)
	assert.Equal(t, beans.FromThirdParty, externalID.Properties.PermittedSynchronization)
	require.NotNil(t, externalID.RelatedBy)
	assert.Equal(t, interfaces.ExternalIDScopeTypeName, externalID.RelatedBy.TypeName)

	elements, err := f.handler.GetElementsForExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "CUST-1", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, f.element.GUID, elements[0].GUID)

	forElement, err := f.handler.GetExternalIdentifiersForElement(ctx, testCaller, f.element.GUID, "", "", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, forElement, 1)
	assert.Equal(t, "primary key", forElement[0].Properties.Usage)
}

func TestSetUpExternalIdentifier_RepeatWritesNothing(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	ref := f.correlation(f.element, "CUST-1")
	props := beans.ExternalIdentifierProperties{
		KeyPattern:                beans.NaturalKey,
		ExternalInstanceCreatedBy: "crm-import",
		ExternalInstanceVersion:   3,
		Description:               "customer record",
		MappingProperties:         map[string]string{"table": "customers"},
	}

	first, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, props)
	require.NoError(t, err)
	writes := f.counter.writes.Load()
	unchanged := testutil.ToFloat64(metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUnchanged))

	second, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, props)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, writes, f.counter.writes.Load())
	assert.Equal(t, unchanged+2, testutil.ToFloat64(metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUnchanged)))
}

func TestSetUpExternalIdentifier_UpdatesWhatChanged(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	ref := f.correlation(f.element, "CUST-1")

	_, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{Usage: "v1"})
	require.NoError(t, err)
	writes := f.counter.writes.Load()

	_, err = f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{Usage: "v2"})
	require.NoError(t, err)
	assert.Equal(t, writes+1, f.counter.writes.Load(), "only the element link changes")

	forElement, err := f.handler.GetExternalIdentifiersForElement(ctx, testCaller, f.element.GUID, "", f.scope.GUID, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, forElement, 1)
	assert.Equal(t, "v2", forElement[0].Properties.Usage)
}

func TestSetUpExternalIdentifier_OnePerScope(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	otherScope := createEntity(t, f.repo, testCaller, interfaces.SoftwareServerTypeName, "erp-server")

	inCRM, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "42"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	inERP, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, Correlation{
		ElementGUID: f.element.GUID,
		Identifier:  "42",
		ScopeGUID:   otherScope.GUID,
	}, beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	assert.NotEqual(t, inCRM, inERP)

	all, err := f.handler.GetExternalIdentifiersForElement(ctx, testCaller, f.element.GUID, "", "", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := f.handler.GetExternalIdentifiersForElement(ctx, testCaller, f.element.GUID, "", otherScope.GUID, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, inERP, scoped[0].GUID)
}

func TestSetUpExternalIdentifier_SharedByElements(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	replica := createEntity(t, f.repo, testCaller, interfaces.DatabaseTypeName, "customers-replica")

	first, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	second, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(replica, "CUST-1"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	elements, err := f.handler.GetElementsForExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "CUST-1", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.ElementsMatch(t, []string{f.element.GUID, replica.GUID}, []string{elements[0].GUID, elements[1].GUID})

	forScope, err := f.handler.GetExternalIdentifiersForScope(ctx, testCaller, f.scope.GUID, "", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, forScope, 1)

	entities, err := f.handler.GetElementEntitiesForScope(ctx, testCaller, f.scope.GUID, "", interfaces.DatabaseTypeName, interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

// slowLookupRepository widens the gap between looking for a link and
// creating it.
type slowLookupRepository struct {
	interfaces.MetadataRepository
}

func (s slowLookupRepository) GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*interfaces.Relationship, error) {
	time.Sleep(20 * time.Millisecond)
	return s.MetadataRepository.GetRelationshipsForEntity(ctx, entityGUID, typeName)
}

func TestSetUpExternalIdentifier_Concurrent(t *testing.T) {
	store := repository.NewMemoryRepository(slog.Default())
	repo := NewRepositoryHandler(slowLookupRepository{store}, nil, nil, nil, testMaxPageSize, slog.Default())
	handler := NewExternalIdentifierHandler(repo, beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())
	scope := createEntity(t, repo, testCaller, interfaces.SoftwareServerTypeName, "crm-server")
	element := createEntity(t, repo, testCaller, interfaces.DatabaseTypeName, "customers-db")
	ctx := context.Background()

	ref := Correlation{ElementGUID: element.GUID, Identifier: "CUST-1", ScopeGUID: scope.GUID}
	props := beans.ExternalIdentifierProperties{Usage: "primary key"}

	const callers = 6
	var wg sync.WaitGroup
	guids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			guids[i], errs[i] = handler.SetUpExternalIdentifier(ctx, testCaller, ref, props)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, guids[0], guids[i])
	}

	externalIDs, err := store.FindEntities(ctx, interfaces.EntitySearch{TypeNames: []string{interfaces.ExternalIDTypeName}})
	require.NoError(t, err)
	assert.Len(t, externalIDs, 1)

	links, err := store.GetRelationshipsForEntity(ctx, element.GUID, interfaces.ExternalIDLinkTypeName)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	scopeLinks, err := store.GetRelationshipsForEntity(ctx, scope.GUID, interfaces.ExternalIDScopeTypeName)
	require.NoError(t, err)
	assert.Len(t, scopeLinks, 1)

	elements, err := handler.GetElementsForExternalIdentifier(ctx, testCaller, scope.GUID, "", "CUST-1", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, element.GUID, elements[0].GUID)
}

func TestExternalIdentifier_NotAuthorized(t *testing.T) {
	store := repository.NewMemoryRepository(slog.Default())
	verifier := security.NewZoneSecurityVerifier(security.Policy{
		ReadOnlyUsers: []string{"auditor"},
		ZoneWriters:   map[string][]string{"crm": {"crm-team"}},
	}, slog.Default())
	repo := NewRepositoryHandler(store, nil, verifier, nil, testMaxPageSize, slog.Default())
	handler := NewExternalIdentifierHandler(repo, beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())
	ctx := context.Background()

	crmTeam := interfaces.NewCaller("crm-team", interfaces.ZoneConfig{DefaultZones: []string{"crm"}})
	auditor := interfaces.NewCaller("auditor", interfaces.ZoneConfig{})
	scope := createEntity(t, repo, testCaller, interfaces.SoftwareServerTypeName, "crm-server")
	restrictedScope := createEntity(t, repo, crmTeam, interfaces.SoftwareServerTypeName, "crm-vault")
	element := createEntity(t, repo, testCaller, interfaces.DatabaseTypeName, "customers-db")
	ref := Correlation{ElementGUID: element.GUID, Identifier: "CUST-1", ScopeGUID: scope.GUID}

	_, err := handler.SetUpExternalIdentifier(ctx, auditor, ref, beans.ExternalIdentifierProperties{})
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)

	restrictedRef := ref
	restrictedRef.ScopeGUID = restrictedScope.GUID
	_, err = handler.SetUpExternalIdentifier(ctx, testCaller, restrictedRef, beans.ExternalIdentifierProperties{})
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)

	externalIDs, err := store.FindEntities(ctx, interfaces.EntitySearch{TypeNames: []string{interfaces.ExternalIDTypeName}})
	require.NoError(t, err)
	assert.Empty(t, externalIDs)

	_, err = handler.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
	require.NoError(t, err)

	_, err = handler.ConfirmSynchronization(ctx, auditor, ref)
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)
	_, err = handler.SetUpExternalIdentifier(ctx, crmTeam, restrictedRef, beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	_, err = handler.ConfirmSynchronization(ctx, testCaller, restrictedRef)
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)

	confirmed, err := handler.ConfirmSynchronization(ctx, testCaller, ref)
	require.NoError(t, err)
	assert.False(t, confirmed.Properties.LastSynchronized.IsZero())
}

func TestSetUpExternalIdentifier_InvalidParameters(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		ref   Correlation
		props beans.ExternalIdentifierProperties
	}{
		{"no identifier", Correlation{ElementGUID: f.element.GUID, ScopeGUID: f.scope.GUID}, beans.ExternalIdentifierProperties{}},
		{"identifier mismatch", f.correlation(f.element, "A"), beans.ExternalIdentifierProperties{Identifier: "B"}},
		{"unknown element", Correlation{ElementGUID: "missing", Identifier: "A", ScopeGUID: f.scope.GUID}, beans.ExternalIdentifierProperties{}},
		{"no scope", Correlation{ElementGUID: f.element.GUID, Identifier: "A"}, beans.ExternalIdentifierProperties{}},
		{"bad key pattern", f.correlation(f.element, "A"), beans.ExternalIdentifierProperties{KeyPattern: "ROUND_KEY"}},
		{"wrong element type", Correlation{ElementGUID: f.element.GUID, ElementTypeName: interfaces.ProjectTypeName, Identifier: "A", ScopeGUID: f.scope.GUID}, beans.ExternalIdentifierProperties{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, tt.ref, tt.props)
			assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
		})
	}

	_, err := f.handler.SetUpExternalIdentifier(ctx, interfaces.Caller{}, f.correlation(f.element, "A"), beans.ExternalIdentifierProperties{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestConfirmSynchronization(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	ref := f.correlation(f.element, "CUST-1")
	props := beans.ExternalIdentifierProperties{Usage: "sync"}

	_, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, props)
	require.NoError(t, err)
	before := time.Now().UTC().Add(-time.Millisecond)

	confirmed, err := f.handler.ConfirmSynchronization(ctx, testCaller, ref)
	require.NoError(t, err)
	assert.False(t, confirmed.Properties.LastSynchronized.Before(before))
	require.NotNil(t, confirmed.RelatedBy)
	assert.Equal(t, interfaces.ExternalIDLinkTypeName, confirmed.RelatedBy.TypeName)

	// A repeated set up leaves the synchronization time alone.
	writes := f.counter.writes.Load()
	_, err = f.handler.SetUpExternalIdentifier(ctx, testCaller, ref, props)
	require.NoError(t, err)
	assert.Equal(t, writes, f.counter.writes.Load())

	forElement, err := f.handler.GetExternalIdentifiersForElement(ctx, testCaller, f.element.GUID, "", "", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, forElement, 1)
	assert.True(t, confirmed.Properties.LastSynchronized.Equal(forElement[0].Properties.LastSynchronized))
}

func TestConfirmSynchronization_Unknown(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	writes := f.counter.writes.Load()

	_, err := f.handler.ConfirmSynchronization(ctx, testCaller, f.correlation(f.element, "CUST-1"))
	require.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "unknown external identity")
	assert.Equal(t, writes, f.counter.writes.Load())

	// Known identifier, but not for this element.
	other := createEntity(t, f.repo, testCaller, interfaces.DatabaseTypeName, "orders-db")
	_, err = f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(other, "CUST-1"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	writes = f.counter.writes.Load()

	_, err = f.handler.ConfirmSynchronization(ctx, testCaller, f.correlation(f.element, "CUST-1"))
	require.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "unknown resource link")
	assert.Equal(t, writes, f.counter.writes.Load())
}

func TestGetElementsForExternalIdentifier_NoMatch(t *testing.T) {
	f := newExternalIDFixture(t)

	elements, err := f.handler.GetElementsForExternalIdentifier(context.Background(), testCaller, f.scope.GUID, "", "nothing", interfaces.Paging{})
	require.NoError(t, err)
	assert.NotNil(t, elements)
	assert.Empty(t, elements)

	_, err = f.handler.GetExternalIdentifier(context.Background(), testCaller, f.scope.GUID, "", "nothing")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestUpdateExternalIdentifier(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()

	guid, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1"), beans.ExternalIdentifierProperties{
		KeyPattern:                beans.StableKey,
		ExternalInstanceCreatedBy: "import",
	})
	require.NoError(t, err)

	merged, err := f.handler.UpdateExternalIdentifier(ctx, testCaller, guid, beans.ExternalIdentifierProperties{
		ExternalInstanceLastUpdatedBy: "nightly",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, beans.StableKey, merged.Properties.KeyPattern)
	assert.Equal(t, "import", merged.Properties.ExternalInstanceCreatedBy)
	assert.Equal(t, "nightly", merged.Properties.ExternalInstanceLastUpdatedBy)

	replaced, err := f.handler.UpdateExternalIdentifier(ctx, testCaller, guid, beans.ExternalIdentifierProperties{}, false)
	require.NoError(t, err)
	assert.Equal(t, "CUST-1", replaced.Properties.Identifier)
	assert.Equal(t, beans.LocalKey, replaced.Properties.KeyPattern)
	assert.Empty(t, replaced.Properties.ExternalInstanceCreatedBy)

	_, err = f.handler.UpdateExternalIdentifier(ctx, testCaller, guid, beans.ExternalIdentifierProperties{Identifier: "CUST-2"}, true)
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestRemoveExternalIdentifier(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	replica := createEntity(t, f.repo, testCaller, interfaces.DatabaseTypeName, "customers-replica")

	guid, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	_, err = f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(replica, "CUST-1"), beans.ExternalIdentifierProperties{})
	require.NoError(t, err)

	require.NoError(t, f.handler.RemoveExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1")))
	kept, err := f.handler.GetExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, guid, kept.GUID)

	err = f.handler.RemoveExternalIdentifier(ctx, testCaller, f.correlation(f.element, "CUST-1"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	require.NoError(t, f.handler.RemoveExternalIdentifier(ctx, testCaller, f.correlation(replica, "CUST-1")))
	_, err = f.handler.GetExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "CUST-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestExternalIdentifierPaging(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, id), beans.ExternalIdentifierProperties{})
		require.NoError(t, err)
	}

	page, err := f.handler.GetExternalIdentifiersForScope(ctx, testCaller, f.scope.GUID, "", interfaces.Paging{StartFrom: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Properties.Identifier)

	past, err := f.handler.GetExternalIdentifiersForScope(ctx, testCaller, f.scope.GUID, "", interfaces.Paging{StartFrom: 10})
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past)

	_, err = f.handler.GetExternalIdentifiersForScope(ctx, testCaller, f.scope.GUID, "", interfaces.Paging{PageSize: testMaxPageSize + 1})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	_, err = f.handler.GetExternalIdentifiersForScope(ctx, testCaller, f.scope.GUID, "", interfaces.Paging{StartFrom: -1})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestExternalIdentifierEffectivity(t *testing.T) {
	f := newExternalIDFixture(t)
	ctx := context.Background()
	expired := time.Now().Add(-time.Hour)
	props := beans.ExternalIdentifierProperties{}
	props.EffectiveTo = &expired

	_, err := f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "OLD-1"), props)
	require.NoError(t, err)

	_, err = f.handler.GetExternalIdentifier(ctx, testCaller, f.scope.GUID, "", "OLD-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	then := testCaller.AsOf(expired.Add(-time.Minute))
	found, err := f.handler.GetExternalIdentifier(ctx, then, f.scope.GUID, "", "OLD-1")
	require.NoError(t, err)
	assert.Equal(t, "OLD-1", found.Properties.Identifier)

	// Matching ignores effectivity, so a second set up reuses the record.
	writes := f.counter.writes.Load()
	_, err = f.handler.SetUpExternalIdentifier(ctx, testCaller, f.correlation(f.element, "OLD-1"), props)
	require.NoError(t, err)
	assert.Equal(t, writes, f.counter.writes.Load())
}

func TestExternalIdentifierRepositoryFaults(t *testing.T) {
	ctx := context.Background()
	ref := Correlation{ElementGUID: "element", Identifier: "X", ScopeGUID: "scope"}

	t.Run("untyped entity is a logic error", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetEntity", mock.Anything, "element").Return(&interfaces.EntityDetail{GUID: "element"}, nil)
		h := NewExternalIdentifierHandler(NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()),
			beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())

		_, err := h.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
		require.ErrorIs(t, err, interfaces.ErrPropertyServer)
		assert.Contains(t, err.Error(), "logic error")
		repo.AssertNotCalled(t, "FindOrCreateEntity", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateRelationship", mock.Anything, mock.Anything)
	})

	resolvable := func(repo *mockRepository) {
		repo.On("GetEntity", mock.Anything, "element").Return(&interfaces.EntityDetail{GUID: "element", TypeName: interfaces.DatabaseTypeName}, nil)
		repo.On("GetEntity", mock.Anything, "scope").Return(&interfaces.EntityDetail{GUID: "scope", TypeName: interfaces.SoftwareServerTypeName}, nil)
	}

	t.Run("untyped matching external identifier is a logic error", func(t *testing.T) {
		repo := new(mockRepository)
		resolvable(repo)
		repo.On("FindEntities", mock.Anything, mock.Anything).Return([]*interfaces.EntityDetail{{GUID: "external"}}, nil)
		h := NewExternalIdentifierHandler(NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()),
			beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())

		_, err := h.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
		require.ErrorIs(t, err, interfaces.ErrPropertyServer)
		assert.Contains(t, err.Error(), "logic error")
		repo.AssertNotCalled(t, "FindOrCreateEntity", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateRelationship", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "FindOrCreateRelationship", mock.Anything, mock.Anything, mock.Anything)

		_, err = h.ConfirmSynchronization(ctx, testCaller, ref)
		assert.ErrorIs(t, err, interfaces.ErrPropertyServer)
		repo.AssertNotCalled(t, "UpdateRelationship", mock.Anything, mock.Anything)
	})

	t.Run("untyped registered external identifier is a logic error", func(t *testing.T) {
		repo := new(mockRepository)
		resolvable(repo)
		repo.On("FindEntities", mock.Anything, mock.Anything).Return([]*interfaces.EntityDetail{}, nil)
		repo.On("FindOrCreateEntity", mock.Anything, "ExternalId:scope:X", mock.Anything).Return(&interfaces.EntityDetail{GUID: "external"}, false, nil)
		h := NewExternalIdentifierHandler(NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()),
			beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())

		_, err := h.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
		require.ErrorIs(t, err, interfaces.ErrPropertyServer)
		assert.Contains(t, err.Error(), "logic error")
		repo.AssertNotCalled(t, "CreateRelationship", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "FindOrCreateRelationship", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("unknown guid is an invalid parameter", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetEntity", mock.Anything, "element").Return(nil, interfaces.ErrEntityNotFound)
		h := NewExternalIdentifierHandler(NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()),
			beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())

		_, err := h.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
		assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
		assert.ErrorIs(t, err, interfaces.ErrEntityNotFound)
	})

	t.Run("backend failure is a property server error", func(t *testing.T) {
		repo := new(mockRepository)
		failure := errors.New("connection reset")
		repo.On("GetEntity", mock.Anything, "element").Return(nil, failure)
		h := NewExternalIdentifierHandler(NewRepositoryHandler(repo, nil, nil, nil, testMaxPageSize, slog.Default()),
			beans.NewExternalIdentifierElement, beans.NewMetadataElement, slog.Default())
		errorsBefore := testutil.ToFloat64(metrics.RepositoryErrors.WithLabelValues("SetUpExternalIdentifier"))

		_, err := h.SetUpExternalIdentifier(ctx, testCaller, ref, beans.ExternalIdentifierProperties{})
		assert.ErrorIs(t, err, interfaces.ErrPropertyServer)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, errorsBefore+1, testutil.ToFloat64(metrics.RepositoryErrors.WithLabelValues("SetUpExternalIdentifier")))
	})
}
