package clients

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/api/metadatahandler"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/ruteri/metadata-governance-backend/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataServer(t *testing.T, policy security.Policy) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := handlers.NewRepositoryHandler(
		repository.NewMemoryRepository(logger),
		nil,
		security.NewZoneSecurityVerifier(policy, logger),
		nil,
		100,
		logger,
	)
	router := chi.NewRouter()
	metadatahandler.NewHandler(repo, interfaces.ZoneConfig{}, logger).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestMetadataClient_ExternalIdentifierFlow(t *testing.T) {
	server := newTestMetadataServer(t, security.Policy{})
	client := &MetadataClient{ServerAddr: server.URL, UserID: "sync-agent"}

	scope, err := client.CreateInfrastructure(beans.InfrastructureProperties{
		TypeName:      interfaces.SoftwareServerTypeName,
		QualifiedName: "server:erp",
	})
	require.NoError(t, err)
	element, err := client.CreateInfrastructure(beans.InfrastructureProperties{
		TypeName:      interfaces.DatabaseTypeName,
		QualifiedName: "db:ledger",
		Name:          "ledger",
	})
	require.NoError(t, err)

	ref := handlers.Correlation{ElementGUID: element, Identifier: "LEDGER&01", ScopeGUID: scope}
	guid, err := client.SetUpExternalIdentifier(ref, beans.ExternalIdentifierProperties{
		KeyPattern:               beans.NaturalKey,
		PermittedSynchronization: beans.FromThirdParty,
	})
	require.NoError(t, err)

	externalID, err := client.GetExternalIdentifier(scope, "LEDGER&01")
	require.NoError(t, err)
	assert.Equal(t, guid, externalID.GUID)
	assert.Equal(t, beans.NaturalKey, externalID.Properties.KeyPattern)

	elements, err := client.GetElementsForExternalIdentifier(scope, "LEDGER&01", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, element, elements[0].GUID)

	confirmed, err := client.ConfirmSynchronization(ref)
	require.NoError(t, err)
	assert.Equal(t, guid, confirmed.GUID)

	forElement, err := client.GetExternalIdentifiersForElement(element, scope, interfaces.Paging{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, forElement, 1)

	inScope, err := client.GetExternalIdentifiersForScope(scope, interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, inScope, 1)

	require.NoError(t, client.RemoveExternalIdentifier(ref))
	_, err = client.GetExternalIdentifier(scope, "LEDGER&01")
	assert.True(t, errors.Is(err, interfaces.ErrInvalidParameter), err)

	found, err := client.FindInfrastructure("ledger", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, element, found[0].GUID)
}

func TestMetadataClient_Errors(t *testing.T) {
	server := newTestMetadataServer(t, security.Policy{ReadOnlyUsers: []string{"viewer"}})

	_, err := (&MetadataClient{ServerAddr: server.URL}).FindProjects(".*", interfaces.Paging{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	_, err = (&MetadataClient{ServerAddr: server.URL, UserID: "viewer"}).CreateProject(beans.ProjectProperties{QualifiedName: "project:x"})
	assert.ErrorIs(t, err, interfaces.ErrUserNotAuthorized)

	client := &MetadataClient{ServerAddr: server.URL, UserID: "owner"}
	_, err = client.GetInfrastructure("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = client.CreateProject(beans.ProjectProperties{QualifiedName: "project:x"})
	require.NoError(t, err)
	projects, err := client.FindProjects("project:.*", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestMockExternalIdentifierProvider(t *testing.T) {
	var provider api.ExternalIdentifierProvider = &MockExternalIdentifierProvider{}
	m := provider.(*MockExternalIdentifierProvider)

	ref := handlers.Correlation{ElementGUID: "e", Identifier: "id", ScopeGUID: "s"}
	m.On("SetUpExternalIdentifier", ref, beans.ExternalIdentifierProperties{}).Return("guid-1", nil)
	m.On("GetExternalIdentifier", "s", "id").Return(nil, interfaces.ErrInvalidParameter)

	guid, err := provider.SetUpExternalIdentifier(ref, beans.ExternalIdentifierProperties{})
	require.NoError(t, err)
	assert.Equal(t, "guid-1", guid)

	out, err := provider.GetExternalIdentifier("s", "id")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	m.AssertExpectations(t)
}
