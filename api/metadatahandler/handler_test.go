package metadatahandler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/ruteri/metadata-governance-backend/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "steward"

type testServer struct {
	t   *testing.T
	mux *chi.Mux
}

func newTestServer(t *testing.T, zones interfaces.ZoneConfig, policy security.Policy) *testServer {
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
	mux := chi.NewRouter()
	NewHandler(repo, zones, logger).RegisterRoutes(mux)
	return &testServer{t: t, mux: mux}
}

// do sends a request as user. A nil body sends no body at all.
func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if user != "" {
		req.Header.Set(api.UserHeader, user)
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

// create posts body to path and returns the new GUID.
func (s *testServer) create(path string, body any) string {
	s.t.Helper()
	w := s.do(http.MethodPost, path, testUser, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var resp api.GUIDResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.GUID)
	return resp.GUID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRequestsNeedAUser(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	w := s.do(http.MethodGet, "/projects", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[api.ErrorResponse](t, w).Error, "userId")
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"unknown body field", http.MethodPost, "/projects", map[string]any{"qualifiedName": "p", "colour": "red"}},
		{"empty qualified name", http.MethodPost, "/locations", beans.LocationProperties{}},
		{"bad page size", http.MethodGet, "/projects?pageSize=ten", nil},
		{"bad domain", http.MethodGet, "/governance-definitions?domain=security", nil},
		{"unknown location classification", http.MethodPut, "/locations/some-guid/classifications/mobile", nil},
		{"unknown guid", http.MethodGet, "/locations/no-such-guid", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, testUser, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	t.Run("bad as-of header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set(api.UserHeader, testUser)
		req.Header.Set(api.AsOfHeader, "yesterday")
		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReadOnlyUserIsForbidden(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{ReadOnlyUsers: []string{"auditor"}})
	guid := s.create("/projects", beans.ProjectProperties{QualifiedName: "project:audit"})

	w := s.do(http.MethodPost, "/projects", "auditor", beans.ProjectProperties{QualifiedName: "project:other"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/projects/"+guid, "auditor", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/projects/"+guid, "auditor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "project:audit", decodeBody[beans.ProjectElement](t, w).Properties.QualifiedName)
}

func TestGovernanceDefinitionRoutes(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	policy := s.create("/governance-definitions", beans.GovernanceDefinitionProperties{
		TypeName:         interfaces.GovernancePolicyTypeName,
		QualifiedName:    "policy:retention",
		Title:            "Retention",
		DomainIdentifier: 2,
	})
	control := s.create("/governance-definitions", beans.GovernanceDefinitionProperties{
		TypeName:         interfaces.TechnicalControlTypeName,
		QualifiedName:    "control:purge-job",
		DomainIdentifier: 2,
	})

	w := s.do(http.MethodGet, "/governance-definitions?domain=2", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.GovernanceDefinitionElement](t, w), 2)

	w = s.do(http.MethodGet, "/governance-definitions?typeName=GovernancePolicy", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decodeBody[[]*beans.GovernanceDefinitionElement](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, policy, found[0].GUID)

	s.create("/governance-definitions/"+policy+"/implementations/"+control, api.LinkRequest{Rationale: "nightly purge"})
	w = s.do(http.MethodGet, "/governance-definitions/"+policy+"/supporting-definitions?relationshipType=GovernanceImplementation", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	supporting := decodeBody[[]*beans.GovernanceDefinitionElement](t, w)
	require.Len(t, supporting, 1)
	assert.Equal(t, control, supporting[0].GUID)

	w = s.do(http.MethodPut, "/governance-definitions/"+policy, testUser, beans.GovernanceDefinitionProperties{Summary: "keep for seven years"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/governance-definitions/"+policy, testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[beans.GovernanceDefinitionElement](t, w)
	assert.Equal(t, "Retention", got.Properties.Title)
	assert.Equal(t, "keep for seven years", got.Properties.Summary)

	w = s.do(http.MethodPut, "/governance-definitions/"+policy+"?merge=false", testUser, beans.GovernanceDefinitionProperties{Summary: "no name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/governance-definitions/"+policy+"/implementations/"+control, testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, "/governance-definitions/"+policy, testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/governance-definitions/"+policy, testUser, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfrastructureRoutes(t *testing.T) {
	zones := interfaces.ZoneConfig{DefaultZones: []string{"quarantine"}, PublishZones: []string{"production"}}
	s := newTestServer(t, zones, security.Policy{})

	host := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.HostTypeName,
		QualifiedName: "host:web-1",
		Name:          "web-1",
	})
	server := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.SoftwareServerTypeName,
		QualifiedName: "server:api",
	})

	w := s.do(http.MethodGet, "/infrastructure/"+host, testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[beans.InfrastructureElement](t, w)
	assert.Equal(t, interfaces.HostTypeName, got.TypeName)
	assert.Equal(t, []string{"quarantine"}, got.Properties.ZoneMembership)

	w = s.do(http.MethodPost, "/infrastructure/"+host+"/publish", testUser, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/infrastructure/"+host, testUser, nil)
	assert.Equal(t, []string{"production"}, decodeBody[beans.InfrastructureElement](t, w).Properties.ZoneMembership)

	w = s.do(http.MethodGet, "/infrastructure?name=web-1", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.InfrastructureElement](t, w), 1)

	s.create("/infrastructure/"+host+"/deployed-assets/"+server, nil)
	w = s.do(http.MethodGet, "/infrastructure/"+host+"/deployed-assets", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	deployed := decodeBody[[]*beans.InfrastructureElement](t, w)
	require.Len(t, deployed, 1)
	assert.Equal(t, server, deployed[0].GUID)
	require.NotNil(t, deployed[0].RelatedBy)
	assert.Equal(t, interfaces.DeployedOnTypeName, deployed[0].RelatedBy.TypeName)

	database := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.DatabaseTypeName,
		QualifiedName: "db:orders",
	})
	use := s.create("/infrastructure/"+server+"/asset-uses/"+database, beans.ServerAssetUseProperties{Description: "orders"})
	w = s.do(http.MethodPut, "/asset-uses/"+use, testUser, beans.ServerAssetUseProperties{Description: "reporting"})
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/infrastructure/"+server+"/asset-uses", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	used := decodeBody[[]*beans.InfrastructureElement](t, w)
	require.Len(t, used, 1)
	assert.Equal(t, database, used[0].GUID)

	w = s.do(http.MethodDelete, "/asset-uses/"+use, testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, "/infrastructure/"+host+"/deployed-assets/"+server, testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/infrastructure/"+host+"/deployed-assets", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]*beans.InfrastructureElement](t, w))
}

func TestLocationRoutes(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	campus := s.create("/locations", beans.LocationProperties{QualifiedName: "location:campus", DisplayName: "Campus"})
	building := s.create("/locations", beans.LocationProperties{QualifiedName: "location:building-a"})

	w := s.do(http.MethodPut, "/locations/"+campus+"/classifications/fixed", testUser, beans.FixedLocationProperties{TimeZone: "Europe/Paris"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodPut, "/locations/"+campus+"/classifications/secure", testUser, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/locations/"+campus, testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[beans.LocationElement](t, w).Classifications, 2)

	w = s.do(http.MethodDelete, "/locations/"+campus+"/classifications/secure", testUser, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/locations/"+campus, testUser, nil)
	assert.Len(t, decodeBody[beans.LocationElement](t, w).Classifications, 1)

	s.create("/locations/"+campus+"/nested-locations/"+building, nil)
	w = s.do(http.MethodGet, "/locations/"+campus+"/nested-locations", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	nested := decodeBody[[]*beans.LocationElement](t, w)
	require.Len(t, nested, 1)
	assert.Equal(t, building, nested[0].GUID)

	w = s.do(http.MethodGet, "/locations?search=location:.*", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.LocationElement](t, w), 2)

	w = s.do(http.MethodGet, "/locations?name=Campus", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.LocationElement](t, w), 1)
}

func TestProjectRoutes(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	project := s.create("/projects", beans.ProjectProperties{QualifiedName: "project:migration", Name: "Migration"})
	database := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.DatabaseTypeName,
		QualifiedName: "db:legacy",
	})

	w := s.do(http.MethodPut, "/projects/"+project+"/classifications/Campaign", testUser, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/projects?classification=Campaign", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.ProjectElement](t, w), 1)

	s.create("/projects/"+project+"/scope/"+database, api.LinkRequest{AssetSummary: "decommission"})
	w = s.do(http.MethodGet, "/elements/"+database+"/projects", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	projects := decodeBody[[]*beans.ProjectElement](t, w)
	require.Len(t, projects, 1)
	assert.Equal(t, project, projects[0].GUID)

	w = s.do(http.MethodGet, "/projects/"+project+"/scope", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	scope := decodeBody[[]*beans.MetadataElement](t, w)
	require.Len(t, scope, 1)
	assert.Equal(t, interfaces.DatabaseTypeName, scope[0].TypeName)

	w = s.do(http.MethodDelete, "/projects/"+project+"/scope/"+database, testUser, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/elements/"+database+"/projects", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]*beans.ProjectElement](t, w))
}

func TestExternalIdentifierRoutes(t *testing.T) {
	s := newTestServer(t, interfaces.ZoneConfig{}, security.Policy{})

	scope := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.SoftwareServerTypeName,
		QualifiedName: "server:crm",
	})
	element := s.create("/infrastructure", beans.InfrastructureProperties{
		TypeName:      interfaces.DatabaseTypeName,
		QualifiedName: "db:customers",
	})
	ref := handlers.Correlation{ElementGUID: element, Identifier: "CUST 1/A", ScopeGUID: scope}

	guid := s.create("/external-identifiers", api.ExternalIdentifierRequest{
		Correlation: ref,
		Properties:  beans.ExternalIdentifierProperties{Usage: "primary key"},
	})

	w := s.do(http.MethodGet, "/scopes/"+scope+"/external-identifier?identifier=CUST+1%2FA", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	externalID := decodeBody[beans.ExternalIdentifierElement](t, w)
	assert.Equal(t, guid, externalID.GUID)
	assert.Equal(t, "CUST 1/A", externalID.Properties.Identifier)

	w = s.do(http.MethodGet, "/scopes/"+scope+"/external-identifier/elements?identifier=CUST+1%2FA", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	elements := decodeBody[[]*beans.MetadataElement](t, w)
	require.Len(t, elements, 1)
	assert.Equal(t, element, elements[0].GUID)

	w = s.do(http.MethodPost, "/external-identifiers/confirm", testUser, ref)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, guid, decodeBody[beans.ExternalIdentifierElement](t, w).GUID)

	w = s.do(http.MethodGet, "/elements/"+element+"/external-identifiers", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]*beans.ExternalIdentifierElement](t, w), 1)

	w = s.do(http.MethodPost, "/external-identifiers/remove", testUser, ref)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/elements/"+element+"/external-identifiers", testUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]*beans.ExternalIdentifierElement](t, w))
}
