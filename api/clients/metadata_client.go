package clients

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MetadataClient implements api.ExternalIdentifierProvider over the REST API
// of a metadata governance server.
type MetadataClient struct {
	// ServerAddr is the base URL of the server, e.g. http://localhost:8080
	ServerAddr string

	// UserID is sent with every request as the calling user.
	UserID string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

var _ api.ExternalIdentifierProvider = (*MetadataClient)(nil)

func (c *MetadataClient) SetUpExternalIdentifier(ref handlers.Correlation, props beans.ExternalIdentifierProperties) (string, error) {
	return c.create("/external-identifiers", api.ExternalIdentifierRequest{Correlation: ref, Properties: props})
}

func (c *MetadataClient) ConfirmSynchronization(ref handlers.Correlation) (*beans.ExternalIdentifierElement, error) {
	var out beans.ExternalIdentifierElement
	if err := c.do(http.MethodPost, "/external-identifiers/confirm", nil, ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MetadataClient) RemoveExternalIdentifier(ref handlers.Correlation) error {
	return c.do(http.MethodPost, "/external-identifiers/remove", nil, ref, nil)
}

// GetExternalIdentifier returns the identifier registered in the scope.
func (c *MetadataClient) GetExternalIdentifier(scopeGUID, identifier string) (*beans.ExternalIdentifierElement, error) {
	var out beans.ExternalIdentifierElement
	query := url.Values{"identifier": {identifier}}
	if err := c.do(http.MethodGet, "/scopes/"+url.PathEscape(scopeGUID)+"/external-identifier", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MetadataClient) GetElementsForExternalIdentifier(scopeGUID, identifier string, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	var out []*beans.MetadataElement
	query := pagingQuery(paging)
	query.Set("identifier", identifier)
	err := c.do(http.MethodGet, "/scopes/"+url.PathEscape(scopeGUID)+"/external-identifier/elements", query, nil, &out)
	return out, err
}

// GetExternalIdentifiersForElement returns the identifiers of an element,
// limited to one scope when scopeGUID is set.
func (c *MetadataClient) GetExternalIdentifiersForElement(elementGUID, scopeGUID string, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error) {
	var out []*beans.ExternalIdentifierElement
	query := pagingQuery(paging)
	if scopeGUID != "" {
		query.Set("scopeGUID", scopeGUID)
	}
	err := c.do(http.MethodGet, "/elements/"+url.PathEscape(elementGUID)+"/external-identifiers", query, nil, &out)
	return out, err
}

func (c *MetadataClient) GetExternalIdentifiersForScope(scopeGUID string, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error) {
	var out []*beans.ExternalIdentifierElement
	err := c.do(http.MethodGet, "/scopes/"+url.PathEscape(scopeGUID)+"/external-identifiers", pagingQuery(paging), nil, &out)
	return out, err
}

func (c *MetadataClient) CreateInfrastructure(props beans.InfrastructureProperties) (string, error) {
	return c.create("/infrastructure", props)
}

func (c *MetadataClient) GetInfrastructure(guid string) (*beans.InfrastructureElement, error) {
	var out beans.InfrastructureElement
	if err := c.do(http.MethodGet, "/infrastructure/"+url.PathEscape(guid), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindInfrastructure returns the assets whose names match the regular
// expression searchString.
func (c *MetadataClient) FindInfrastructure(searchString string, paging interfaces.Paging) ([]*beans.InfrastructureElement, error) {
	var out []*beans.InfrastructureElement
	query := pagingQuery(paging)
	query.Set("search", searchString)
	err := c.do(http.MethodGet, "/infrastructure", query, nil, &out)
	return out, err
}

func (c *MetadataClient) CreateProject(props beans.ProjectProperties) (string, error) {
	return c.create("/projects", props)
}

func (c *MetadataClient) FindProjects(searchString string, paging interfaces.Paging) ([]*beans.ProjectElement, error) {
	var out []*beans.ProjectElement
	query := pagingQuery(paging)
	query.Set("search", searchString)
	err := c.do(http.MethodGet, "/projects", query, nil, &out)
	return out, err
}

func pagingQuery(paging interfaces.Paging) url.Values {
	query := url.Values{}
	if paging.StartFrom > 0 {
		query.Set("startFrom", strconv.Itoa(paging.StartFrom))
	}
	if paging.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(paging.PageSize))
	}
	return query
}

func (c *MetadataClient) create(path string, body any) (string, error) {
	var out api.GUIDResponse
	if err := c.do(http.MethodPost, path, nil, body, &out); err != nil {
		return "", err
	}
	return out.GUID, nil
}

// do sends one request and decodes a 2xx response into out. Error responses
// wrap interfaces.ErrInvalidParameter or interfaces.ErrUserNotAuthorized to
// match the server-side error.
func (c *MetadataClient) do(method, path string, query url.Values, body, out any) error {
	target := c.ServerAddr + "/api/v1" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set(api.UserHeader, c.UserID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s %s response: %w", method, path, err)
	}
	return nil
}

func responseError(method, path string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	message := string(bodyBytes)
	var parsed api.ErrorResponse
	if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != "" {
		message = parsed.Error
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = interfaces.ErrInvalidParameter
	case http.StatusForbidden:
		kind = interfaces.ErrUserNotAuthorized
	default:
		kind = errors.New("server error")
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", kind, method, path, resp.StatusCode, message)
}

// MockExternalIdentifierProvider implements api.ExternalIdentifierProvider
// for testing.
type MockExternalIdentifierProvider struct {
	mock.Mock
}

func (m *MockExternalIdentifierProvider) SetUpExternalIdentifier(ref handlers.Correlation, props beans.ExternalIdentifierProperties) (string, error) {
	args := m.Called(ref, props)
	return args.String(0), args.Error(1)
}

func (m *MockExternalIdentifierProvider) ConfirmSynchronization(ref handlers.Correlation) (*beans.ExternalIdentifierElement, error) {
	args := m.Called(ref)
	out, _ := args.Get(0).(*beans.ExternalIdentifierElement)
	return out, args.Error(1)
}

func (m *MockExternalIdentifierProvider) RemoveExternalIdentifier(ref handlers.Correlation) error {
	return m.Called(ref).Error(0)
}

func (m *MockExternalIdentifierProvider) GetExternalIdentifier(scopeGUID, identifier string) (*beans.ExternalIdentifierElement, error) {
	args := m.Called(scopeGUID, identifier)
	out, _ := args.Get(0).(*beans.ExternalIdentifierElement)
	return out, args.Error(1)
}

func (m *MockExternalIdentifierProvider) GetElementsForExternalIdentifier(scopeGUID, identifier string, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	args := m.Called(scopeGUID, identifier, paging)
	out, _ := args.Get(0).([]*beans.MetadataElement)
	return out, args.Error(1)
}

func (m *MockExternalIdentifierProvider) GetExternalIdentifiersForElement(elementGUID, scopeGUID string, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error) {
	args := m.Called(elementGUID, scopeGUID, paging)
	out, _ := args.Get(0).([]*beans.ExternalIdentifierElement)
	return out, args.Error(1)
}
