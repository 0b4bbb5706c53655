package api

import (
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

const (
	// UserHeader names the user every request is made on behalf of.
	UserHeader = "X-Metadata-User"

	// AsOfHeader optionally selects the effective time of reads, as RFC 3339.
	AsOfHeader = "X-Metadata-As-Of"
)

// ExternalIdentifierProvider is the client side of the external identifier
// routes.
type ExternalIdentifierProvider interface {
	SetUpExternalIdentifier(ref handlers.Correlation, props beans.ExternalIdentifierProperties) (string, error)
	ConfirmSynchronization(ref handlers.Correlation) (*beans.ExternalIdentifierElement, error)
	RemoveExternalIdentifier(ref handlers.Correlation) error
	GetExternalIdentifier(scopeGUID, identifier string) (*beans.ExternalIdentifierElement, error)
	GetElementsForExternalIdentifier(scopeGUID, identifier string, paging interfaces.Paging) ([]*beans.MetadataElement, error)
	GetExternalIdentifiersForElement(elementGUID, scopeGUID string, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error)
}

// GUIDResponse carries the GUID of a created entity or relationship.
type GUIDResponse struct {
	GUID string `json:"guid"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ExternalIdentifierRequest sets up an external identifier.
type ExternalIdentifierRequest struct {
	Correlation handlers.Correlation               `json:"correlation"`
	Properties  beans.ExternalIdentifierProperties `json:"properties"`
}

// LinkRequest carries the optional properties of a relationship. Each route
// uses the fields its relationship type defines.
type LinkRequest struct {
	Description       string `json:"description,omitempty"`
	Rationale         string `json:"rationale,omitempty"`
	DependencySummary string `json:"dependencySummary,omitempty"`
	AssetSummary      string `json:"assetSummary,omitempty"`
	interfaces.Effectivity
}
