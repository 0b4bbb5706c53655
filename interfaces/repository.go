package interfaces

import (
	"context"
	"fmt"
	"net/url"
)

// RepositoryLocation represents the URI of a metadata repository backend.
type RepositoryLocation struct {
	Raw    string     // Original URI
	Scheme string     // Backend kind
	Host   string     // Hostname or table name
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewRepositoryLocation parses and validates a repository URI.
func NewRepositoryLocation(uri string) (RepositoryLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return RepositoryLocation{}, fmt.Errorf("%w: %v", ErrInvalidRepositoryURI, err)
	}

	switch parsed.Scheme {
	case "memory", "badger", "sqlite", "postgres", "postgresql", "dynamodb":
	default:
		return RepositoryLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepositoryURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return RepositoryLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc RepositoryLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc RepositoryLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc RepositoryLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// EntitySearch selects entities from a repository. Every set field must match.
type EntitySearch struct {
	// TypeNames restricts results to these exact type names. Handlers expand
	// supertypes through the TypeRegistry before calling the repository.
	TypeNames []string

	// PropertyName and PropertyValue select entities whose string property
	// equals the value exactly.
	PropertyName  string
	PropertyValue string
}

// Matches reports whether entity satisfies the search.
func (s EntitySearch) Matches(entity *EntityDetail) bool {
	if len(s.TypeNames) > 0 {
		found := false
		for _, name := range s.TypeNames {
			if entity.TypeName == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.PropertyName != "" && entity.Properties.GetString(s.PropertyName) != s.PropertyValue {
		return false
	}
	return true
}

// MetadataRepository is the key/value + graph-traversal service the handlers
// are built on. Implementations must be safe for concurrent use. Results are
// returned in creation order (oldest first) so repository iteration order is
// stable across backends.
type MetadataRepository interface {
	// CreateEntity stores a new entity. The repository assigns the GUID when it
	// is empty, sets Version to 1 and stamps the create/update times.
	CreateEntity(ctx context.Context, entity *EntityDetail) (*EntityDetail, error)

	// FindOrCreateEntity atomically returns the entity registered under
	// uniqueKey, or stores entity under that key. The boolean reports whether
	// the entity was created by this call.
	FindOrCreateEntity(ctx context.Context, uniqueKey string, entity *EntityDetail) (*EntityDetail, bool, error)

	// GetEntity returns ErrEntityNotFound when the GUID is unknown.
	GetEntity(ctx context.Context, guid string) (*EntityDetail, error)

	// UpdateEntity replaces the stored entity if its Version still matches,
	// otherwise it returns ErrVersionConflict. The returned entity carries the
	// new version.
	UpdateEntity(ctx context.Context, entity *EntityDetail) (*EntityDetail, error)

	// DeleteEntity removes the entity, every relationship attached to it and
	// its unique key registration.
	DeleteEntity(ctx context.Context, guid string) error

	// FindEntities returns the entities matching search.
	FindEntities(ctx context.Context, search EntitySearch) ([]*EntityDetail, error)

	// CreateRelationship stores a new relationship between two existing
	// entities.
	CreateRelationship(ctx context.Context, relationship *Relationship) (*Relationship, error)

	// FindOrCreateRelationship atomically returns the relationship registered
	// under uniqueKey, or stores relationship under that key. The registration
	// goes away with the relationship. The boolean reports whether the
	// relationship was created by this call.
	FindOrCreateRelationship(ctx context.Context, uniqueKey string, relationship *Relationship) (*Relationship, bool, error)

	// GetRelationship returns ErrRelationshipNotFound when the GUID is unknown.
	GetRelationship(ctx context.Context, guid string) (*Relationship, error)

	// UpdateRelationship has the same version semantics as UpdateEntity.
	UpdateRelationship(ctx context.Context, relationship *Relationship) (*Relationship, error)

	// DeleteRelationship removes the relationship.
	DeleteRelationship(ctx context.Context, guid string) error

	// GetRelationshipsForEntity returns the relationships attached to the
	// entity at either end, optionally restricted to one relationship type.
	GetRelationshipsForEntity(ctx context.Context, entityGUID string, typeName string) ([]*Relationship, error)

	// Available checks if the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string

	// Close releases the backend's resources.
	Close() error
}

// MetadataRepositoryFactory creates repository backends.
type MetadataRepositoryFactory interface {
	// RepositoryFor creates the backend a location URI names.
	// Supports memory://, badger://, sqlite://, postgres:// and dynamodb://
	RepositoryFor(ctx context.Context, location RepositoryLocation) (MetadataRepository, error)
}
