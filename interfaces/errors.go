package interfaces

import "errors"

// Errors surfaced by the handlers. Callers test with errors.Is; handlers wrap
// them with the detail that applies.
var (
	// ErrInvalidParameter is returned for malformed or missing caller input and
	// for references that do not resolve to a visible instance. The caller can
	// always fix it and it is never retried.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUserNotAuthorized is returned when the security verifier denies the
	// caller access to an instance.
	ErrUserNotAuthorized = errors.New("user not authorized")

	// ErrPropertyServer is returned for repository faults and for internal
	// invariant violations such as a stored instance without type metadata.
	ErrPropertyServer = errors.New("property server error")
)

// Errors returned by MetadataRepository implementations.
var (
	// ErrEntityNotFound is returned when no entity exists for a GUID.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRelationshipNotFound is returned when no relationship exists for a GUID.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrVersionConflict is returned when an update carries a version that no
	// longer matches the stored instance.
	ErrVersionConflict = errors.New("instance version conflict")

	// ErrRepositoryUnavailable is returned when a backend cannot be reached.
	ErrRepositoryUnavailable = errors.New("metadata repository unavailable")

	// ErrInvalidRepositoryURI is returned when a repository location URI is
	// malformed or uses an unsupported scheme.
	ErrInvalidRepositoryURI = errors.New("invalid metadata repository URI")
)
