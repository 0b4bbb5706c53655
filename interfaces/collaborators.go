package interfaces

import (
	"context"
	"time"
)

// SecurityVerifier decides what a caller may see and change. Denials are
// returned as errors wrapping ErrUserNotAuthorized.
type SecurityVerifier interface {
	// IsVisible reports whether the entity may be returned to the caller.
	IsVisible(caller Caller, entity *EntityDetail) bool

	// ValidateCreate checks the caller may create an entity of typeName in the
	// given zones.
	ValidateCreate(caller Caller, typeName string, zones []string) error

	// ValidateUpdate checks the caller may change the entity, including
	// linking it to other entities.
	ValidateUpdate(caller Caller, entity *EntityDetail) error

	// ValidateDelete checks the caller may remove the entity.
	ValidateDelete(caller Caller, entity *EntityDetail) error

	// InitialZones returns the zone membership for a new asset given the zones
	// its creator asked for.
	InitialZones(caller Caller, requested []string) []string
}

// AuditAction names what an audit record reports.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditLink   AuditAction = "link"
	AuditUnlink AuditAction = "unlink"
	AuditSync   AuditAction = "synchronize"
)

// AuditRecord is one structured audit message.
type AuditRecord struct {
	Time          time.Time         `json:"time"`
	UserID        string            `json:"userId"`
	Action        AuditAction       `json:"action"`
	Operation     string            `json:"operation"`
	TypeName      string            `json:"typeName"`
	GUID          string            `json:"guid"`
	Message       string            `json:"message"`
	AdditionalIDs map[string]string `json:"additionalIds,omitempty"`
}

// AuditLog receives audit records. Implementations never fail the caller:
// delivery problems are their own concern.
type AuditLog interface {
	LogRecord(ctx context.Context, record AuditRecord)
}
