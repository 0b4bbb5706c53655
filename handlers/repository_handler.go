package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/ruteri/metadata-governance-backend/audit"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/metrics"
	"github.com/ruteri/metadata-governance-backend/security"
)

// Converter turns an entity, and the relationship it was reached through,
// into a bean. The relationship may be nil.
type Converter[B any] func(entity *interfaces.EntityDetail, relationship *interfaces.Relationship) (B, error)

// PropertiesBuilder supplies the property bag of a new or updated instance.
type PropertiesBuilder interface {
	InstanceProperties() interfaces.InstanceProperties
}

// EntitySpec describes an entity to create.
type EntitySpec struct {
	TypeName        string
	Properties      interfaces.InstanceProperties
	Classifications []interfaces.Classification
	interfaces.Effectivity
}

// EntityUpdate describes a change to an entity's properties.
type EntityUpdate struct {
	Properties interfaces.InstanceProperties

	// Merge keeps stored properties the update does not mention. Otherwise the
	// update replaces the bag.
	Merge bool

	// Effectivity replaces the stored window when set.
	Effectivity *interfaces.Effectivity
}

// Link describes a relationship to create between two entities.
type Link struct {
	TypeName   string
	End1GUID   string
	End2GUID   string
	Properties interfaces.InstanceProperties
	interfaces.Effectivity
}

// RelatedQuery selects entities reachable from one entity through a
// relationship type.
type RelatedQuery struct {
	GUID              string
	GUIDParameterName string
	GUIDType          string
	RelationshipType  string

	// RelatedEnd is the end the related entity sits on: 1, 2, or 0 for either.
	RelatedEnd  int
	RelatedType string
}

// RelatedEntity is an entity together with the relationship it was reached
// through.
type RelatedEntity struct {
	Entity       *interfaces.EntityDetail
	Relationship *interfaces.Relationship
}

// RepositoryHandler is the shared access layer the bean handlers are built
// on. It validates parameters, applies effectivity and zone visibility to
// every read, consults the security verifier before every write, translates
// repository errors and writes the audit log.
type RepositoryHandler struct {
	repository  interfaces.MetadataRepository
	types       *interfaces.TypeRegistry
	security    interfaces.SecurityVerifier
	audit       interfaces.AuditLog
	maxPageSize int
	log         *slog.Logger
}

// NewRepositoryHandler creates a handler over repository. A nil type registry
// means the built-in types, a nil verifier allows every operation on visible
// entities and a nil audit log writes to log.
func NewRepositoryHandler(
	repository interfaces.MetadataRepository,
	types *interfaces.TypeRegistry,
	verifier interfaces.SecurityVerifier,
	auditLog interfaces.AuditLog,
	maxPageSize int,
	log *slog.Logger,
) *RepositoryHandler {
	if log == nil {
		log = slog.Default()
	}
	if types == nil {
		types = interfaces.DefaultTypeRegistry()
	}
	if verifier == nil {
		verifier = security.NewZoneSecurityVerifier(security.Policy{}, log)
	}
	if auditLog == nil {
		auditLog = audit.NewSlogAuditLog(log)
	}
	return &RepositoryHandler{
		repository:  repository,
		types:       types,
		security:    verifier,
		audit:       auditLog,
		maxPageSize: maxPageSize,
		log:         log,
	}
}

// Types returns the type registry the handler validates against.
func (h *RepositoryHandler) Types() *interfaces.TypeRegistry {
	return h.types
}

// MaxPageSize returns the largest page the handler serves.
func (h *RepositoryHandler) MaxPageSize() int {
	return h.maxPageSize
}

// repositoryError translates a repository failure. Unknown GUIDs supplied by
// the caller are invalid parameters, anything else is a property server
// error.
func (h *RepositoryHandler) repositoryError(operation string, err error) error {
	switch {
	case errors.Is(err, interfaces.ErrInvalidParameter),
		errors.Is(err, interfaces.ErrUserNotAuthorized),
		errors.Is(err, interfaces.ErrPropertyServer):
		return err
	case errors.Is(err, interfaces.ErrEntityNotFound),
		errors.Is(err, interfaces.ErrRelationshipNotFound):
		return fmt.Errorf("%w: %w", interfaces.ErrInvalidParameter, err)
	}

	metrics.RepositoryErrors.WithLabelValues(operation).Inc()
	h.log.Error("Metadata repository failure",
		"err", err,
		slog.String("operation", operation),
		slog.String("repository", h.repository.Name()))
	return fmt.Errorf("%w: %s: %w", interfaces.ErrPropertyServer, operation, err)
}

func logicError(operation, format string, args ...any) error {
	return fmt.Errorf("%w: logic error in %s: %s", interfaces.ErrPropertyServer, operation, fmt.Sprintf(format, args...))
}

func validateGUID(guid, parameterName string) error {
	if guid == "" {
		return fmt.Errorf("%w: %s must not be empty", interfaces.ErrInvalidParameter, parameterName)
	}
	return nil
}

func validateName(name, parameterName string) error {
	if name == "" {
		return fmt.Errorf("%w: %s must not be empty", interfaces.ErrInvalidParameter, parameterName)
	}
	return nil
}

func (h *RepositoryHandler) logAudit(ctx context.Context, caller interfaces.Caller, action interfaces.AuditAction, operation, typeName, guid, message string, ids map[string]string) {
	h.audit.LogRecord(ctx, interfaces.AuditRecord{
		Time:          time.Now().UTC(),
		UserID:        caller.UserID,
		Action:        action,
		Operation:     operation,
		TypeName:      typeName,
		GUID:          guid,
		Message:       message,
		AdditionalIDs: ids,
	})
}

// isReadable reports whether the entity is effective at the caller's time
// and visible to the caller.
func (h *RepositoryHandler) isReadable(caller interfaces.Caller, entity *interfaces.EntityDetail) bool {
	return entity.IsEffective(caller.EffectiveTime) && h.security.IsVisible(caller, entity)
}

func (h *RepositoryHandler) pageSize(paging interfaces.Paging) (int, error) {
	return paging.Validate(h.maxPageSize)
}

// pageOf returns one page of items, never nil.
func pageOf[T any](items []T, startFrom, pageSize int) []T {
	out := interfaces.Page(items, startFrom, pageSize)
	if out == nil {
		return []T{}
	}
	return out
}

// GetEntity returns the entity guid names when it is of expectedType,
// effective and visible to the caller.
func (h *RepositoryHandler) GetEntity(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType, operation string) (*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	return h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
}

func (h *RepositoryHandler) getEntity(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType, operation string) (*interfaces.EntityDetail, error) {
	if err := validateGUID(guid, guidParameterName); err != nil {
		return nil, err
	}
	entity, err := h.repository.GetEntity(ctx, guid)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	if entity.TypeName == "" {
		return nil, logicError(operation, "entity %s has no type", guid)
	}
	if expectedType != "" && !h.types.IsTypeOf(entity.TypeName, expectedType) {
		return nil, fmt.Errorf("%w: %s %s is a %s, not a %s",
			interfaces.ErrInvalidParameter, guidParameterName, guid, entity.TypeName, expectedType)
	}
	if !h.isReadable(caller, entity) {
		return nil, fmt.Errorf("%w: %s %s is not known to user %s",
			interfaces.ErrInvalidParameter, guidParameterName, guid, caller.UserID)
	}
	return entity, nil
}

func (h *RepositoryHandler) validateClassification(name, typeName string) error {
	def, ok := h.types.ClassificationDef(name)
	if !ok {
		return fmt.Errorf("%w: unknown classification %q", interfaces.ErrInvalidParameter, name)
	}
	for _, valid := range def.ValidEntityTypes {
		if h.types.IsTypeOf(typeName, valid) {
			return nil
		}
	}
	return fmt.Errorf("%w: classification %s cannot be attached to a %s", interfaces.ErrInvalidParameter, name, typeName)
}

// newEntity validates spec and returns the entity to store for it.
func (h *RepositoryHandler) newEntity(caller interfaces.Caller, expectedType string, spec EntitySpec) (*interfaces.EntityDetail, error) {
	if err := h.types.ValidateEntityType(spec.TypeName, expectedType); err != nil {
		return nil, err
	}
	props := spec.Properties.Clone()
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}

	var zones []string
	if h.types.IsTypeOf(spec.TypeName, interfaces.AssetTypeName) {
		zones = h.security.InitialZones(caller, props.GetStringSlice(interfaces.ZoneMembershipProperty))
		props.SetStringSlice(interfaces.ZoneMembershipProperty, zones)
	}
	if err := h.security.ValidateCreate(caller, spec.TypeName, zones); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	classifications := make([]interfaces.Classification, 0, len(spec.Classifications))
	for _, c := range spec.Classifications {
		if err := h.validateClassification(c.Name, spec.TypeName); err != nil {
			return nil, err
		}
		classifications = append(classifications, interfaces.Classification{
			Name:       c.Name,
			Properties: c.Properties.Clone(),
			InstanceAudit: interfaces.InstanceAudit{
				Version:    1,
				CreatedBy:  caller.UserID,
				UpdatedBy:  caller.UserID,
				CreateTime: now,
				UpdateTime: now,
			},
		})
	}

	return &interfaces.EntityDetail{
		TypeName:        spec.TypeName,
		Properties:      props,
		Classifications: classifications,
		InstanceAudit:   interfaces.InstanceAudit{CreatedBy: caller.UserID},
		Effectivity:     spec.Effectivity,
	}, nil
}

// CreateEntity stores a new entity of spec.TypeName, which must be
// expectedType or one of its subtypes. Assets are stamped with their initial
// zones.
func (h *RepositoryHandler) CreateEntity(ctx context.Context, caller interfaces.Caller, expectedType string, spec EntitySpec, operation string) (*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	entity, err := h.newEntity(caller, expectedType, spec)
	if err != nil {
		return nil, err
	}
	created, err := h.repository.CreateEntity(ctx, entity)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}

	h.log.Debug("Created entity",
		slog.String("operation", operation),
		slog.String("typeName", created.TypeName),
		slog.String("guid", created.GUID))
	h.logAudit(ctx, caller, interfaces.AuditCreate, operation, created.TypeName, created.GUID,
		fmt.Sprintf("Created %s", created.TypeName), nil)
	return created, nil
}

// UpdateEntity changes the properties of the entity. Nothing is written when
// the result equals what is stored; the boolean reports whether a write
// happened.
func (h *RepositoryHandler) UpdateEntity(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType string, update EntityUpdate, operation string) (*interfaces.EntityDetail, bool, error) {
	if err := caller.Validate(); err != nil {
		return nil, false, err
	}
	stored, err := h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
	if err != nil {
		return nil, false, err
	}
	if err := h.security.ValidateUpdate(caller, stored); err != nil {
		return nil, false, err
	}

	var props interfaces.InstanceProperties
	if update.Merge {
		props = stored.Properties.Merge(update.Properties)
	} else {
		props = update.Properties.Clone()
		if props == nil {
			props = interfaces.NewInstanceProperties()
		}
	}

	if h.types.IsTypeOf(stored.TypeName, interfaces.AssetTypeName) {
		storedZones := stored.Properties.GetStringSlice(interfaces.ZoneMembershipProperty)
		if !update.Properties.Has(interfaces.ZoneMembershipProperty) {
			props.SetStringSlice(interfaces.ZoneMembershipProperty, storedZones)
		} else if zones := props.GetStringSlice(interfaces.ZoneMembershipProperty); !slices.Equal(zones, storedZones) {
			if err := h.security.ValidateCreate(caller, stored.TypeName, zones); err != nil {
				return nil, false, err
			}
		}
	}

	return h.writeEntity(ctx, caller, stored, props, update.Effectivity, operation)
}

// writeEntity stores props and effectivity on stored unless nothing changes.
func (h *RepositoryHandler) writeEntity(ctx context.Context, caller interfaces.Caller, stored *interfaces.EntityDetail, props interfaces.InstanceProperties, effectivity *interfaces.Effectivity, operation string) (*interfaces.EntityDetail, bool, error) {
	storedProps := stored.Properties
	if storedProps == nil {
		storedProps = interfaces.NewInstanceProperties()
	}
	sameWindow := effectivity == nil || effectivity.Equal(stored.Effectivity)
	if sameWindow && props.Equal(storedProps) {
		return stored, false, nil
	}

	next := stored.Clone()
	next.Properties = props
	next.UpdatedBy = caller.UserID
	if effectivity != nil {
		next.Effectivity = *effectivity
	}
	updated, err := h.repository.UpdateEntity(ctx, next)
	if err != nil {
		return nil, false, h.repositoryError(operation, err)
	}

	h.log.Debug("Updated entity",
		slog.String("operation", operation),
		slog.String("guid", updated.GUID),
		slog.Int64("version", updated.Version))
	h.logAudit(ctx, caller, interfaces.AuditUpdate, operation, updated.TypeName, updated.GUID,
		fmt.Sprintf("Updated %s", updated.TypeName), nil)
	return updated, true, nil
}

// DeleteEntity removes the entity and every relationship attached to it.
func (h *RepositoryHandler) DeleteEntity(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType, operation string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	entity, err := h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
	if err != nil {
		return err
	}
	if err := h.security.ValidateDelete(caller, entity); err != nil {
		return err
	}
	return h.deleteEntity(ctx, caller, entity, operation)
}

func (h *RepositoryHandler) deleteEntity(ctx context.Context, caller interfaces.Caller, entity *interfaces.EntityDetail, operation string) error {
	if err := h.repository.DeleteEntity(ctx, entity.GUID); err != nil {
		return h.repositoryError(operation, err)
	}
	h.log.Debug("Deleted entity",
		slog.String("operation", operation),
		slog.String("guid", entity.GUID))
	h.logAudit(ctx, caller, interfaces.AuditDelete, operation, entity.TypeName, entity.GUID,
		fmt.Sprintf("Deleted %s", entity.TypeName), nil)
	return nil
}

func (h *RepositoryHandler) relationshipDef(typeName string) (interfaces.RelationshipDef, error) {
	def, ok := h.types.RelationshipDef(typeName)
	if !ok {
		return def, fmt.Errorf("%w: unknown relationship type %q", interfaces.ErrInvalidParameter, typeName)
	}
	return def, nil
}

// linkEnds resolves both ends of a relationship of def and checks the caller
// may change them.
func (h *RepositoryHandler) linkEnds(ctx context.Context, caller interfaces.Caller, def interfaces.RelationshipDef, end1GUID, end2GUID, operation string) (*interfaces.EntityDetail, *interfaces.EntityDetail, error) {
	end1, err := h.getEntity(ctx, caller, end1GUID, "end1GUID", def.End1Type, operation)
	if err != nil {
		return nil, nil, err
	}
	end2, err := h.getEntity(ctx, caller, end2GUID, "end2GUID", def.End2Type, operation)
	if err != nil {
		return nil, nil, err
	}
	if err := h.security.ValidateUpdate(caller, end1); err != nil {
		return nil, nil, err
	}
	if err := h.security.ValidateUpdate(caller, end2); err != nil {
		return nil, nil, err
	}
	return end1, end2, nil
}

// between returns the stored relationships of def linking end1 to end2,
// oldest first. Symmetric types match either way round.
func (h *RepositoryHandler) between(ctx context.Context, def interfaces.RelationshipDef, end1GUID, end2GUID, operation string) ([]*interfaces.Relationship, error) {
	rels, err := h.repository.GetRelationshipsForEntity(ctx, end1GUID, def.Name)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	out := make([]*interfaces.Relationship, 0, len(rels))
	for _, rel := range rels {
		if rel.End1.GUID == end1GUID && rel.End2.GUID == end2GUID {
			out = append(out, rel)
		} else if def.Symmetric && rel.Connects(end1GUID, end2GUID) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// LinkElements creates a relationship between two entities. For types that
// permit a single relationship between a pair, an existing relationship is
// updated instead.
func (h *RepositoryHandler) LinkElements(ctx context.Context, caller interfaces.Caller, link Link, operation string) (*interfaces.Relationship, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	def, err := h.relationshipDef(link.TypeName)
	if err != nil {
		return nil, err
	}
	end1, end2, err := h.linkEnds(ctx, caller, def, link.End1GUID, link.End2GUID, operation)
	if err != nil {
		return nil, err
	}

	props := link.Properties.Clone()
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}

	if !def.MultiLink {
		existing, err := h.between(ctx, def, end1.GUID, end2.GUID, operation)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			effectivity := link.Effectivity
			updated, _, err := h.writeRelationship(ctx, caller, existing[0], props, &effectivity, operation)
			return updated, err
		}
	}

	return h.createRelationship(ctx, caller, &interfaces.Relationship{
		TypeName:    def.Name,
		End1:        end1.Proxy(),
		End2:        end2.Proxy(),
		Properties:  props,
		Effectivity: link.Effectivity,
	}, operation)
}

func (h *RepositoryHandler) createRelationship(ctx context.Context, caller interfaces.Caller, rel *interfaces.Relationship, operation string) (*interfaces.Relationship, error) {
	rel.CreatedBy = caller.UserID
	created, err := h.repository.CreateRelationship(ctx, rel)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	h.log.Debug("Linked entities",
		slog.String("operation", operation),
		slog.String("typeName", created.TypeName),
		slog.String("end1", created.End1.GUID),
		slog.String("end2", created.End2.GUID))
	h.logAudit(ctx, caller, interfaces.AuditLink, operation, created.TypeName, created.GUID,
		fmt.Sprintf("Linked %s %s to %s %s", created.End1.TypeName, created.End1.GUID, created.End2.TypeName, created.End2.GUID),
		map[string]string{"end1GUID": created.End1.GUID, "end2GUID": created.End2.GUID})
	return created, nil
}

// findOrCreateRelationship stores rel under uniqueKey unless another
// relationship already holds the key, in which case that one is returned.
func (h *RepositoryHandler) findOrCreateRelationship(ctx context.Context, caller interfaces.Caller, uniqueKey string, rel *interfaces.Relationship, operation string) (*interfaces.Relationship, bool, error) {
	rel.CreatedBy = caller.UserID
	stored, created, err := h.repository.FindOrCreateRelationship(ctx, uniqueKey, rel)
	if err != nil {
		return nil, false, h.repositoryError(operation, err)
	}
	if !created {
		h.log.Debug("Relationship registered concurrently",
			slog.String("operation", operation),
			slog.String("key", uniqueKey),
			slog.String("guid", stored.GUID))
		return stored, false, nil
	}
	h.logAudit(ctx, caller, interfaces.AuditLink, operation, stored.TypeName, stored.GUID,
		fmt.Sprintf("Linked %s %s to %s %s", stored.End1.TypeName, stored.End1.GUID, stored.End2.TypeName, stored.End2.GUID),
		map[string]string{"end1GUID": stored.End1.GUID, "end2GUID": stored.End2.GUID})
	return stored, true, nil
}

// writeRelationship stores props and effectivity on stored unless nothing
// changes.
func (h *RepositoryHandler) writeRelationship(ctx context.Context, caller interfaces.Caller, stored *interfaces.Relationship, props interfaces.InstanceProperties, effectivity *interfaces.Effectivity, operation string) (*interfaces.Relationship, bool, error) {
	storedProps := stored.Properties
	if storedProps == nil {
		storedProps = interfaces.NewInstanceProperties()
	}
	sameWindow := effectivity == nil || effectivity.Equal(stored.Effectivity)
	if sameWindow && props.Equal(storedProps) {
		return stored, false, nil
	}

	next := stored.Clone()
	next.Properties = props
	next.UpdatedBy = caller.UserID
	if effectivity != nil {
		next.Effectivity = *effectivity
	}
	updated, err := h.repository.UpdateRelationship(ctx, next)
	if err != nil {
		return nil, false, h.repositoryError(operation, err)
	}
	h.logAudit(ctx, caller, interfaces.AuditUpdate, operation, updated.TypeName, updated.GUID,
		fmt.Sprintf("Updated %s", updated.TypeName),
		map[string]string{"end1GUID": updated.End1.GUID, "end2GUID": updated.End2.GUID})
	return updated, true, nil
}

// UpdateRelationship changes the properties of a relationship.
func (h *RepositoryHandler) UpdateRelationship(ctx context.Context, caller interfaces.Caller, relationshipGUID, expectedType string, update EntityUpdate, operation string) (*interfaces.Relationship, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	rel, err := h.getRelationship(ctx, caller, relationshipGUID, expectedType, operation)
	if err != nil {
		return nil, err
	}
	end1, err := h.getEntity(ctx, caller, rel.End1.GUID, "end1GUID", "", operation)
	if err != nil {
		return nil, err
	}
	if err := h.security.ValidateUpdate(caller, end1); err != nil {
		return nil, err
	}

	props := update.Properties.Clone()
	if update.Merge {
		props = rel.Properties.Merge(update.Properties)
	}
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}
	updated, _, err := h.writeRelationship(ctx, caller, rel, props, update.Effectivity, operation)
	return updated, err
}

func (h *RepositoryHandler) getRelationship(ctx context.Context, caller interfaces.Caller, guid, expectedType, operation string) (*interfaces.Relationship, error) {
	if err := validateGUID(guid, "relationshipGUID"); err != nil {
		return nil, err
	}
	rel, err := h.repository.GetRelationship(ctx, guid)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	if rel.TypeName == "" {
		return nil, logicError(operation, "relationship %s has no type", guid)
	}
	if expectedType != "" && rel.TypeName != expectedType {
		return nil, fmt.Errorf("%w: relationship %s is a %s, not a %s", interfaces.ErrInvalidParameter, guid, rel.TypeName, expectedType)
	}
	if !rel.IsEffective(caller.EffectiveTime) {
		return nil, fmt.Errorf("%w: relationship %s is not effective", interfaces.ErrInvalidParameter, guid)
	}
	return rel, nil
}

// UnlinkElements removes the relationships of relationshipType between two
// entities. It is not an error when there are none.
func (h *RepositoryHandler) UnlinkElements(ctx context.Context, caller interfaces.Caller, relationshipType, end1GUID, end2GUID, operation string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	def, err := h.relationshipDef(relationshipType)
	if err != nil {
		return err
	}
	end1, end2, err := h.linkEnds(ctx, caller, def, end1GUID, end2GUID, operation)
	if err != nil {
		return err
	}
	rels, err := h.between(ctx, def, end1.GUID, end2.GUID, operation)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := h.deleteRelationship(ctx, caller, rel, operation); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRelationship removes one relationship by GUID.
func (h *RepositoryHandler) DeleteRelationship(ctx context.Context, caller interfaces.Caller, relationshipGUID, expectedType, operation string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	rel, err := h.getRelationship(ctx, caller, relationshipGUID, expectedType, operation)
	if err != nil {
		return err
	}
	end1, err := h.getEntity(ctx, caller, rel.End1.GUID, "end1GUID", "", operation)
	if err != nil {
		return err
	}
	if err := h.security.ValidateUpdate(caller, end1); err != nil {
		return err
	}
	return h.deleteRelationship(ctx, caller, rel, operation)
}

func (h *RepositoryHandler) deleteRelationship(ctx context.Context, caller interfaces.Caller, rel *interfaces.Relationship, operation string) error {
	if err := h.repository.DeleteRelationship(ctx, rel.GUID); err != nil {
		return h.repositoryError(operation, err)
	}
	h.log.Debug("Unlinked entities",
		slog.String("operation", operation),
		slog.String("typeName", rel.TypeName),
		slog.String("guid", rel.GUID))
	h.logAudit(ctx, caller, interfaces.AuditUnlink, operation, rel.TypeName, rel.GUID,
		fmt.Sprintf("Unlinked %s %s from %s %s", rel.End1.TypeName, rel.End1.GUID, rel.End2.TypeName, rel.End2.GUID),
		map[string]string{"end1GUID": rel.End1.GUID, "end2GUID": rel.End2.GUID})
	return nil
}

// relationships returns the effective relationships of relationshipType
// attached to guid, oldest first.
func (h *RepositoryHandler) relationships(ctx context.Context, caller interfaces.Caller, guid, relationshipType, operation string) ([]*interfaces.Relationship, error) {
	rels, err := h.repository.GetRelationshipsForEntity(ctx, guid, relationshipType)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	out := make([]*interfaces.Relationship, 0, len(rels))
	for _, rel := range rels {
		if rel.TypeName == "" {
			return nil, logicError(operation, "relationship %s has no type", rel.GUID)
		}
		if rel.IsEffective(caller.EffectiveTime) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// GetRelationshipsBetween returns the effective relationships of
// relationshipType linking end1 to end2.
func (h *RepositoryHandler) GetRelationshipsBetween(ctx context.Context, caller interfaces.Caller, relationshipType, end1GUID, end2GUID, operation string) ([]*interfaces.Relationship, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	def, err := h.relationshipDef(relationshipType)
	if err != nil {
		return nil, err
	}
	if _, err := h.getEntity(ctx, caller, end1GUID, "end1GUID", def.End1Type, operation); err != nil {
		return nil, err
	}
	if _, err := h.getEntity(ctx, caller, end2GUID, "end2GUID", def.End2Type, operation); err != nil {
		return nil, err
	}
	rels, err := h.between(ctx, def, end1GUID, end2GUID, operation)
	if err != nil {
		return nil, err
	}
	out := make([]*interfaces.Relationship, 0, len(rels))
	for _, rel := range rels {
		if rel.IsEffective(caller.EffectiveTime) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// GetRelatedEntities returns one page of the readable entities linked to
// query.GUID.
func (h *RepositoryHandler) GetRelatedEntities(ctx context.Context, caller interfaces.Caller, query RelatedQuery, paging interfaces.Paging, operation string) ([]RelatedEntity, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := h.pageSize(paging)
	if err != nil {
		return nil, err
	}
	if _, err := h.getEntity(ctx, caller, query.GUID, query.GUIDParameterName, query.GUIDType, operation); err != nil {
		return nil, err
	}
	related, err := h.related(ctx, caller, query, operation)
	if err != nil {
		return nil, err
	}
	return pageOf(related, paging.StartFrom, pageSize), nil
}

// related walks one hop from query.GUID and keeps the readable entities of
// query.RelatedType.
func (h *RepositoryHandler) related(ctx context.Context, caller interfaces.Caller, query RelatedQuery, operation string) ([]RelatedEntity, error) {
	rels, err := h.relationships(ctx, caller, query.GUID, query.RelationshipType, operation)
	if err != nil {
		return nil, err
	}

	out := make([]RelatedEntity, 0, len(rels))
	for _, rel := range rels {
		var other interfaces.EntityProxy
		switch query.RelatedEnd {
		case 1:
			if rel.End2.GUID != query.GUID {
				continue
			}
			other = rel.End1
		case 2:
			if rel.End1.GUID != query.GUID {
				continue
			}
			other = rel.End2
		default:
			other = rel.OtherEnd(query.GUID)
		}

		entity, err := h.repository.GetEntity(ctx, other.GUID)
		if errors.Is(err, interfaces.ErrEntityNotFound) {
			h.log.Warn("Relationship refers to a missing entity",
				slog.String("relationship", rel.GUID),
				slog.String("guid", other.GUID))
			continue
		}
		if err != nil {
			return nil, h.repositoryError(operation, err)
		}
		if entity.TypeName == "" {
			return nil, logicError(operation, "entity %s has no type", entity.GUID)
		}
		if query.RelatedType != "" && !h.types.IsTypeOf(entity.TypeName, query.RelatedType) {
			continue
		}
		if !h.isReadable(caller, entity) {
			continue
		}
		out = append(out, RelatedEntity{Entity: entity, Relationship: rel})
	}
	return out, nil
}

// findEntities searches every subtype of typeName and keeps the readable
// entities accepted by filter.
func (h *RepositoryHandler) findEntities(ctx context.Context, caller interfaces.Caller, typeName string, search interfaces.EntitySearch, filter func(*interfaces.EntityDetail) bool, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := h.pageSize(paging)
	if err != nil {
		return nil, err
	}
	if typeName == "" {
		typeName = interfaces.ReferenceableTypeName
	}
	if err := h.types.ValidateEntityType(typeName, ""); err != nil {
		return nil, err
	}
	search.TypeNames = h.types.SubTypes(typeName)

	entities, err := h.repository.FindEntities(ctx, search)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	out := make([]*interfaces.EntityDetail, 0, len(entities))
	for _, entity := range entities {
		if entity.TypeName == "" {
			return nil, logicError(operation, "entity %s has no type", entity.GUID)
		}
		if !h.isReadable(caller, entity) {
			continue
		}
		if filter != nil && !filter(entity) {
			continue
		}
		out = append(out, entity)
	}
	return pageOf(out, paging.StartFrom, pageSize), nil
}

// FindEntities returns the entities of typeName with a string property that
// matches searchString. searchString is a regular expression that must match
// the whole value.
func (h *RepositoryHandler) FindEntities(ctx context.Context, caller interfaces.Caller, searchString, typeName string, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	if err := validateName(searchString, "searchString"); err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^(?:" + searchString + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: searchString is not a valid regular expression: %v", interfaces.ErrInvalidParameter, err)
	}
	return h.findEntities(ctx, caller, typeName, interfaces.EntitySearch{}, func(entity *interfaces.EntityDetail) bool {
		for _, value := range entity.Properties.StringValues() {
			if re.MatchString(value) {
				return true
			}
		}
		return false
	}, paging, operation)
}

// nameProperties are the properties GetEntitiesByName compares.
var nameProperties = []string{
	interfaces.QualifiedNameProperty,
	interfaces.NameProperty,
	interfaces.DisplayNameProperty,
}

// GetEntitiesByName returns the entities of typeName whose qualifiedName,
// name or displayName equals name.
func (h *RepositoryHandler) GetEntitiesByName(ctx context.Context, caller interfaces.Caller, name, typeName string, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	if err := validateName(name, "name"); err != nil {
		return nil, err
	}
	return h.findEntities(ctx, caller, typeName, interfaces.EntitySearch{}, func(entity *interfaces.EntityDetail) bool {
		for _, property := range nameProperties {
			if entity.Properties.GetString(property) == name {
				return true
			}
		}
		return false
	}, paging, operation)
}

// GetEntitiesByPropertyValue returns the entities of typeName whose string
// property equals value.
func (h *RepositoryHandler) GetEntitiesByPropertyValue(ctx context.Context, caller interfaces.Caller, typeName, propertyName, value string, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	if err := validateName(propertyName, "propertyName"); err != nil {
		return nil, err
	}
	return h.findEntities(ctx, caller, typeName, interfaces.EntitySearch{
		PropertyName:  propertyName,
		PropertyValue: value,
	}, nil, paging, operation)
}

// GetEntitiesByType returns the entities of typeName and its subtypes.
func (h *RepositoryHandler) GetEntitiesByType(ctx context.Context, caller interfaces.Caller, typeName string, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	return h.findEntities(ctx, caller, typeName, interfaces.EntitySearch{}, nil, paging, operation)
}

// GetEntitiesByClassification returns the entities of typeName carrying the
// named classification.
func (h *RepositoryHandler) GetEntitiesByClassification(ctx context.Context, caller interfaces.Caller, typeName, classificationName string, paging interfaces.Paging, operation string) ([]*interfaces.EntityDetail, error) {
	if err := validateName(classificationName, "classificationName"); err != nil {
		return nil, err
	}
	if _, ok := h.types.ClassificationDef(classificationName); !ok {
		return nil, fmt.Errorf("%w: unknown classification %q", interfaces.ErrInvalidParameter, classificationName)
	}
	return h.findEntities(ctx, caller, typeName, interfaces.EntitySearch{}, func(entity *interfaces.EntityDetail) bool {
		return entity.Classification(classificationName) != nil
	}, paging, operation)
}

// SetClassification attaches the named classification to the entity or
// replaces the properties of the one already attached.
func (h *RepositoryHandler) SetClassification(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType, classificationName string, props interfaces.InstanceProperties, operation string) (*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	entity, err := h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
	if err != nil {
		return nil, err
	}
	if err := h.validateClassification(classificationName, entity.TypeName); err != nil {
		return nil, err
	}
	if err := h.security.ValidateUpdate(caller, entity); err != nil {
		return nil, err
	}
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}

	next := entity.Clone()
	now := time.Now().UTC()
	if existing := next.Classification(classificationName); existing != nil {
		storedProps := existing.Properties
		if storedProps == nil {
			storedProps = interfaces.NewInstanceProperties()
		}
		if props.Equal(storedProps) {
			return entity, nil
		}
		existing.Properties = props.Clone()
		existing.Version++
		existing.UpdatedBy = caller.UserID
		existing.UpdateTime = now
	} else {
		next.Classifications = append(next.Classifications, interfaces.Classification{
			Name:       classificationName,
			Properties: props.Clone(),
			InstanceAudit: interfaces.InstanceAudit{
				Version:    1,
				CreatedBy:  caller.UserID,
				UpdatedBy:  caller.UserID,
				CreateTime: now,
				UpdateTime: now,
			},
		})
	}
	next.UpdatedBy = caller.UserID

	updated, err := h.repository.UpdateEntity(ctx, next)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	h.logAudit(ctx, caller, interfaces.AuditUpdate, operation, updated.TypeName, updated.GUID,
		fmt.Sprintf("Classified %s as %s", updated.TypeName, classificationName), nil)
	return updated, nil
}

// RemoveClassification detaches the named classification. It is not an error
// when the entity does not carry it.
func (h *RepositoryHandler) RemoveClassification(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType, classificationName, operation string) (*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	entity, err := h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
	if err != nil {
		return nil, err
	}
	if err := h.validateClassification(classificationName, entity.TypeName); err != nil {
		return nil, err
	}
	if entity.Classification(classificationName) == nil {
		return entity, nil
	}
	if err := h.security.ValidateUpdate(caller, entity); err != nil {
		return nil, err
	}

	next := entity.Clone()
	next.Classifications = slices.DeleteFunc(next.Classifications, func(c interfaces.Classification) bool {
		return c.Name == classificationName
	})
	next.UpdatedBy = caller.UserID
	updated, err := h.repository.UpdateEntity(ctx, next)
	if err != nil {
		return nil, h.repositoryError(operation, err)
	}
	h.logAudit(ctx, caller, interfaces.AuditUpdate, operation, updated.TypeName, updated.GUID,
		fmt.Sprintf("Declassified %s %s", classificationName, updated.TypeName), nil)
	return updated, nil
}

// SetZoneMembership replaces the zones of an asset. An empty list removes the
// asset from every zone.
func (h *RepositoryHandler) SetZoneMembership(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, expectedType string, zones []string, operation string) (*interfaces.EntityDetail, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	stored, err := h.getEntity(ctx, caller, guid, guidParameterName, expectedType, operation)
	if err != nil {
		return nil, err
	}
	if !h.types.IsTypeOf(stored.TypeName, interfaces.AssetTypeName) {
		return nil, fmt.Errorf("%w: %s %s is a %s and has no zones", interfaces.ErrInvalidParameter, guidParameterName, guid, stored.TypeName)
	}
	if err := h.security.ValidateUpdate(caller, stored); err != nil {
		return nil, err
	}
	if err := h.security.ValidateCreate(caller, stored.TypeName, zones); err != nil {
		return nil, err
	}
	props := stored.Properties.Clone()
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}
	props.SetStringSlice(interfaces.ZoneMembershipProperty, zones)
	updated, _, err := h.writeEntity(ctx, caller, stored, props, nil, operation)
	return updated, err
}
