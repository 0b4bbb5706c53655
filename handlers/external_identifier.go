package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/metrics"
)

const externalIDHandlerName = "ExternalIdentifierHandler"

// Correlation names an element, a third-party identifier for it and the
// scope (normally a software capability) that issued the identifier.
type Correlation struct {
	ElementGUID     string `json:"elementGUID"`
	ElementTypeName string `json:"elementTypeName,omitempty"`
	Identifier      string `json:"identifier"`
	ScopeGUID       string `json:"scopeGUID"`
	ScopeTypeName   string `json:"scopeTypeName,omitempty"`
}

// externalIDKey is the unique key an ExternalId is registered under in the
// repository. Scope GUIDs never contain a colon.
func externalIDKey(scopeGUID, identifier string) string {
	return "ExternalId:" + scopeGUID + ":" + identifier
}

// scopeLinkKey and elementLinkKey register the ExternalIdScope and
// ExternalIdLink relationships, one per pair of ends.
func scopeLinkKey(scopeGUID, externalIDGUID string) string {
	return interfaces.ExternalIDScopeTypeName + ":" + scopeGUID + ":" + externalIDGUID
}

func elementLinkKey(elementGUID, externalIDGUID string) string {
	return interfaces.ExternalIDLinkTypeName + ":" + elementGUID + ":" + externalIDGUID
}

func observe(handler, operation string) {
	metrics.HandlerCalls.WithLabelValues(handler, operation).Inc()
}

// ExternalIdentifierHandler keeps the correlation between open metadata
// elements and the identifiers third-party systems use for them.
//
// An ExternalId entity is identified by its identifier together with the
// scope it is linked to through ExternalIdScope; there is at most one per
// pair. Elements are linked to it through ExternalIdLink. X is the bean
// returned for ExternalId entities and E the bean returned for elements.
type ExternalIdentifierHandler[X, E any] struct {
	repo                *RepositoryHandler
	externalIDConverter Converter[X]
	elementConverter    Converter[E]
	log                 *slog.Logger
}

// NewExternalIdentifierHandler creates a handler converting results with the
// given converters.
func NewExternalIdentifierHandler[X, E any](repo *RepositoryHandler, externalIDConverter Converter[X], elementConverter Converter[E], log *slog.Logger) *ExternalIdentifierHandler[X, E] {
	if log == nil {
		log = slog.Default()
	}
	return &ExternalIdentifierHandler[X, E]{
		repo:                repo,
		externalIDConverter: externalIDConverter,
		elementConverter:    elementConverter,
		log:                 log.With("handler", externalIDHandlerName),
	}
}

func (h *ExternalIdentifierHandler[X, E]) resolveEntity(ctx context.Context, caller interfaces.Caller, guid, guidParameterName, typeName, operation string) (*interfaces.EntityDetail, error) {
	if typeName == "" {
		typeName = interfaces.ReferenceableTypeName
	} else if err := h.repo.types.ValidateEntityType(typeName, interfaces.ReferenceableTypeName); err != nil {
		return nil, err
	}
	return h.repo.getEntity(ctx, caller, guid, guidParameterName, typeName, operation)
}

// resolveCorrelation returns the element and scope ref names and checks the
// caller may change both.
func (h *ExternalIdentifierHandler[X, E]) resolveCorrelation(ctx context.Context, caller interfaces.Caller, ref Correlation, operation string) (*interfaces.EntityDetail, *interfaces.EntityDetail, error) {
	if err := validateName(ref.Identifier, "identifier"); err != nil {
		return nil, nil, err
	}
	element, err := h.resolveEntity(ctx, caller, ref.ElementGUID, "elementGUID", ref.ElementTypeName, operation)
	if err != nil {
		return nil, nil, err
	}
	scope, err := h.resolveEntity(ctx, caller, ref.ScopeGUID, "scopeGUID", ref.ScopeTypeName, operation)
	if err != nil {
		return nil, nil, err
	}
	if err := h.repo.security.ValidateUpdate(caller, element); err != nil {
		return nil, nil, err
	}
	if err := h.repo.security.ValidateUpdate(caller, scope); err != nil {
		return nil, nil, err
	}
	return element, scope, nil
}

// findScoped returns the ExternalId holding identifier that is linked to
// scopeGUID, with that scope link. Candidates are examined oldest first and
// the first one linked to the scope wins. Both results are nil when there is
// no match.
func (h *ExternalIdentifierHandler[X, E]) findScoped(ctx context.Context, identifier, scopeGUID, operation string) (*interfaces.EntityDetail, *interfaces.Relationship, error) {
	candidates, err := h.repo.repository.FindEntities(ctx, interfaces.EntitySearch{
		TypeNames:     h.repo.types.SubTypes(interfaces.ExternalIDTypeName),
		PropertyName:  interfaces.IdentifierProperty,
		PropertyValue: identifier,
	})
	if err != nil {
		return nil, nil, h.repo.repositoryError(operation, err)
	}
	for _, candidate := range candidates {
		if candidate.TypeName == "" {
			return nil, nil, logicError(operation, "external identifier %s has no type", candidate.GUID)
		}
		link, err := h.scopeLink(ctx, candidate.GUID, scopeGUID, operation)
		if err != nil {
			return nil, nil, err
		}
		if link != nil {
			return candidate, link, nil
		}
	}
	return nil, nil, nil
}

func (h *ExternalIdentifierHandler[X, E]) scopeLink(ctx context.Context, externalIDGUID, scopeGUID, operation string) (*interfaces.Relationship, error) {
	rels, err := h.repo.repository.GetRelationshipsForEntity(ctx, externalIDGUID, interfaces.ExternalIDScopeTypeName)
	if err != nil {
		return nil, h.repo.repositoryError(operation, err)
	}
	for _, rel := range rels {
		if rel.End1.GUID == scopeGUID && rel.End2.GUID == externalIDGUID {
			return rel, nil
		}
	}
	return nil, nil
}

func (h *ExternalIdentifierHandler[X, E]) elementLink(ctx context.Context, externalIDGUID, elementGUID, operation string) (*interfaces.Relationship, error) {
	rels, err := h.repo.repository.GetRelationshipsForEntity(ctx, externalIDGUID, interfaces.ExternalIDLinkTypeName)
	if err != nil {
		return nil, h.repo.repositoryError(operation, err)
	}
	for _, rel := range rels {
		if rel.End1.GUID == elementGUID && rel.End2.GUID == externalIDGUID {
			return rel, nil
		}
	}
	return nil, nil
}

// SetUpExternalIdentifier records that the third party owning the scope
// knows the element by an identifier. The first call creates the ExternalId,
// its scope link and its link to the element; later calls update whatever
// differs and write nothing when everything matches.
//
// The identifier is taken from ref, or from props when ref leaves it empty.
// It returns the GUID of the ExternalId.
func (h *ExternalIdentifierHandler[X, E]) SetUpExternalIdentifier(ctx context.Context, caller interfaces.Caller, ref Correlation, props beans.ExternalIdentifierProperties) (string, error) {
	const operation = "SetUpExternalIdentifier"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return "", err
	}
	switch {
	case ref.Identifier == "":
		ref.Identifier = props.Identifier
	case props.Identifier == "":
		props.Identifier = ref.Identifier
	case props.Identifier != ref.Identifier:
		return "", fmt.Errorf("%w: identifier %q does not match properties identifier %q",
			interfaces.ErrInvalidParameter, ref.Identifier, props.Identifier)
	}
	if err := props.Validate(); err != nil {
		return "", err
	}
	element, scope, err := h.resolveCorrelation(ctx, caller, ref, operation)
	if err != nil {
		return "", err
	}

	externalID, scopeLink, err := h.findScoped(ctx, ref.Identifier, scope.GUID, operation)
	if err != nil {
		return "", err
	}
	created := false
	if externalID == nil {
		externalID, scopeLink, created, err = h.createScoped(ctx, caller, scope, props, operation)
		if err != nil {
			return "", err
		}
	}

	if created {
		metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeCreated).Inc()
	} else {
		externalID, err = h.updateScoped(ctx, caller, externalID, scopeLink, props, operation)
		if err != nil {
			return "", err
		}
	}

	if err := h.linkElement(ctx, caller, externalID, element, props, operation); err != nil {
		return "", err
	}
	return externalID.GUID, nil
}

// createScoped registers a new ExternalId for (identifier, scope) together
// with its scope link. When another writer registered either first, its
// record is returned instead, and a missing scope link is recreated. The
// boolean reports whether this call created the ExternalId.
func (h *ExternalIdentifierHandler[X, E]) createScoped(ctx context.Context, caller interfaces.Caller, scope *interfaces.EntityDetail, props beans.ExternalIdentifierProperties, operation string) (*interfaces.EntityDetail, *interfaces.Relationship, bool, error) {
	entity, err := h.repo.newEntity(caller, interfaces.ExternalIDTypeName, EntitySpec{
		TypeName:    interfaces.ExternalIDTypeName,
		Properties:  props.InstanceProperties(),
		Effectivity: props.Effectivity,
	})
	if err != nil {
		return nil, nil, false, err
	}

	externalID, created, err := h.repo.repository.FindOrCreateEntity(ctx, externalIDKey(scope.GUID, props.Identifier), entity)
	if err != nil {
		return nil, nil, false, h.repo.repositoryError(operation, err)
	}
	if externalID.TypeName == "" {
		return nil, nil, false, logicError(operation, "external identifier %s has no type", externalID.GUID)
	}

	if created {
		h.log.Debug("Created external identifier",
			slog.String("guid", externalID.GUID),
			slog.String("identifier", props.Identifier),
			slog.String("scopeGUID", scope.GUID))
		h.repo.logAudit(ctx, caller, interfaces.AuditCreate, operation, externalID.TypeName, externalID.GUID,
			fmt.Sprintf("Created external identifier %s for scope %s", props.Identifier, scope.GUID),
			map[string]string{"scopeGUID": scope.GUID})
	} else {
		h.log.Debug("External identifier registered concurrently",
			slog.String("guid", externalID.GUID),
			slog.String("identifier", props.Identifier))
	}

	scopeLink, _, err := h.repo.findOrCreateRelationship(ctx, caller, scopeLinkKey(scope.GUID, externalID.GUID), &interfaces.Relationship{
		TypeName:    interfaces.ExternalIDScopeTypeName,
		End1:        scope.Proxy(),
		End2:        externalID.Proxy(),
		Properties:  props.ScopeProperties(),
		Effectivity: props.ScopeEffectivity,
	}, operation)
	if err != nil {
		return nil, nil, false, err
	}
	return externalID, scopeLink, created, nil
}

// updateScoped brings a matched ExternalId and its scope link in line with
// props. Properties the caller does not control are kept.
func (h *ExternalIdentifierHandler[X, E]) updateScoped(ctx context.Context, caller interfaces.Caller, externalID *interfaces.EntityDetail, scopeLink *interfaces.Relationship, props beans.ExternalIdentifierProperties, operation string) (*interfaces.EntityDetail, error) {
	next := replaceProperties(externalID.Properties, beans.ExternalIdentifierEntityProperties, props.InstanceProperties())
	effectivity := props.Effectivity
	updated, changed, err := h.repo.writeEntity(ctx, caller, externalID, next, &effectivity, operation)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUpdated).Inc()
	} else {
		metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUnchanged).Inc()
	}

	if scopeLink != nil {
		scopeProps := replaceProperties(scopeLink.Properties,
			[]string{interfaces.PermittedSyncProperty, interfaces.DescriptionProperty},
			props.ScopeProperties())
		scopeEffectivity := props.ScopeEffectivity
		if _, _, err := h.repo.writeRelationship(ctx, caller, scopeLink, scopeProps, &scopeEffectivity, operation); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// linkElement creates the ExternalIdLink between the element and the
// ExternalId, or updates the caller controlled properties of the existing
// one when they differ. A link registered concurrently by another writer is
// treated as existing.
func (h *ExternalIdentifierHandler[X, E]) linkElement(ctx context.Context, caller interfaces.Caller, externalID, element *interfaces.EntityDetail, props beans.ExternalIdentifierProperties, operation string) error {
	link, err := h.elementLink(ctx, externalID.GUID, element.GUID, operation)
	if err != nil {
		return err
	}
	if link == nil {
		var created bool
		link, created, err = h.repo.findOrCreateRelationship(ctx, caller, elementLinkKey(element.GUID, externalID.GUID), &interfaces.Relationship{
			TypeName:    interfaces.ExternalIDLinkTypeName,
			End1:        element.Proxy(),
			End2:        externalID.Proxy(),
			Properties:  props.LinkProperties(),
			Effectivity: props.LinkEffectivity,
		}, operation)
		if err != nil {
			return err
		}
		if created {
			metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeLinked).Inc()
			return nil
		}
	}

	next := replaceProperties(link.Properties, beans.ExternalIdentifierLinkProperties, props.LinkProperties())
	effectivity := props.LinkEffectivity
	_, changed, err := h.repo.writeRelationship(ctx, caller, link, next, &effectivity, operation)
	if err != nil {
		return err
	}
	if changed {
		metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUpdated).Inc()
	} else {
		metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeUnchanged).Inc()
	}
	return nil
}

// replaceProperties returns a copy of stored with the named properties
// replaced by their values in desired.
func replaceProperties(stored interfaces.InstanceProperties, names []string, desired interfaces.InstanceProperties) interfaces.InstanceProperties {
	next := stored.Clone()
	if next == nil {
		next = interfaces.NewInstanceProperties()
	}
	for _, name := range names {
		next.Remove(name)
		if desired.Has(name) {
			next[name] = desired[name]
		}
	}
	return next
}

// UpdateExternalIdentifier changes the properties of an ExternalId. Its
// identifier cannot change. With merge, properties left empty in props keep
// their stored values.
func (h *ExternalIdentifierHandler[X, E]) UpdateExternalIdentifier(ctx context.Context, caller interfaces.Caller, externalIDGUID string, props beans.ExternalIdentifierProperties, merge bool) (X, error) {
	const operation = "UpdateExternalIdentifier"
	observe(externalIDHandlerName, operation)

	var zero X
	if err := caller.Validate(); err != nil {
		return zero, err
	}
	stored, err := h.repo.getEntity(ctx, caller, externalIDGUID, "externalIdGUID", interfaces.ExternalIDTypeName, operation)
	if err != nil {
		return zero, err
	}
	if err := h.repo.security.ValidateUpdate(caller, stored); err != nil {
		return zero, err
	}
	identifier := stored.Properties.GetString(interfaces.IdentifierProperty)
	if props.Identifier != "" && props.Identifier != identifier {
		return zero, fmt.Errorf("%w: the identifier of external identifier %s cannot be changed",
			interfaces.ErrInvalidParameter, externalIDGUID)
	}
	props.Identifier = identifier
	if err := props.Validate(); err != nil {
		return zero, err
	}

	desired := props.InstanceProperties()
	var next interfaces.InstanceProperties
	var effectivity *interfaces.Effectivity
	if merge {
		if props.KeyPattern == "" {
			desired.Remove(interfaces.KeyPatternProperty)
		}
		next = stored.Properties.Merge(desired)
		if props.EffectiveFrom != nil || props.EffectiveTo != nil {
			effectivity = &props.Effectivity
		}
	} else {
		next = replaceProperties(stored.Properties, beans.ExternalIdentifierEntityProperties, desired)
		effectivity = &props.Effectivity
	}

	updated, _, err := h.repo.writeEntity(ctx, caller, stored, next, effectivity, operation)
	if err != nil {
		return zero, err
	}
	return h.externalIDConverter(updated, nil)
}

// ConfirmSynchronization records that the element and its third-party copy
// were synchronized now. The ExternalId and its link to the element must
// already exist. It returns the ExternalId as seen through the updated link.
func (h *ExternalIdentifierHandler[X, E]) ConfirmSynchronization(ctx context.Context, caller interfaces.Caller, ref Correlation) (X, error) {
	const operation = "ConfirmSynchronization"
	observe(externalIDHandlerName, operation)

	var zero X
	if err := caller.Validate(); err != nil {
		return zero, err
	}
	element, scope, err := h.resolveCorrelation(ctx, caller, ref, operation)
	if err != nil {
		return zero, err
	}
	externalID, _, err := h.findScoped(ctx, ref.Identifier, scope.GUID, operation)
	if err != nil {
		return zero, err
	}
	if externalID == nil {
		return zero, fmt.Errorf("%w: unknown external identity %q for scope %s",
			interfaces.ErrInvalidParameter, ref.Identifier, scope.GUID)
	}
	link, err := h.elementLink(ctx, externalID.GUID, element.GUID, operation)
	if err != nil {
		return zero, err
	}
	if link == nil {
		return zero, fmt.Errorf("%w: unknown resource link between %s and external identity %q",
			interfaces.ErrInvalidParameter, element.GUID, ref.Identifier)
	}

	next := link.Clone()
	if next.Properties == nil {
		next.Properties = interfaces.NewInstanceProperties()
	}
	next.Properties.SetTime(interfaces.LastSynchronizedProperty, time.Now().UTC())
	next.UpdatedBy = caller.UserID
	updated, err := h.repo.repository.UpdateRelationship(ctx, next)
	if err != nil {
		return zero, h.repo.repositoryError(operation, err)
	}

	metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeConfirmed).Inc()
	h.repo.logAudit(ctx, caller, interfaces.AuditSync, operation, updated.TypeName, updated.GUID,
		fmt.Sprintf("Confirmed synchronization of %s with external identity %s", element.GUID, ref.Identifier),
		map[string]string{"elementGUID": element.GUID, "scopeGUID": scope.GUID, "externalIdGUID": externalID.GUID})
	return h.externalIDConverter(externalID, updated)
}

// RemoveExternalIdentifier unlinks the element from its identifier in the
// scope. The ExternalId itself is deleted once no element links to it.
func (h *ExternalIdentifierHandler[X, E]) RemoveExternalIdentifier(ctx context.Context, caller interfaces.Caller, ref Correlation) error {
	const operation = "RemoveExternalIdentifier"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return err
	}
	element, scope, err := h.resolveCorrelation(ctx, caller, ref, operation)
	if err != nil {
		return err
	}
	externalID, _, err := h.findScoped(ctx, ref.Identifier, scope.GUID, operation)
	if err != nil {
		return err
	}
	if externalID == nil {
		return fmt.Errorf("%w: unknown external identity %q for scope %s",
			interfaces.ErrInvalidParameter, ref.Identifier, scope.GUID)
	}
	link, err := h.elementLink(ctx, externalID.GUID, element.GUID, operation)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%w: unknown resource link between %s and external identity %q",
			interfaces.ErrInvalidParameter, element.GUID, ref.Identifier)
	}
	if err := h.repo.deleteRelationship(ctx, caller, link, operation); err != nil {
		return err
	}

	remaining, err := h.repo.repository.GetRelationshipsForEntity(ctx, externalID.GUID, interfaces.ExternalIDLinkTypeName)
	if err != nil {
		return h.repo.repositoryError(operation, err)
	}
	if len(remaining) == 0 {
		if err := h.repo.deleteEntity(ctx, caller, externalID, operation); err != nil {
			return err
		}
	}
	metrics.ExternalIDOutcomes.WithLabelValues(metrics.OutcomeRemoved).Inc()
	return nil
}

// GetExternalIdentifier returns the identifier registered in the scope.
func (h *ExternalIdentifierHandler[X, E]) GetExternalIdentifier(ctx context.Context, caller interfaces.Caller, scopeGUID, scopeTypeName, identifier string) (X, error) {
	const operation = "GetExternalIdentifier"
	observe(externalIDHandlerName, operation)

	var zero X
	if err := caller.Validate(); err != nil {
		return zero, err
	}
	if err := validateName(identifier, "identifier"); err != nil {
		return zero, err
	}
	scope, err := h.resolveEntity(ctx, caller, scopeGUID, "scopeGUID", scopeTypeName, operation)
	if err != nil {
		return zero, err
	}
	externalID, scopeLink, err := h.findScoped(ctx, identifier, scope.GUID, operation)
	if err != nil {
		return zero, err
	}
	if externalID == nil || !h.repo.isReadable(caller, externalID) {
		return zero, fmt.Errorf("%w: unknown external identity %q for scope %s",
			interfaces.ErrInvalidParameter, identifier, scope.GUID)
	}
	return h.externalIDConverter(externalID, scopeLink)
}

// GetExternalIdentifiersForElement returns the identifiers linked to the
// element, optionally only those issued by scopeGUID.
func (h *ExternalIdentifierHandler[X, E]) GetExternalIdentifiersForElement(ctx context.Context, caller interfaces.Caller, elementGUID, elementTypeName, scopeGUID string, paging interfaces.Paging) ([]X, error) {
	const operation = "GetExternalIdentifiersForElement"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := h.repo.pageSize(paging)
	if err != nil {
		return nil, err
	}
	element, err := h.resolveEntity(ctx, caller, elementGUID, "elementGUID", elementTypeName, operation)
	if err != nil {
		return nil, err
	}
	if scopeGUID != "" {
		if _, err := h.resolveEntity(ctx, caller, scopeGUID, "scopeGUID", "", operation); err != nil {
			return nil, err
		}
	}

	related, err := h.repo.related(ctx, caller, RelatedQuery{
		GUID:             element.GUID,
		RelationshipType: interfaces.ExternalIDLinkTypeName,
		RelatedEnd:       2,
		RelatedType:      interfaces.ExternalIDTypeName,
	}, operation)
	if err != nil {
		return nil, err
	}
	if scopeGUID != "" {
		inScope := make([]RelatedEntity, 0, len(related))
		for _, r := range related {
			link, err := h.scopeLink(ctx, r.Entity.GUID, scopeGUID, operation)
			if err != nil {
				return nil, err
			}
			if link != nil && link.IsEffective(caller.EffectiveTime) {
				inScope = append(inScope, r)
			}
		}
		related = inScope
	}
	return convertAll(pageOf(related, paging.StartFrom, pageSize), h.externalIDConverter)
}

// GetExternalIdentifiersForScope returns the identifiers the scope issued.
func (h *ExternalIdentifierHandler[X, E]) GetExternalIdentifiersForScope(ctx context.Context, caller interfaces.Caller, scopeGUID, scopeTypeName string, paging interfaces.Paging) ([]X, error) {
	const operation = "GetExternalIdentifiersForScope"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := h.repo.pageSize(paging)
	if err != nil {
		return nil, err
	}
	scope, err := h.resolveEntity(ctx, caller, scopeGUID, "scopeGUID", scopeTypeName, operation)
	if err != nil {
		return nil, err
	}
	related, err := h.repo.related(ctx, caller, RelatedQuery{
		GUID:             scope.GUID,
		RelationshipType: interfaces.ExternalIDScopeTypeName,
		RelatedEnd:       2,
		RelatedType:      interfaces.ExternalIDTypeName,
	}, operation)
	if err != nil {
		return nil, err
	}
	return convertAll(pageOf(related, paging.StartFrom, pageSize), h.externalIDConverter)
}

// GetElementsForExternalIdentifier returns the elements the scope knows by
// identifier. The result is empty when the scope never issued it.
func (h *ExternalIdentifierHandler[X, E]) GetElementsForExternalIdentifier(ctx context.Context, caller interfaces.Caller, scopeGUID, scopeTypeName, identifier string, paging interfaces.Paging) ([]E, error) {
	const operation = "GetElementsForExternalIdentifier"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if err := validateName(identifier, "identifier"); err != nil {
		return nil, err
	}
	pageSize, err := h.repo.pageSize(paging)
	if err != nil {
		return nil, err
	}
	scope, err := h.resolveEntity(ctx, caller, scopeGUID, "scopeGUID", scopeTypeName, operation)
	if err != nil {
		return nil, err
	}
	externalID, _, err := h.findScoped(ctx, identifier, scope.GUID, operation)
	if err != nil {
		return nil, err
	}
	if externalID == nil || !h.repo.isReadable(caller, externalID) {
		return []E{}, nil
	}
	related, err := h.repo.related(ctx, caller, RelatedQuery{
		GUID:             externalID.GUID,
		RelationshipType: interfaces.ExternalIDLinkTypeName,
		RelatedEnd:       1,
	}, operation)
	if err != nil {
		return nil, err
	}
	return convertAll(pageOf(related, paging.StartFrom, pageSize), h.elementConverter)
}

// GetElementEntitiesForScope returns every element linked to an identifier
// the scope issued, optionally restricted to elementTypeName. Each element is
// returned once, reached through its oldest link.
func (h *ExternalIdentifierHandler[X, E]) GetElementEntitiesForScope(ctx context.Context, caller interfaces.Caller, scopeGUID, scopeTypeName, elementTypeName string, paging interfaces.Paging) ([]E, error) {
	const operation = "GetElementEntitiesForScope"
	observe(externalIDHandlerName, operation)

	if err := caller.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := h.repo.pageSize(paging)
	if err != nil {
		return nil, err
	}
	if elementTypeName != "" {
		if err := h.repo.types.ValidateEntityType(elementTypeName, ""); err != nil {
			return nil, err
		}
	}
	scope, err := h.resolveEntity(ctx, caller, scopeGUID, "scopeGUID", scopeTypeName, operation)
	if err != nil {
		return nil, err
	}
	externalIDs, err := h.repo.related(ctx, caller, RelatedQuery{
		GUID:             scope.GUID,
		RelationshipType: interfaces.ExternalIDScopeTypeName,
		RelatedEnd:       2,
		RelatedType:      interfaces.ExternalIDTypeName,
	}, operation)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var elements []RelatedEntity
	for _, externalID := range externalIDs {
		related, err := h.repo.related(ctx, caller, RelatedQuery{
			GUID:             externalID.Entity.GUID,
			RelationshipType: interfaces.ExternalIDLinkTypeName,
			RelatedEnd:       1,
			RelatedType:      elementTypeName,
		}, operation)
		if err != nil {
			return nil, err
		}
		for _, r := range related {
			if seen[r.Entity.GUID] {
				continue
			}
			seen[r.Entity.GUID] = true
			elements = append(elements, r)
		}
	}
	return convertAll(pageOf(elements, paging.StartFrom, pageSize), h.elementConverter)
}

// convertAll converts each related entity, never returning nil on success.
func convertAll[B any](related []RelatedEntity, convert Converter[B]) ([]B, error) {
	out := make([]B, 0, len(related))
	for _, r := range related {
		bean, err := convert(r.Entity, r.Relationship)
		if err != nil {
			return nil, err
		}
		out = append(out, bean)
	}
	return out, nil
}
