package handlers

import (
	"context"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// GovernanceZoneHandler manages governance zones, their nesting and the
// definitions that govern them.
type GovernanceZoneHandler[B any] struct {
	beanHandler[B]
	definitions Converter[*beans.GovernanceDefinitionElement]
}

// NewGovernanceZoneHandler returns a handler that converts zones with convert.
func NewGovernanceZoneHandler[B any](repo *RepositoryHandler, convert Converter[B], log *slog.Logger) *GovernanceZoneHandler[B] {
	return &GovernanceZoneHandler[B]{
		beanHandler: newBeanHandler(repo, convert, interfaces.GovernanceZoneTypeName, "GovernanceZoneHandler", log),
		definitions: beans.NewGovernanceDefinitionElement,
	}
}

// CreateGovernanceZone stores a new zone and returns its GUID.
func (h *GovernanceZoneHandler[B]) CreateGovernanceZone(ctx context.Context, caller interfaces.Caller, props beans.GovernanceZoneProperties) (string, error) {
	return h.create(ctx, caller, "", props, props.Effectivity, nil, "CreateGovernanceZone")
}

// UpdateGovernanceZone replaces or, with merge, merges the zone's properties.
func (h *GovernanceZoneHandler[B]) UpdateGovernanceZone(ctx context.Context, caller interfaces.Caller, guid string, props beans.GovernanceZoneProperties, merge bool) error {
	return h.update(ctx, caller, guid, props, props.Effectivity, merge, "UpdateGovernanceZone")
}

// RemoveGovernanceZone deletes the zone and its relationships.
func (h *GovernanceZoneHandler[B]) RemoveGovernanceZone(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.remove(ctx, caller, guid, "RemoveGovernanceZone")
}

// GetGovernanceZone returns the zone with guid.
func (h *GovernanceZoneHandler[B]) GetGovernanceZone(ctx context.Context, caller interfaces.Caller, guid string) (B, error) {
	return h.get(ctx, caller, guid, "GetGovernanceZone")
}

// FindGovernanceZones returns the zones matching searchString.
func (h *GovernanceZoneHandler[B]) FindGovernanceZones(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging) ([]B, error) {
	return h.find(ctx, caller, searchString, paging, "FindGovernanceZones")
}

// GetGovernanceZonesByName returns the zones named name.
func (h *GovernanceZoneHandler[B]) GetGovernanceZonesByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging) ([]B, error) {
	return h.getByName(ctx, caller, name, paging, "GetGovernanceZonesByName")
}

// GetGovernanceZonesByDomain returns the zones of the governance domain.
// beans.AllDomains matches every zone.
func (h *GovernanceZoneHandler[B]) GetGovernanceZonesByDomain(ctx context.Context, caller interfaces.Caller, domainIdentifier int64, paging interfaces.Paging) ([]B, error) {
	return h.getByDomain(ctx, caller, "", domainIdentifier, paging, "GetGovernanceZonesByDomain")
}

// LinkZoneHierarchy nests childZoneGUID inside parentZoneGUID.
func (h *GovernanceZoneHandler[B]) LinkZoneHierarchy(ctx context.Context, caller interfaces.Caller, parentZoneGUID, childZoneGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.ZoneHierarchyTypeName, parentZoneGUID, childZoneGUID, nil, interfaces.Effectivity{}, "LinkZoneHierarchy")
}

// UnlinkZoneHierarchy removes childZoneGUID from parentZoneGUID.
func (h *GovernanceZoneHandler[B]) UnlinkZoneHierarchy(ctx context.Context, caller interfaces.Caller, parentZoneGUID, childZoneGUID string) error {
	return h.unlink(ctx, caller, interfaces.ZoneHierarchyTypeName, parentZoneGUID, childZoneGUID, "UnlinkZoneHierarchy")
}

// GetNestedZones returns the zones directly inside parentZoneGUID.
func (h *GovernanceZoneHandler[B]) GetNestedZones(ctx context.Context, caller interfaces.Caller, parentZoneGUID string, paging interfaces.Paging) ([]B, error) {
	return h.related(ctx, caller, parentZoneGUID, interfaces.ZoneHierarchyTypeName, 2, paging, "GetNestedZones")
}

// LinkZoneGovernance records that a governance definition applies to a zone.
func (h *GovernanceZoneHandler[B]) LinkZoneGovernance(ctx context.Context, caller interfaces.Caller, zoneGUID, definitionGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.ZoneGovernanceTypeName, zoneGUID, definitionGUID, nil, interfaces.Effectivity{}, "LinkZoneGovernance")
}

// UnlinkZoneGovernance detaches the definition from the zone.
func (h *GovernanceZoneHandler[B]) UnlinkZoneGovernance(ctx context.Context, caller interfaces.Caller, zoneGUID, definitionGUID string) error {
	return h.unlink(ctx, caller, interfaces.ZoneGovernanceTypeName, zoneGUID, definitionGUID, "UnlinkZoneGovernance")
}

// GetZoneGovernanceDefinitions returns the definitions that apply to a zone.
func (h *GovernanceZoneHandler[B]) GetZoneGovernanceDefinitions(ctx context.Context, caller interfaces.Caller, zoneGUID string, paging interfaces.Paging) ([]*beans.GovernanceDefinitionElement, error) {
	const operation = "GetZoneGovernanceDefinitions"
	h.observe(operation)
	related, err := h.repo.GetRelatedEntities(ctx, caller, RelatedQuery{
		GUID:              zoneGUID,
		GUIDParameterName: "zoneGUID",
		GUIDType:          interfaces.GovernanceZoneTypeName,
		RelationshipType:  interfaces.ZoneGovernanceTypeName,
		RelatedEnd:        2,
		RelatedType:       interfaces.GovernanceDefinitionTypeName,
	}, paging, operation)
	if err != nil {
		return nil, err
	}
	return convertAll(related, h.definitions)
}
