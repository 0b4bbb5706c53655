package handlers

import (
	"context"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// ITInfrastructureHandler manages hosts, platforms, servers and software
// capabilities and how they are deployed on each other.
//
// The handler works on every Asset: deployments link software capabilities
// and other assets to infrastructure, so both kinds pass through it.
type ITInfrastructureHandler[B any] struct {
	beanHandler[B]
}

// NewITInfrastructureHandler returns a handler over Asset and its subtypes.
func NewITInfrastructureHandler[B any](repo *RepositoryHandler, convert Converter[B], log *slog.Logger) *ITInfrastructureHandler[B] {
	return &ITInfrastructureHandler[B]{
		beanHandler: newBeanHandler(repo, convert, interfaces.AssetTypeName, "ITInfrastructureHandler", log),
	}
}

// CreateInfrastructure stores an asset of props.TypeName, which defaults to
// ITInfrastructure. Assets without zones get the caller's default zones.
func (h *ITInfrastructureHandler[B]) CreateInfrastructure(ctx context.Context, caller interfaces.Caller, props beans.InfrastructureProperties) (string, error) {
	typeName := props.TypeName
	if typeName == "" {
		typeName = interfaces.ITInfrastructureTypeName
	}
	return h.create(ctx, caller, typeName, props, props.Effectivity, nil, "CreateInfrastructure")
}

// UpdateInfrastructure replaces the asset's properties, or merges them when
// merge is set.
func (h *ITInfrastructureHandler[B]) UpdateInfrastructure(ctx context.Context, caller interfaces.Caller, guid string, props beans.InfrastructureProperties, merge bool) error {
	return h.update(ctx, caller, guid, props, props.Effectivity, merge, "UpdateInfrastructure")
}

// RemoveInfrastructure deletes the asset and its relationships.
func (h *ITInfrastructureHandler[B]) RemoveInfrastructure(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.remove(ctx, caller, guid, "RemoveInfrastructure")
}

// GetInfrastructure returns the asset with guid.
func (h *ITInfrastructureHandler[B]) GetInfrastructure(ctx context.Context, caller interfaces.Caller, guid string) (B, error) {
	return h.get(ctx, caller, guid, "GetInfrastructure")
}

// FindInfrastructure returns the assets matching searchString.
func (h *ITInfrastructureHandler[B]) FindInfrastructure(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging) ([]B, error) {
	return h.find(ctx, caller, searchString, paging, "FindInfrastructure")
}

// GetInfrastructureByName returns the assets named name.
func (h *ITInfrastructureHandler[B]) GetInfrastructureByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging) ([]B, error) {
	return h.getByName(ctx, caller, name, paging, "GetInfrastructureByName")
}

// GetInfrastructureByType returns the assets of typeName and its subtypes.
func (h *ITInfrastructureHandler[B]) GetInfrastructureByType(ctx context.Context, caller interfaces.Caller, typeName string, paging interfaces.Paging) ([]B, error) {
	return h.getByType(ctx, caller, typeName, paging, "GetInfrastructureByType")
}

// PublishInfrastructure moves the asset into the caller's publish zones.
func (h *ITInfrastructureHandler[B]) PublishInfrastructure(ctx context.Context, caller interfaces.Caller, guid string) error {
	const operation = "PublishInfrastructure"
	h.observe(operation)
	_, err := h.repo.SetZoneMembership(ctx, caller, guid, "guid", h.typeName, caller.Zones.PublishZones, operation)
	return err
}

// WithdrawInfrastructure moves the asset back into the caller's default
// zones.
func (h *ITInfrastructureHandler[B]) WithdrawInfrastructure(ctx context.Context, caller interfaces.Caller, guid string) error {
	const operation = "WithdrawInfrastructure"
	h.observe(operation)
	_, err := h.repo.SetZoneMembership(ctx, caller, guid, "guid", h.typeName, caller.Zones.DefaultZones, operation)
	return err
}

// LinkDeployedOn records that assetGUID is deployed on infrastructureGUID.
func (h *ITInfrastructureHandler[B]) LinkDeployedOn(ctx context.Context, caller interfaces.Caller, assetGUID, infrastructureGUID string, props beans.DeploymentProperties) (string, error) {
	return h.link(ctx, caller, interfaces.DeployedOnTypeName, assetGUID, infrastructureGUID, props.InstanceProperties(), props.Effectivity, "LinkDeployedOn")
}

// UnlinkDeployedOn removes the deployment made by LinkDeployedOn.
func (h *ITInfrastructureHandler[B]) UnlinkDeployedOn(ctx context.Context, caller interfaces.Caller, assetGUID, infrastructureGUID string) error {
	return h.unlink(ctx, caller, interfaces.DeployedOnTypeName, assetGUID, infrastructureGUID, "UnlinkDeployedOn")
}

// GetDeployedAssets returns the assets deployed on infrastructureGUID.
func (h *ITInfrastructureHandler[B]) GetDeployedAssets(ctx context.Context, caller interfaces.Caller, infrastructureGUID string, paging interfaces.Paging) ([]B, error) {
	return h.relatedTo(ctx, caller, RelatedQuery{
		GUID:              infrastructureGUID,
		GUIDParameterName: "infrastructureGUID",
		GUIDType:          interfaces.ITInfrastructureTypeName,
		RelationshipType:  interfaces.DeployedOnTypeName,
		RelatedEnd:        1,
	}, paging, "GetDeployedAssets")
}

// LinkSupportedCapability records that infrastructureGUID hosts the software
// capability.
func (h *ITInfrastructureHandler[B]) LinkSupportedCapability(ctx context.Context, caller interfaces.Caller, infrastructureGUID, capabilityGUID string, effectivity interfaces.Effectivity) (string, error) {
	return h.link(ctx, caller, interfaces.SupportedSoftwareCapabilityTypeName, infrastructureGUID, capabilityGUID, nil, effectivity, "LinkSupportedCapability")
}

// UnlinkSupportedCapability removes the capability from infrastructureGUID.
func (h *ITInfrastructureHandler[B]) UnlinkSupportedCapability(ctx context.Context, caller interfaces.Caller, infrastructureGUID, capabilityGUID string) error {
	return h.unlink(ctx, caller, interfaces.SupportedSoftwareCapabilityTypeName, infrastructureGUID, capabilityGUID, "UnlinkSupportedCapability")
}

// GetSupportedCapabilities returns the software capabilities hosted by
// infrastructureGUID.
func (h *ITInfrastructureHandler[B]) GetSupportedCapabilities(ctx context.Context, caller interfaces.Caller, infrastructureGUID string, paging interfaces.Paging) ([]B, error) {
	return h.relatedTo(ctx, caller, RelatedQuery{
		GUID:              infrastructureGUID,
		GUIDParameterName: "infrastructureGUID",
		GUIDType:          interfaces.ITInfrastructureTypeName,
		RelationshipType:  interfaces.SupportedSoftwareCapabilityTypeName,
		RelatedEnd:        2,
		RelatedType:       interfaces.SoftwareCapabilityTypeName,
	}, paging, "GetSupportedCapabilities")
}

// LinkServerAssetUse records that a software capability uses an asset. A
// capability may use the same asset in several ways, so every call adds a
// relationship; the returned GUID identifies it.
func (h *ITInfrastructureHandler[B]) LinkServerAssetUse(ctx context.Context, caller interfaces.Caller, capabilityGUID, assetGUID string, props beans.ServerAssetUseProperties) (string, error) {
	return h.link(ctx, caller, interfaces.ServerAssetUseTypeName, capabilityGUID, assetGUID, props.InstanceProperties(), props.Effectivity, "LinkServerAssetUse")
}

// UpdateServerAssetUse replaces the properties of one ServerAssetUse
// relationship.
func (h *ITInfrastructureHandler[B]) UpdateServerAssetUse(ctx context.Context, caller interfaces.Caller, relationshipGUID string, props beans.ServerAssetUseProperties) error {
	const operation = "UpdateServerAssetUse"
	h.observe(operation)
	effectivity := props.Effectivity
	_, err := h.repo.UpdateRelationship(ctx, caller, relationshipGUID, interfaces.ServerAssetUseTypeName, EntityUpdate{
		Properties:  props.InstanceProperties(),
		Effectivity: &effectivity,
	}, operation)
	return err
}

// RemoveServerAssetUse removes one ServerAssetUse relationship.
func (h *ITInfrastructureHandler[B]) RemoveServerAssetUse(ctx context.Context, caller interfaces.Caller, relationshipGUID string) error {
	const operation = "RemoveServerAssetUse"
	h.observe(operation)
	return h.repo.DeleteRelationship(ctx, caller, relationshipGUID, interfaces.ServerAssetUseTypeName, operation)
}

// UnlinkServerAssetUse removes every ServerAssetUse between the capability
// and the asset.
func (h *ITInfrastructureHandler[B]) UnlinkServerAssetUse(ctx context.Context, caller interfaces.Caller, capabilityGUID, assetGUID string) error {
	return h.unlink(ctx, caller, interfaces.ServerAssetUseTypeName, capabilityGUID, assetGUID, "UnlinkServerAssetUse")
}

// GetAssetsUsedByCapability returns the assets capabilityGUID uses.
func (h *ITInfrastructureHandler[B]) GetAssetsUsedByCapability(ctx context.Context, caller interfaces.Caller, capabilityGUID string, paging interfaces.Paging) ([]B, error) {
	return h.relatedTo(ctx, caller, RelatedQuery{
		GUID:              capabilityGUID,
		GUIDParameterName: "capabilityGUID",
		GUIDType:          interfaces.SoftwareCapabilityTypeName,
		RelationshipType:  interfaces.ServerAssetUseTypeName,
		RelatedEnd:        2,
	}, paging, "GetAssetsUsedByCapability")
}
