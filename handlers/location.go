package handlers

import (
	"context"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// LocationHandler manages locations, their classifications and how they
// relate to each other and to assets.
type LocationHandler[B any] struct {
	beanHandler[B]
}

// NewLocationHandler returns a handler that converts locations with convert.
func NewLocationHandler[B any](repo *RepositoryHandler, convert Converter[B], log *slog.Logger) *LocationHandler[B] {
	return &LocationHandler[B]{
		beanHandler: newBeanHandler(repo, convert, interfaces.LocationTypeName, "LocationHandler", log),
	}
}

// CreateLocation stores a new location and returns its GUID.
func (h *LocationHandler[B]) CreateLocation(ctx context.Context, caller interfaces.Caller, props beans.LocationProperties) (string, error) {
	return h.create(ctx, caller, "", props, props.Effectivity, nil, "CreateLocation")
}

// UpdateLocation replaces or, with merge, merges the location's properties.
func (h *LocationHandler[B]) UpdateLocation(ctx context.Context, caller interfaces.Caller, guid string, props beans.LocationProperties, merge bool) error {
	return h.update(ctx, caller, guid, props, props.Effectivity, merge, "UpdateLocation")
}

// RemoveLocation deletes the location and its relationships.
func (h *LocationHandler[B]) RemoveLocation(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.remove(ctx, caller, guid, "RemoveLocation")
}

// GetLocation returns the location with guid.
func (h *LocationHandler[B]) GetLocation(ctx context.Context, caller interfaces.Caller, guid string) (B, error) {
	return h.get(ctx, caller, guid, "GetLocation")
}

// FindLocations returns the locations matching searchString.
func (h *LocationHandler[B]) FindLocations(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging) ([]B, error) {
	return h.find(ctx, caller, searchString, paging, "FindLocations")
}

// GetLocationsByName returns the locations named name.
func (h *LocationHandler[B]) GetLocationsByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging) ([]B, error) {
	return h.getByName(ctx, caller, name, paging, "GetLocationsByName")
}

// SetFixedLocation classifies the location as a physical place.
func (h *LocationHandler[B]) SetFixedLocation(ctx context.Context, caller interfaces.Caller, guid string, props beans.FixedLocationProperties) error {
	return h.classify(ctx, caller, guid, interfaces.FixedLocationClassification, props.InstanceProperties(), "SetFixedLocation")
}

// ClearFixedLocation removes the FixedLocation classification.
func (h *LocationHandler[B]) ClearFixedLocation(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.declassify(ctx, caller, guid, interfaces.FixedLocationClassification, "ClearFixedLocation")
}

// SetSecureLocation classifies the location as access controlled.
func (h *LocationHandler[B]) SetSecureLocation(ctx context.Context, caller interfaces.Caller, guid string, props beans.SecureLocationProperties) error {
	return h.classify(ctx, caller, guid, interfaces.SecureLocationClassification, props.InstanceProperties(), "SetSecureLocation")
}

// ClearSecureLocation removes the SecureLocation classification.
func (h *LocationHandler[B]) ClearSecureLocation(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.declassify(ctx, caller, guid, interfaces.SecureLocationClassification, "ClearSecureLocation")
}

// SetCyberLocation classifies the location as a network address.
func (h *LocationHandler[B]) SetCyberLocation(ctx context.Context, caller interfaces.Caller, guid string, props beans.CyberLocationProperties) error {
	return h.classify(ctx, caller, guid, interfaces.CyberLocationClassification, props.InstanceProperties(), "SetCyberLocation")
}

// ClearCyberLocation removes the CyberLocation classification.
func (h *LocationHandler[B]) ClearCyberLocation(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.declassify(ctx, caller, guid, interfaces.CyberLocationClassification, "ClearCyberLocation")
}

// LinkNestedLocation places childGUID inside parentGUID.
func (h *LocationHandler[B]) LinkNestedLocation(ctx context.Context, caller interfaces.Caller, parentGUID, childGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.NestedLocationTypeName, parentGUID, childGUID, nil, interfaces.Effectivity{}, "LinkNestedLocation")
}

// UnlinkNestedLocation takes childGUID out of parentGUID.
func (h *LocationHandler[B]) UnlinkNestedLocation(ctx context.Context, caller interfaces.Caller, parentGUID, childGUID string) error {
	return h.unlink(ctx, caller, interfaces.NestedLocationTypeName, parentGUID, childGUID, "UnlinkNestedLocation")
}

// GetNestedLocations returns the locations directly inside parentGUID.
func (h *LocationHandler[B]) GetNestedLocations(ctx context.Context, caller interfaces.Caller, parentGUID string, paging interfaces.Paging) ([]B, error) {
	return h.related(ctx, caller, parentGUID, interfaces.NestedLocationTypeName, 2, paging, "GetNestedLocations")
}

// LinkAdjacentLocations records that two locations are next to each other.
// The order of the arguments does not matter.
func (h *LocationHandler[B]) LinkAdjacentLocations(ctx context.Context, caller interfaces.Caller, locationGUID, peerGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.AdjacentLocationTypeName, locationGUID, peerGUID, nil, interfaces.Effectivity{}, "LinkAdjacentLocations")
}

// UnlinkAdjacentLocations removes the adjacency between two locations.
func (h *LocationHandler[B]) UnlinkAdjacentLocations(ctx context.Context, caller interfaces.Caller, locationGUID, peerGUID string) error {
	return h.unlink(ctx, caller, interfaces.AdjacentLocationTypeName, locationGUID, peerGUID, "UnlinkAdjacentLocations")
}

// GetAdjacentLocations returns the locations next to locationGUID, whichever
// end of the link it sits on.
func (h *LocationHandler[B]) GetAdjacentLocations(ctx context.Context, caller interfaces.Caller, locationGUID string, paging interfaces.Paging) ([]B, error) {
	return h.related(ctx, caller, locationGUID, interfaces.AdjacentLocationTypeName, 0, paging, "GetAdjacentLocations")
}

// LinkAssetLocation records that assetGUID is found at locationGUID.
func (h *LocationHandler[B]) LinkAssetLocation(ctx context.Context, caller interfaces.Caller, locationGUID, assetGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.AssetLocationTypeName, locationGUID, assetGUID, nil, interfaces.Effectivity{}, "LinkAssetLocation")
}

// UnlinkAssetLocation removes assetGUID from locationGUID.
func (h *LocationHandler[B]) UnlinkAssetLocation(ctx context.Context, caller interfaces.Caller, locationGUID, assetGUID string) error {
	return h.unlink(ctx, caller, interfaces.AssetLocationTypeName, locationGUID, assetGUID, "UnlinkAssetLocation")
}

// GetLocationsByAsset returns the locations where assetGUID is found.
func (h *LocationHandler[B]) GetLocationsByAsset(ctx context.Context, caller interfaces.Caller, assetGUID string, paging interfaces.Paging) ([]B, error) {
	return h.relatedTo(ctx, caller, RelatedQuery{
		GUID:              assetGUID,
		GUIDParameterName: "assetGUID",
		GUIDType:          interfaces.AssetTypeName,
		RelationshipType:  interfaces.AssetLocationTypeName,
		RelatedEnd:        1,
		RelatedType:       interfaces.LocationTypeName,
	}, paging, "GetLocationsByAsset")
}
