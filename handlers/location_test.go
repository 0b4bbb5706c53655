package handlers

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocationHandler(t *testing.T) (*LocationHandler[*beans.LocationElement], *RepositoryHandler) {
	t.Helper()
	repo, _ := newTestRepositoryHandler(t)
	return NewLocationHandler(repo, beans.NewLocationElement, slog.Default()), repo
}

func TestLocationHandler_Lifecycle(t *testing.T) {
	h, _ := newLocationHandler(t)
	ctx := context.Background()

	guid, err := h.CreateLocation(ctx, testCaller, beans.LocationProperties{
		QualifiedName: "location:dc-east",
		DisplayName:   "East data centre",
		Identifier:    "DC-E",
	})
	require.NoError(t, err)

	_, err = h.CreateLocation(ctx, testCaller, beans.LocationProperties{DisplayName: "nameless"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	require.NoError(t, h.UpdateLocation(ctx, testCaller, guid, beans.LocationProperties{Description: "primary"}, true))
	got, err := h.GetLocation(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.Equal(t, "East data centre", got.Properties.DisplayName)
	assert.Equal(t, "primary", got.Properties.Description)

	byName, err := h.GetLocationsByName(ctx, testCaller, "East data centre", interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, guid, byName[0].GUID)

	found, err := h.FindLocations(ctx, testCaller, "location:.*", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, h.RemoveLocation(ctx, testCaller, guid))
	_, err = h.GetLocation(ctx, testCaller, guid)
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestLocationHandler_Classifications(t *testing.T) {
	h, _ := newLocationHandler(t)
	ctx := context.Background()

	guid, err := h.CreateLocation(ctx, testCaller, beans.LocationProperties{QualifiedName: "location:hq"})
	require.NoError(t, err)

	require.NoError(t, h.SetFixedLocation(ctx, testCaller, guid, beans.FixedLocationProperties{
		PostalAddress: "1 Main Street",
		TimeZone:      "Europe/London",
	}))
	require.NoError(t, h.SetSecureLocation(ctx, testCaller, guid, beans.SecureLocationProperties{Level: "restricted"}))
	require.NoError(t, h.SetCyberLocation(ctx, testCaller, guid, beans.CyberLocationProperties{NetworkAddress: "10.0.0.0/8"}))

	got, err := h.GetLocation(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.True(t, got.HasClassification(interfaces.FixedLocationClassification))
	assert.True(t, got.HasClassification(interfaces.SecureLocationClassification))
	assert.True(t, got.HasClassification(interfaces.CyberLocationClassification))
	for _, c := range got.Classifications {
		if c.Name == interfaces.FixedLocationClassification {
			assert.Equal(t, "Europe/London", c.Properties[interfaces.TimeZoneProperty])
		}
	}

	require.NoError(t, h.ClearSecureLocation(ctx, testCaller, guid))
	// Clearing twice is not an error.
	require.NoError(t, h.ClearSecureLocation(ctx, testCaller, guid))

	got, err = h.GetLocation(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.False(t, got.HasClassification(interfaces.SecureLocationClassification))
	assert.True(t, got.HasClassification(interfaces.FixedLocationClassification))

	require.NoError(t, h.ClearFixedLocation(ctx, testCaller, guid))
	require.NoError(t, h.ClearCyberLocation(ctx, testCaller, guid))
	got, err = h.GetLocation(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.Empty(t, got.Classifications)
}

func TestLocationHandler_Relationships(t *testing.T) {
	h, repo := newLocationHandler(t)
	ctx := context.Background()

	site, err := h.CreateLocation(ctx, testCaller, beans.LocationProperties{QualifiedName: "location:site"})
	require.NoError(t, err)
	hallA, err := h.CreateLocation(ctx, testCaller, beans.LocationProperties{QualifiedName: "location:hall-a"})
	require.NoError(t, err)
	hallB, err := h.CreateLocation(ctx, testCaller, beans.LocationProperties{QualifiedName: "location:hall-b"})
	require.NoError(t, err)

	t.Run("nested", func(t *testing.T) {
		_, err := h.LinkNestedLocation(ctx, testCaller, site, hallA)
		require.NoError(t, err)
		_, err = h.LinkNestedLocation(ctx, testCaller, site, hallB)
		require.NoError(t, err)

		nested, err := h.GetNestedLocations(ctx, testCaller, site, interfaces.Paging{})
		require.NoError(t, err)
		assert.Len(t, nested, 2)

		inner, err := h.GetNestedLocations(ctx, testCaller, hallA, interfaces.Paging{})
		require.NoError(t, err)
		assert.Empty(t, inner)

		require.NoError(t, h.UnlinkNestedLocation(ctx, testCaller, site, hallB))
		nested, err = h.GetNestedLocations(ctx, testCaller, site, interfaces.Paging{})
		require.NoError(t, err)
		require.Len(t, nested, 1)
		assert.Equal(t, hallA, nested[0].GUID)
	})

	t.Run("adjacent", func(t *testing.T) {
		first, err := h.LinkAdjacentLocations(ctx, testCaller, hallA, hallB)
		require.NoError(t, err)
		second, err := h.LinkAdjacentLocations(ctx, testCaller, hallB, hallA)
		require.NoError(t, err)
		assert.Equal(t, first, second, "adjacency has no direction")

		fromA, err := h.GetAdjacentLocations(ctx, testCaller, hallA, interfaces.Paging{})
		require.NoError(t, err)
		require.Len(t, fromA, 1)
		assert.Equal(t, hallB, fromA[0].GUID)

		fromB, err := h.GetAdjacentLocations(ctx, testCaller, hallB, interfaces.Paging{})
		require.NoError(t, err)
		require.Len(t, fromB, 1)
		assert.Equal(t, hallA, fromB[0].GUID)

		require.NoError(t, h.UnlinkAdjacentLocations(ctx, testCaller, hallB, hallA))
		fromA, err = h.GetAdjacentLocations(ctx, testCaller, hallA, interfaces.Paging{})
		require.NoError(t, err)
		assert.Empty(t, fromA)
	})

	t.Run("asset location", func(t *testing.T) {
		server := createEntity(t, repo, testCaller, interfaces.SoftwareServerTypeName, "server:api")

		_, err := h.LinkAssetLocation(ctx, testCaller, hallA, server.GUID)
		require.NoError(t, err)
		_, err = h.LinkAssetLocation(ctx, testCaller, server.GUID, hallA)
		assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

		locations, err := h.GetLocationsByAsset(ctx, testCaller, server.GUID, interfaces.Paging{})
		require.NoError(t, err)
		require.Len(t, locations, 1)
		assert.Equal(t, hallA, locations[0].GUID)
		require.NotNil(t, locations[0].RelatedBy)
		assert.Equal(t, interfaces.AssetLocationTypeName, locations[0].RelatedBy.TypeName)

		_, err = h.GetLocationsByAsset(ctx, testCaller, hallA, interfaces.Paging{})
		assert.ErrorIs(t, err, interfaces.ErrInvalidParameter, "a location is not an asset")

		require.NoError(t, h.UnlinkAssetLocation(ctx, testCaller, hallA, server.GUID))
		locations, err = h.GetLocationsByAsset(ctx, testCaller, server.GUID, interfaces.Paging{})
		require.NoError(t, err)
		assert.Empty(t, locations)
	})
}
