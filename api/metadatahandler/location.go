package metadatahandler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// Location classification path segments.
const (
	fixedLocation  = "fixed"
	secureLocation = "secure"
	cyberLocation  = "cyber"
)

// locationRoutes registers the location resource. GET /locations searches by
// ?search= or ?name=.
func (h *Handler) locationRoutes(r chi.Router) {
	r.Post("/locations", serveCreated(h, h.createLocation))
	r.Get("/locations", list(h, h.listLocations))
	r.Get("/locations/{guid}", serve(h, h.getLocation))
	r.Put("/locations/{guid}", serveNoContent(h, h.updateLocation))
	r.Delete("/locations/{guid}", serveNoContent(h, h.removeLocation))

	r.Put("/locations/{guid}/classifications/{classification}", serveNoContent(h, h.classifyLocation))
	r.Delete("/locations/{guid}/classifications/{classification}", serveNoContent(h, h.declassifyLocation))

	r.Get("/locations/{guid}/nested-locations", list(h, h.getNestedLocations))
	r.Post("/locations/{guid}/nested-locations/{childGUID}", serveCreated(h, h.linkNestedLocation))
	r.Delete("/locations/{guid}/nested-locations/{childGUID}", serveNoContent(h, h.unlinkNestedLocation))

	r.Get("/locations/{guid}/adjacent-locations", list(h, h.getAdjacentLocations))
	r.Post("/locations/{guid}/adjacent-locations/{peerGUID}", serveCreated(h, h.linkAdjacentLocations))
	r.Delete("/locations/{guid}/adjacent-locations/{peerGUID}", serveNoContent(h, h.unlinkAdjacentLocations))

	r.Post("/locations/{guid}/assets/{assetGUID}", serveCreated(h, h.linkAssetLocation))
	r.Delete("/locations/{guid}/assets/{assetGUID}", serveNoContent(h, h.unlinkAssetLocation))
	r.Get("/assets/{assetGUID}/locations", list(h, h.getLocationsByAsset))
}

func (h *Handler) createLocation(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.LocationProperties
	if err := decode(r, &props); err != nil {
		return "", err
	}
	return h.locations.CreateLocation(r.Context(), caller, props)
}

func (h *Handler) listLocations(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.LocationElement, error) {
	q := r.URL.Query()
	if q.Has("name") {
		return h.locations.GetLocationsByName(r.Context(), caller, q.Get("name"), paging)
	}
	return h.locations.FindLocations(r.Context(), caller, q.Get("search"), paging)
}

func (h *Handler) getLocation(r *http.Request, caller interfaces.Caller) (*beans.LocationElement, error) {
	return h.locations.GetLocation(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) updateLocation(r *http.Request, caller interfaces.Caller) error {
	var props beans.LocationProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.locations.UpdateLocation(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) removeLocation(r *http.Request, caller interfaces.Caller) error {
	return h.locations.RemoveLocation(r.Context(), caller, chi.URLParam(r, "guid"))
}

func unknownLocationClassification(name string) error {
	return fmt.Errorf("%w: classification must be one of %s, %s or %s, got %q",
		interfaces.ErrInvalidParameter, fixedLocation, secureLocation, cyberLocation, name)
}

func (h *Handler) classifyLocation(r *http.Request, caller interfaces.Caller) error {
	guid := chi.URLParam(r, "guid")
	switch name := chi.URLParam(r, "classification"); name {
	case fixedLocation:
		var props beans.FixedLocationProperties
		if err := decodeOptional(r, &props); err != nil {
			return err
		}
		return h.locations.SetFixedLocation(r.Context(), caller, guid, props)
	case secureLocation:
		var props beans.SecureLocationProperties
		if err := decodeOptional(r, &props); err != nil {
			return err
		}
		return h.locations.SetSecureLocation(r.Context(), caller, guid, props)
	case cyberLocation:
		var props beans.CyberLocationProperties
		if err := decodeOptional(r, &props); err != nil {
			return err
		}
		return h.locations.SetCyberLocation(r.Context(), caller, guid, props)
	default:
		return unknownLocationClassification(name)
	}
}

func (h *Handler) declassifyLocation(r *http.Request, caller interfaces.Caller) error {
	guid := chi.URLParam(r, "guid")
	switch name := chi.URLParam(r, "classification"); name {
	case fixedLocation:
		return h.locations.ClearFixedLocation(r.Context(), caller, guid)
	case secureLocation:
		return h.locations.ClearSecureLocation(r.Context(), caller, guid)
	case cyberLocation:
		return h.locations.ClearCyberLocation(r.Context(), caller, guid)
	default:
		return unknownLocationClassification(name)
	}
}

func (h *Handler) getNestedLocations(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.LocationElement, error) {
	return h.locations.GetNestedLocations(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkNestedLocation(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.locations.LinkNestedLocation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) unlinkNestedLocation(r *http.Request, caller interfaces.Caller) error {
	return h.locations.UnlinkNestedLocation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) getAdjacentLocations(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.LocationElement, error) {
	return h.locations.GetAdjacentLocations(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkAdjacentLocations(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.locations.LinkAdjacentLocations(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "peerGUID"))
}

func (h *Handler) unlinkAdjacentLocations(r *http.Request, caller interfaces.Caller) error {
	return h.locations.UnlinkAdjacentLocations(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "peerGUID"))
}

func (h *Handler) linkAssetLocation(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.locations.LinkAssetLocation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "assetGUID"))
}

func (h *Handler) unlinkAssetLocation(r *http.Request, caller interfaces.Caller) error {
	return h.locations.UnlinkAssetLocation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "assetGUID"))
}

func (h *Handler) getLocationsByAsset(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.LocationElement, error) {
	return h.locations.GetLocationsByAsset(r.Context(), caller, chi.URLParam(r, "assetGUID"), paging)
}
