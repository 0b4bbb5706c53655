package metadatahandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// infrastructureRoutes registers the IT infrastructure resource. GET
// /infrastructure searches by ?search= or ?name=, otherwise lists the assets
// of ?typeName=.
func (h *Handler) infrastructureRoutes(r chi.Router) {
	r.Post("/infrastructure", serveCreated(h, h.createInfrastructure))
	r.Get("/infrastructure", list(h, h.listInfrastructure))
	r.Get("/infrastructure/{guid}", serve(h, h.getInfrastructure))
	r.Put("/infrastructure/{guid}", serveNoContent(h, h.updateInfrastructure))
	r.Delete("/infrastructure/{guid}", serveNoContent(h, h.removeInfrastructure))
	r.Post("/infrastructure/{guid}/publish", serveNoContent(h, h.publishInfrastructure))
	r.Post("/infrastructure/{guid}/withdraw", serveNoContent(h, h.withdrawInfrastructure))

	r.Get("/infrastructure/{guid}/deployed-assets", list(h, h.getDeployedAssets))
	r.Post("/infrastructure/{guid}/deployed-assets/{assetGUID}", serveCreated(h, h.linkDeployedOn))
	r.Delete("/infrastructure/{guid}/deployed-assets/{assetGUID}", serveNoContent(h, h.unlinkDeployedOn))

	r.Get("/infrastructure/{guid}/supported-capabilities", list(h, h.getSupportedCapabilities))
	r.Post("/infrastructure/{guid}/supported-capabilities/{capabilityGUID}", serveCreated(h, h.linkSupportedCapability))
	r.Delete("/infrastructure/{guid}/supported-capabilities/{capabilityGUID}", serveNoContent(h, h.unlinkSupportedCapability))

	r.Get("/infrastructure/{guid}/asset-uses", list(h, h.getAssetsUsedByCapability))
	r.Post("/infrastructure/{guid}/asset-uses/{assetGUID}", serveCreated(h, h.linkServerAssetUse))
	r.Delete("/infrastructure/{guid}/asset-uses/{assetGUID}", serveNoContent(h, h.unlinkServerAssetUse))
	r.Put("/asset-uses/{relationshipGUID}", serveNoContent(h, h.updateServerAssetUse))
	r.Delete("/asset-uses/{relationshipGUID}", serveNoContent(h, h.removeServerAssetUse))
}

func (h *Handler) createInfrastructure(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.InfrastructureProperties
	if err := decode(r, &props); err != nil {
		return "", err
	}
	return h.infrastructure.CreateInfrastructure(r.Context(), caller, props)
}

func (h *Handler) listInfrastructure(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.InfrastructureElement, error) {
	q := r.URL.Query()
	switch {
	case q.Has("search"):
		return h.infrastructure.FindInfrastructure(r.Context(), caller, q.Get("search"), paging)
	case q.Has("name"):
		return h.infrastructure.GetInfrastructureByName(r.Context(), caller, q.Get("name"), paging)
	default:
		return h.infrastructure.GetInfrastructureByType(r.Context(), caller, q.Get("typeName"), paging)
	}
}

func (h *Handler) getInfrastructure(r *http.Request, caller interfaces.Caller) (*beans.InfrastructureElement, error) {
	return h.infrastructure.GetInfrastructure(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) updateInfrastructure(r *http.Request, caller interfaces.Caller) error {
	var props beans.InfrastructureProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.infrastructure.UpdateInfrastructure(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) removeInfrastructure(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.RemoveInfrastructure(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) publishInfrastructure(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.PublishInfrastructure(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) withdrawInfrastructure(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.WithdrawInfrastructure(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) getDeployedAssets(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.InfrastructureElement, error) {
	return h.infrastructure.GetDeployedAssets(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkDeployedOn(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.DeploymentProperties
	if err := decodeOptional(r, &props); err != nil {
		return "", err
	}
	return h.infrastructure.LinkDeployedOn(r.Context(), caller, chi.URLParam(r, "assetGUID"), chi.URLParam(r, "guid"), props)
}

func (h *Handler) unlinkDeployedOn(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.UnlinkDeployedOn(r.Context(), caller, chi.URLParam(r, "assetGUID"), chi.URLParam(r, "guid"))
}

func (h *Handler) getSupportedCapabilities(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.InfrastructureElement, error) {
	return h.infrastructure.GetSupportedCapabilities(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkSupportedCapability(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.infrastructure.LinkSupportedCapability(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "capabilityGUID"), req.Effectivity)
}

func (h *Handler) unlinkSupportedCapability(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.UnlinkSupportedCapability(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "capabilityGUID"))
}

func (h *Handler) getAssetsUsedByCapability(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.InfrastructureElement, error) {
	return h.infrastructure.GetAssetsUsedByCapability(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkServerAssetUse(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.ServerAssetUseProperties
	if err := decodeOptional(r, &props); err != nil {
		return "", err
	}
	return h.infrastructure.LinkServerAssetUse(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "assetGUID"), props)
}

func (h *Handler) unlinkServerAssetUse(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.UnlinkServerAssetUse(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "assetGUID"))
}

func (h *Handler) updateServerAssetUse(r *http.Request, caller interfaces.Caller) error {
	var props beans.ServerAssetUseProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.infrastructure.UpdateServerAssetUse(r.Context(), caller, chi.URLParam(r, "relationshipGUID"), props)
}

func (h *Handler) removeServerAssetUse(r *http.Request, caller interfaces.Caller) error {
	return h.infrastructure.RemoveServerAssetUse(r.Context(), caller, chi.URLParam(r, "relationshipGUID"))
}
