package metadatahandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// governanceDefinitionRoutes registers the governance definition resource.
// GET /governance-definitions searches by ?search= (regular expression),
// ?name=, or ?domain= with an optional ?typeName=; with none of them it lists
// the definitions of ?typeName=.
func (h *Handler) governanceDefinitionRoutes(r chi.Router) {
	r.Post("/governance-definitions", serveCreated(h, h.createGovernanceDefinition))
	r.Get("/governance-definitions", list(h, h.listGovernanceDefinitions))
	r.Get("/governance-definitions/{guid}", serve(h, h.getGovernanceDefinition))
	r.Put("/governance-definitions/{guid}", serveNoContent(h, h.updateGovernanceDefinition))
	r.Delete("/governance-definitions/{guid}", serveNoContent(h, h.removeGovernanceDefinition))
	r.Get("/governance-definitions/{guid}/supporting-definitions", list(h, h.getSupportingDefinitions))

	r.Post("/governance-definitions/{guid}/policy-links/{otherGUID}", serveCreated(h, h.linkPolicies))
	r.Delete("/governance-definitions/{guid}/policy-links/{otherGUID}", serveNoContent(h, h.unlinkPolicies))
	r.Post("/governance-definitions/{guid}/responses/{otherGUID}", serveCreated(h, h.linkResponse))
	r.Delete("/governance-definitions/{guid}/responses/{otherGUID}", serveNoContent(h, h.unlinkResponse))
	r.Post("/governance-definitions/{guid}/implementations/{otherGUID}", serveCreated(h, h.linkImplementation))
	r.Delete("/governance-definitions/{guid}/implementations/{otherGUID}", serveNoContent(h, h.unlinkImplementation))
}

func (h *Handler) createGovernanceDefinition(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.GovernanceDefinitionProperties
	if err := decode(r, &props); err != nil {
		return "", err
	}
	return h.definitions.CreateGovernanceDefinition(r.Context(), caller, props)
}

func (h *Handler) listGovernanceDefinitions(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.GovernanceDefinitionElement, error) {
	q := r.URL.Query()
	switch {
	case q.Has("search"):
		return h.definitions.FindGovernanceDefinitions(r.Context(), caller, q.Get("search"), paging)
	case q.Has("name"):
		return h.definitions.GetGovernanceDefinitionsByName(r.Context(), caller, q.Get("name"), paging)
	case q.Has("domain"):
		domain, err := queryInt(r, "domain")
		if err != nil {
			return nil, err
		}
		return h.definitions.GetGovernanceDefinitionsByDomain(r.Context(), caller, q.Get("typeName"), domain, paging)
	default:
		return h.definitions.GetGovernanceDefinitionsByType(r.Context(), caller, q.Get("typeName"), paging)
	}
}

func (h *Handler) getGovernanceDefinition(r *http.Request, caller interfaces.Caller) (*beans.GovernanceDefinitionElement, error) {
	return h.definitions.GetGovernanceDefinition(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) updateGovernanceDefinition(r *http.Request, caller interfaces.Caller) error {
	var props beans.GovernanceDefinitionProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.definitions.UpdateGovernanceDefinition(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) removeGovernanceDefinition(r *http.Request, caller interfaces.Caller) error {
	return h.definitions.RemoveGovernanceDefinition(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) getSupportingDefinitions(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.GovernanceDefinitionElement, error) {
	return h.definitions.GetSupportingDefinitions(r.Context(), caller,
		chi.URLParam(r, "guid"), r.URL.Query().Get("relationshipType"), paging)
}

func (h *Handler) linkPolicies(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.definitions.LinkPolicies(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"), req.Description)
}

func (h *Handler) unlinkPolicies(r *http.Request, caller interfaces.Caller) error {
	return h.definitions.UnlinkPolicies(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"))
}

func (h *Handler) linkResponse(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.definitions.LinkResponse(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"), req.Rationale)
}

func (h *Handler) unlinkResponse(r *http.Request, caller interfaces.Caller) error {
	return h.definitions.UnlinkResponse(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"))
}

func (h *Handler) linkImplementation(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.definitions.LinkImplementation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"), req.Rationale)
}

func (h *Handler) unlinkImplementation(r *http.Request, caller interfaces.Caller) error {
	return h.definitions.UnlinkImplementation(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "otherGUID"))
}

// governanceZoneRoutes registers the governance zone resource. GET
// /governance-zones searches by ?search=, ?name= or ?domain=.
func (h *Handler) governanceZoneRoutes(r chi.Router) {
	r.Post("/governance-zones", serveCreated(h, h.createGovernanceZone))
	r.Get("/governance-zones", list(h, h.listGovernanceZones))
	r.Get("/governance-zones/{guid}", serve(h, h.getGovernanceZone))
	r.Put("/governance-zones/{guid}", serveNoContent(h, h.updateGovernanceZone))
	r.Delete("/governance-zones/{guid}", serveNoContent(h, h.removeGovernanceZone))

	r.Get("/governance-zones/{guid}/nested-zones", list(h, h.getNestedZones))
	r.Post("/governance-zones/{guid}/nested-zones/{childGUID}", serveCreated(h, h.linkZoneHierarchy))
	r.Delete("/governance-zones/{guid}/nested-zones/{childGUID}", serveNoContent(h, h.unlinkZoneHierarchy))

	r.Get("/governance-zones/{guid}/governance-definitions", list(h, h.getZoneGovernanceDefinitions))
	r.Post("/governance-zones/{guid}/governance-definitions/{definitionGUID}", serveCreated(h, h.linkZoneGovernance))
	r.Delete("/governance-zones/{guid}/governance-definitions/{definitionGUID}", serveNoContent(h, h.unlinkZoneGovernance))
}

func (h *Handler) createGovernanceZone(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.GovernanceZoneProperties
	if err := decode(r, &props); err != nil {
		return "", err
	}
	return h.zones.CreateGovernanceZone(r.Context(), caller, props)
}

func (h *Handler) listGovernanceZones(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.GovernanceZoneElement, error) {
	q := r.URL.Query()
	switch {
	case q.Has("search"):
		return h.zones.FindGovernanceZones(r.Context(), caller, q.Get("search"), paging)
	case q.Has("name"):
		return h.zones.GetGovernanceZonesByName(r.Context(), caller, q.Get("name"), paging)
	default:
		domain, err := queryInt(r, "domain")
		if err != nil {
			return nil, err
		}
		return h.zones.GetGovernanceZonesByDomain(r.Context(), caller, domain, paging)
	}
}

func (h *Handler) getGovernanceZone(r *http.Request, caller interfaces.Caller) (*beans.GovernanceZoneElement, error) {
	return h.zones.GetGovernanceZone(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) updateGovernanceZone(r *http.Request, caller interfaces.Caller) error {
	var props beans.GovernanceZoneProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.zones.UpdateGovernanceZone(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) removeGovernanceZone(r *http.Request, caller interfaces.Caller) error {
	return h.zones.RemoveGovernanceZone(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) getNestedZones(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.GovernanceZoneElement, error) {
	return h.zones.GetNestedZones(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkZoneHierarchy(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.zones.LinkZoneHierarchy(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) unlinkZoneHierarchy(r *http.Request, caller interfaces.Caller) error {
	return h.zones.UnlinkZoneHierarchy(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) getZoneGovernanceDefinitions(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.GovernanceDefinitionElement, error) {
	return h.zones.GetZoneGovernanceDefinitions(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkZoneGovernance(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.zones.LinkZoneGovernance(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "definitionGUID"))
}

func (h *Handler) unlinkZoneGovernance(r *http.Request, caller interfaces.Caller) error {
	return h.zones.UnlinkZoneGovernance(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "definitionGUID"))
}
