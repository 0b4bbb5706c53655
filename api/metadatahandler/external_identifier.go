package metadatahandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// externalIdentifierRoutes registers:
//   - POST /external-identifiers - set up an identifier for an element
//   - PUT /external-identifiers/{guid} - update an ExternalId
//   - POST /external-identifiers/confirm - record a synchronization
//   - POST /external-identifiers/remove - unlink an identifier from an element
//   - GET /scopes/{scopeGUID}/external-identifiers - identifiers in a scope
//   - GET /scopes/{scopeGUID}/external-identifier?identifier= - one identifier
//   - GET /scopes/{scopeGUID}/external-identifier/elements?identifier= - elements carrying it
//   - GET /scopes/{scopeGUID}/elements - elements with an identifier in the scope
//   - GET /elements/{elementGUID}/external-identifiers - identifiers of an element
//
// Identifiers travel in the query string since they are free text.
func (h *Handler) externalIdentifierRoutes(r chi.Router) {
	r.Post("/external-identifiers", serveCreated(h, h.setUpExternalIdentifier))
	r.Put("/external-identifiers/{guid}", serve(h, h.updateExternalIdentifier))
	r.Post("/external-identifiers/confirm", serve(h, h.confirmSynchronization))
	r.Post("/external-identifiers/remove", serveNoContent(h, h.removeExternalIdentifier))

	r.Get("/scopes/{scopeGUID}/external-identifiers", list(h, h.getExternalIdentifiersForScope))
	r.Get("/scopes/{scopeGUID}/external-identifier", serve(h, h.getExternalIdentifier))
	r.Get("/scopes/{scopeGUID}/external-identifier/elements", list(h, h.getElementsForExternalIdentifier))
	r.Get("/scopes/{scopeGUID}/elements", list(h, h.getElementEntitiesForScope))
	r.Get("/elements/{elementGUID}/external-identifiers", list(h, h.getExternalIdentifiersForElement))
}

func (h *Handler) setUpExternalIdentifier(r *http.Request, caller interfaces.Caller) (string, error) {
	var req api.ExternalIdentifierRequest
	if err := decode(r, &req); err != nil {
		return "", err
	}
	return h.externalIDs.SetUpExternalIdentifier(r.Context(), caller, req.Correlation, req.Properties)
}

func (h *Handler) updateExternalIdentifier(r *http.Request, caller interfaces.Caller) (*beans.ExternalIdentifierElement, error) {
	var props beans.ExternalIdentifierProperties
	if err := decode(r, &props); err != nil {
		return nil, err
	}
	return h.externalIDs.UpdateExternalIdentifier(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) confirmSynchronization(r *http.Request, caller interfaces.Caller) (*beans.ExternalIdentifierElement, error) {
	var ref handlers.Correlation
	if err := decode(r, &ref); err != nil {
		return nil, err
	}
	return h.externalIDs.ConfirmSynchronization(r.Context(), caller, ref)
}

func (h *Handler) removeExternalIdentifier(r *http.Request, caller interfaces.Caller) error {
	var ref handlers.Correlation
	if err := decode(r, &ref); err != nil {
		return err
	}
	return h.externalIDs.RemoveExternalIdentifier(r.Context(), caller, ref)
}

func (h *Handler) getExternalIdentifiersForScope(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error) {
	return h.externalIDs.GetExternalIdentifiersForScope(r.Context(), caller,
		chi.URLParam(r, "scopeGUID"), r.URL.Query().Get("scopeTypeName"), paging)
}

func (h *Handler) getExternalIdentifier(r *http.Request, caller interfaces.Caller) (*beans.ExternalIdentifierElement, error) {
	q := r.URL.Query()
	return h.externalIDs.GetExternalIdentifier(r.Context(), caller,
		chi.URLParam(r, "scopeGUID"), q.Get("scopeTypeName"), q.Get("identifier"))
}

func (h *Handler) getElementsForExternalIdentifier(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	q := r.URL.Query()
	return h.externalIDs.GetElementsForExternalIdentifier(r.Context(), caller,
		chi.URLParam(r, "scopeGUID"), q.Get("scopeTypeName"), q.Get("identifier"), paging)
}

func (h *Handler) getElementEntitiesForScope(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	q := r.URL.Query()
	return h.externalIDs.GetElementEntitiesForScope(r.Context(), caller,
		chi.URLParam(r, "scopeGUID"), q.Get("scopeTypeName"), q.Get("elementTypeName"), paging)
}

func (h *Handler) getExternalIdentifiersForElement(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ExternalIdentifierElement, error) {
	q := r.URL.Query()
	return h.externalIDs.GetExternalIdentifiersForElement(r.Context(), caller,
		chi.URLParam(r, "elementGUID"), q.Get("elementTypeName"), q.Get("scopeGUID"), paging)
}
