package metadatahandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// projectRoutes registers the project resource. GET /projects searches by
// ?search=, ?name= or ?classification=.
func (h *Handler) projectRoutes(r chi.Router) {
	r.Post("/projects", serveCreated(h, h.createProject))
	r.Get("/projects", list(h, h.listProjects))
	r.Get("/projects/{guid}", serve(h, h.getProject))
	r.Put("/projects/{guid}", serveNoContent(h, h.updateProject))
	r.Delete("/projects/{guid}", serveNoContent(h, h.removeProject))

	r.Put("/projects/{guid}/classifications/{classification}", serveNoContent(h, h.classifyProject))
	r.Delete("/projects/{guid}/classifications/{classification}", serveNoContent(h, h.declassifyProject))

	r.Get("/projects/{guid}/sub-projects", list(h, h.getSubProjects))
	r.Post("/projects/{guid}/sub-projects/{childGUID}", serveCreated(h, h.linkProjectHierarchy))
	r.Delete("/projects/{guid}/sub-projects/{childGUID}", serveNoContent(h, h.unlinkProjectHierarchy))

	r.Get("/projects/{guid}/dependencies", list(h, h.getProjectDependencies))
	r.Post("/projects/{guid}/dependencies/{dependsOnGUID}", serveCreated(h, h.linkProjectDependency))
	r.Delete("/projects/{guid}/dependencies/{dependsOnGUID}", serveNoContent(h, h.unlinkProjectDependency))

	r.Get("/projects/{guid}/scope", list(h, h.getProjectScope))
	r.Post("/projects/{guid}/scope/{elementGUID}", serveCreated(h, h.linkProjectScope))
	r.Delete("/projects/{guid}/scope/{elementGUID}", serveNoContent(h, h.unlinkProjectScope))
	r.Get("/elements/{elementGUID}/projects", list(h, h.getProjectsForElement))
}

func (h *Handler) createProject(r *http.Request, caller interfaces.Caller) (string, error) {
	var props beans.ProjectProperties
	if err := decode(r, &props); err != nil {
		return "", err
	}
	return h.projects.CreateProject(r.Context(), caller, props)
}

func (h *Handler) listProjects(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ProjectElement, error) {
	q := r.URL.Query()
	switch {
	case q.Has("classification"):
		return h.projects.GetProjectsByClassification(r.Context(), caller, q.Get("classification"), paging)
	case q.Has("name"):
		return h.projects.GetProjectsByName(r.Context(), caller, q.Get("name"), paging)
	default:
		return h.projects.FindProjects(r.Context(), caller, q.Get("search"), paging)
	}
}

func (h *Handler) getProject(r *http.Request, caller interfaces.Caller) (*beans.ProjectElement, error) {
	return h.projects.GetProject(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) updateProject(r *http.Request, caller interfaces.Caller) error {
	var props beans.ProjectProperties
	if err := decode(r, &props); err != nil {
		return err
	}
	return h.projects.UpdateProject(r.Context(), caller, chi.URLParam(r, "guid"), props, merge(r))
}

func (h *Handler) removeProject(r *http.Request, caller interfaces.Caller) error {
	return h.projects.RemoveProject(r.Context(), caller, chi.URLParam(r, "guid"))
}

func (h *Handler) classifyProject(r *http.Request, caller interfaces.Caller) error {
	return h.projects.SetProjectClassification(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "classification"))
}

func (h *Handler) declassifyProject(r *http.Request, caller interfaces.Caller) error {
	return h.projects.ClearProjectClassification(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "classification"))
}

func (h *Handler) getSubProjects(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ProjectElement, error) {
	return h.projects.GetSubProjects(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkProjectHierarchy(r *http.Request, caller interfaces.Caller) (string, error) {
	return h.projects.LinkProjectHierarchy(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) unlinkProjectHierarchy(r *http.Request, caller interfaces.Caller) error {
	return h.projects.UnlinkProjectHierarchy(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "childGUID"))
}

func (h *Handler) getProjectDependencies(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ProjectElement, error) {
	return h.projects.GetProjectDependencies(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkProjectDependency(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.projects.LinkProjectDependency(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "dependsOnGUID"), req.DependencySummary)
}

func (h *Handler) unlinkProjectDependency(r *http.Request, caller interfaces.Caller) error {
	return h.projects.UnlinkProjectDependency(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "dependsOnGUID"))
}

func (h *Handler) getProjectScope(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	return h.projects.GetProjectScope(r.Context(), caller, chi.URLParam(r, "guid"), paging)
}

func (h *Handler) linkProjectScope(r *http.Request, caller interfaces.Caller) (string, error) {
	req, err := linkRequest(r)
	if err != nil {
		return "", err
	}
	return h.projects.LinkProjectScope(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "elementGUID"), req.AssetSummary)
}

func (h *Handler) unlinkProjectScope(r *http.Request, caller interfaces.Caller) error {
	return h.projects.UnlinkProjectScope(r.Context(), caller, chi.URLParam(r, "guid"), chi.URLParam(r, "elementGUID"))
}

func (h *Handler) getProjectsForElement(r *http.Request, caller interfaces.Caller, paging interfaces.Paging) ([]*beans.ProjectElement, error) {
	return h.projects.GetProjectsForElement(r.Context(), caller, chi.URLParam(r, "elementGUID"), paging)
}
