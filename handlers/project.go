package handlers

import (
	"context"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// ProjectHandler manages projects, their classifications and the
// relationships between projects and the elements they cover.
type ProjectHandler[B any] struct {
	beanHandler[B]
}

// NewProjectHandler returns a handler that converts projects with convert.
func NewProjectHandler[B any](repo *RepositoryHandler, convert Converter[B], log *slog.Logger) *ProjectHandler[B] {
	return &ProjectHandler[B]{
		beanHandler: newBeanHandler(repo, convert, interfaces.ProjectTypeName, "ProjectHandler", log),
	}
}

func validProjectClassification(name string) error {
	return oneOf(name, "classification",
		interfaces.TaskClassification,
		interfaces.CampaignClassification,
		interfaces.PersonalProjectClassification,
		interfaces.StudyProjectClassification)
}

// CreateProject stores a project, classified by props.Classification when it
// is set.
func (h *ProjectHandler[B]) CreateProject(ctx context.Context, caller interfaces.Caller, props beans.ProjectProperties) (string, error) {
	var classifications []interfaces.Classification
	if props.Classification != "" {
		if err := validProjectClassification(props.Classification); err != nil {
			return "", err
		}
		classifications = append(classifications, interfaces.Classification{Name: props.Classification})
	}
	return h.create(ctx, caller, "", props, props.Effectivity, classifications, "CreateProject")
}

// UpdateProject replaces the project's properties, or merges them when merge
// is set.
func (h *ProjectHandler[B]) UpdateProject(ctx context.Context, caller interfaces.Caller, guid string, props beans.ProjectProperties, merge bool) error {
	return h.update(ctx, caller, guid, props, props.Effectivity, merge, "UpdateProject")
}

// RemoveProject deletes the project and its relationships.
func (h *ProjectHandler[B]) RemoveProject(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.remove(ctx, caller, guid, "RemoveProject")
}

// GetProject returns the project with guid.
func (h *ProjectHandler[B]) GetProject(ctx context.Context, caller interfaces.Caller, guid string) (B, error) {
	return h.get(ctx, caller, guid, "GetProject")
}

// FindProjects returns the projects matching searchString.
func (h *ProjectHandler[B]) FindProjects(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging) ([]B, error) {
	return h.find(ctx, caller, searchString, paging, "FindProjects")
}

// GetProjectsByName returns the projects named name.
func (h *ProjectHandler[B]) GetProjectsByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging) ([]B, error) {
	return h.getByName(ctx, caller, name, paging, "GetProjectsByName")
}

// GetProjectsByClassification returns the projects carrying classification,
// which must be Task, Campaign, PersonalProject or StudyProject.
func (h *ProjectHandler[B]) GetProjectsByClassification(ctx context.Context, caller interfaces.Caller, classification string, paging interfaces.Paging) ([]B, error) {
	const operation = "GetProjectsByClassification"
	h.observe(operation)
	if err := validProjectClassification(classification); err != nil {
		return nil, err
	}
	entities, err := h.repo.GetEntitiesByClassification(ctx, caller, h.typeName, classification, paging, operation)
	if err != nil {
		return nil, err
	}
	return h.convertEntities(entities)
}

// SetProjectClassification adds one of the project classifications.
func (h *ProjectHandler[B]) SetProjectClassification(ctx context.Context, caller interfaces.Caller, guid, classification string) error {
	if err := validProjectClassification(classification); err != nil {
		return err
	}
	return h.classify(ctx, caller, guid, classification, nil, "SetProjectClassification")
}

// ClearProjectClassification removes a project classification.
func (h *ProjectHandler[B]) ClearProjectClassification(ctx context.Context, caller interfaces.Caller, guid, classification string) error {
	if err := validProjectClassification(classification); err != nil {
		return err
	}
	return h.declassify(ctx, caller, guid, classification, "ClearProjectClassification")
}

// LinkProjectHierarchy makes childGUID a sub-project of parentGUID.
func (h *ProjectHandler[B]) LinkProjectHierarchy(ctx context.Context, caller interfaces.Caller, parentGUID, childGUID string) (string, error) {
	return h.link(ctx, caller, interfaces.ProjectHierarchyTypeName, parentGUID, childGUID, nil, interfaces.Effectivity{}, "LinkProjectHierarchy")
}

// UnlinkProjectHierarchy removes childGUID from parentGUID's sub-projects.
func (h *ProjectHandler[B]) UnlinkProjectHierarchy(ctx context.Context, caller interfaces.Caller, parentGUID, childGUID string) error {
	return h.unlink(ctx, caller, interfaces.ProjectHierarchyTypeName, parentGUID, childGUID, "UnlinkProjectHierarchy")
}

// GetSubProjects returns the direct sub-projects of parentGUID.
func (h *ProjectHandler[B]) GetSubProjects(ctx context.Context, caller interfaces.Caller, parentGUID string, paging interfaces.Paging) ([]B, error) {
	return h.related(ctx, caller, parentGUID, interfaces.ProjectHierarchyTypeName, 2, paging, "GetSubProjects")
}

// LinkProjectDependency records that projectGUID depends on dependsOnGUID.
func (h *ProjectHandler[B]) LinkProjectDependency(ctx context.Context, caller interfaces.Caller, projectGUID, dependsOnGUID, dependencySummary string) (string, error) {
	props := interfaces.NewInstanceProperties().SetString(interfaces.DependencySummaryProperty, dependencySummary)
	return h.link(ctx, caller, interfaces.ProjectDependencyTypeName, projectGUID, dependsOnGUID, props, interfaces.Effectivity{}, "LinkProjectDependency")
}

// UnlinkProjectDependency removes the dependency made by
// LinkProjectDependency.
func (h *ProjectHandler[B]) UnlinkProjectDependency(ctx context.Context, caller interfaces.Caller, projectGUID, dependsOnGUID string) error {
	return h.unlink(ctx, caller, interfaces.ProjectDependencyTypeName, projectGUID, dependsOnGUID, "UnlinkProjectDependency")
}

// GetProjectDependencies returns the projects projectGUID depends on.
func (h *ProjectHandler[B]) GetProjectDependencies(ctx context.Context, caller interfaces.Caller, projectGUID string, paging interfaces.Paging) ([]B, error) {
	return h.related(ctx, caller, projectGUID, interfaces.ProjectDependencyTypeName, 2, paging, "GetProjectDependencies")
}

// LinkProjectScope records that elementGUID falls within the project.
func (h *ProjectHandler[B]) LinkProjectScope(ctx context.Context, caller interfaces.Caller, projectGUID, elementGUID, assetSummary string) (string, error) {
	props := interfaces.NewInstanceProperties().SetString(interfaces.AssetSummaryProperty, assetSummary)
	return h.link(ctx, caller, interfaces.ProjectScopeTypeName, projectGUID, elementGUID, props, interfaces.Effectivity{}, "LinkProjectScope")
}

// UnlinkProjectScope takes elementGUID out of the project's scope.
func (h *ProjectHandler[B]) UnlinkProjectScope(ctx context.Context, caller interfaces.Caller, projectGUID, elementGUID string) error {
	return h.unlink(ctx, caller, interfaces.ProjectScopeTypeName, projectGUID, elementGUID, "UnlinkProjectScope")
}

// GetProjectsForElement returns the projects whose scope covers elementGUID.
func (h *ProjectHandler[B]) GetProjectsForElement(ctx context.Context, caller interfaces.Caller, elementGUID string, paging interfaces.Paging) ([]B, error) {
	return h.relatedTo(ctx, caller, RelatedQuery{
		GUID:              elementGUID,
		GUIDParameterName: "elementGUID",
		GUIDType:          interfaces.ReferenceableTypeName,
		RelationshipType:  interfaces.ProjectScopeTypeName,
		RelatedEnd:        1,
		RelatedType:       interfaces.ProjectTypeName,
	}, paging, "GetProjectsForElement")
}

// GetProjectScope returns the metadata elements within the project's scope.
func (h *ProjectHandler[B]) GetProjectScope(ctx context.Context, caller interfaces.Caller, projectGUID string, paging interfaces.Paging) ([]*beans.MetadataElement, error) {
	const operation = "GetProjectScope"
	h.observe(operation)
	related, err := h.repo.GetRelatedEntities(ctx, caller, RelatedQuery{
		GUID:              projectGUID,
		GUIDParameterName: "projectGUID",
		GUIDType:          interfaces.ProjectTypeName,
		RelationshipType:  interfaces.ProjectScopeTypeName,
		RelatedEnd:        2,
	}, paging, operation)
	if err != nil {
		return nil, err
	}
	return convertAll(related, beans.NewMetadataElement)
}
