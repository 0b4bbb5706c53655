package handlers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjectHandler(t *testing.T) (*ProjectHandler[*beans.ProjectElement], *RepositoryHandler) {
	t.Helper()
	repo, _ := newTestRepositoryHandler(t)
	return NewProjectHandler(repo, beans.NewProjectElement, slog.Default()), repo
}

func TestProjectHandler_Lifecycle(t *testing.T) {
	h, _ := newProjectHandler(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	guid, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{
		QualifiedName:  "project:migration",
		Name:           "Warehouse migration",
		StartDate:      start,
		Status:         "ACTIVE",
		Classification: interfaces.CampaignClassification,
	})
	require.NoError(t, err)

	got, err := h.GetProject(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse migration", got.Properties.Name)
	assert.Equal(t, interfaces.CampaignClassification, got.Properties.Classification)
	assert.True(t, start.Equal(got.Properties.StartDate))
	assert.Equal(t, "ACTIVE", got.Properties.Status)

	_, err = h.CreateProject(ctx, testCaller, beans.ProjectProperties{
		QualifiedName:  "project:bad",
		Classification: interfaces.FixedLocationClassification,
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)

	require.NoError(t, h.UpdateProject(ctx, testCaller, guid, beans.ProjectProperties{Status: "COMPLETE"}, true))
	got, err = h.GetProject(ctx, testCaller, guid)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", got.Properties.Status)
	assert.Equal(t, "Warehouse migration", got.Properties.Name)

	found, err := h.FindProjects(ctx, testCaller, "project:mig.*", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	byName, err := h.GetProjectsByName(ctx, testCaller, "Warehouse migration", interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	require.NoError(t, h.RemoveProject(ctx, testCaller, guid))
	_, err = h.GetProject(ctx, testCaller, guid)
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
}

func TestProjectHandler_Classifications(t *testing.T) {
	h, _ := newProjectHandler(t)
	ctx := context.Background()

	task, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{
		QualifiedName:  "project:task-1",
		Classification: interfaces.TaskClassification,
	})
	require.NoError(t, err)
	study, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{QualifiedName: "project:study"})
	require.NoError(t, err)

	tasks, err := h.GetProjectsByClassification(ctx, testCaller, interfaces.TaskClassification, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task, tasks[0].GUID)

	require.NoError(t, h.SetProjectClassification(ctx, testCaller, study, interfaces.StudyProjectClassification))
	studies, err := h.GetProjectsByClassification(ctx, testCaller, interfaces.StudyProjectClassification, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, interfaces.StudyProjectClassification, studies[0].Properties.Classification)

	_, err = h.GetProjectsByClassification(ctx, testCaller, interfaces.CyberLocationClassification, interfaces.Paging{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidParameter)
	assert.ErrorIs(t, h.SetProjectClassification(ctx, testCaller, study, "Unknown"), interfaces.ErrInvalidParameter)

	require.NoError(t, h.ClearProjectClassification(ctx, testCaller, task, interfaces.TaskClassification))
	tasks, err = h.GetProjectsByClassification(ctx, testCaller, interfaces.TaskClassification, interfaces.Paging{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProjectHandler_Relationships(t *testing.T) {
	h, repo := newProjectHandler(t)
	ctx := context.Background()

	programme, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{QualifiedName: "project:programme"})
	require.NoError(t, err)
	build, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{QualifiedName: "project:build"})
	require.NoError(t, err)
	rollout, err := h.CreateProject(ctx, testCaller, beans.ProjectProperties{QualifiedName: "project:rollout"})
	require.NoError(t, err)

	_, err = h.LinkProjectHierarchy(ctx, testCaller, programme, build)
	require.NoError(t, err)
	_, err = h.LinkProjectHierarchy(ctx, testCaller, programme, rollout)
	require.NoError(t, err)
	subProjects, err := h.GetSubProjects(ctx, testCaller, programme, interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, subProjects, 2)

	_, err = h.LinkProjectDependency(ctx, testCaller, rollout, build, "needs the build artefacts")
	require.NoError(t, err)
	dependencies, err := h.GetProjectDependencies(ctx, testCaller, rollout, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, dependencies, 1)
	assert.Equal(t, build, dependencies[0].GUID)
	assert.Equal(t, "needs the build artefacts", dependencies[0].RelatedBy.Properties[interfaces.DependencySummaryProperty])

	none, err := h.GetProjectDependencies(ctx, testCaller, build, interfaces.Paging{})
	require.NoError(t, err)
	assert.Empty(t, none)

	database := createEntity(t, repo, testCaller, interfaces.DatabaseTypeName, "db:warehouse")
	zone := createEntity(t, repo, testCaller, interfaces.GovernanceZoneTypeName, "zone:landing")

	_, err = h.LinkProjectScope(ctx, testCaller, build, database.GUID, "source system")
	require.NoError(t, err)
	_, err = h.LinkProjectScope(ctx, testCaller, build, zone.GUID, "")
	require.NoError(t, err)
	_, err = h.LinkProjectScope(ctx, testCaller, rollout, database.GUID, "target system")
	require.NoError(t, err)

	scope, err := h.GetProjectScope(ctx, testCaller, build, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, scope, 2)
	assert.ElementsMatch(t,
		[]string{interfaces.DatabaseTypeName, interfaces.GovernanceZoneTypeName},
		[]string{scope[0].TypeName, scope[1].TypeName})

	projects, err := h.GetProjectsForElement(ctx, testCaller, database.GUID, interfaces.Paging{})
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	require.NoError(t, h.UnlinkProjectScope(ctx, testCaller, rollout, database.GUID))
	projects, err = h.GetProjectsForElement(ctx, testCaller, database.GUID, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, build, projects[0].GUID)

	require.NoError(t, h.UnlinkProjectDependency(ctx, testCaller, rollout, build))
	require.NoError(t, h.UnlinkProjectHierarchy(ctx, testCaller, programme, rollout))
	subProjects, err = h.GetSubProjects(ctx, testCaller, programme, interfaces.Paging{})
	require.NoError(t, err)
	require.Len(t, subProjects, 1)
	assert.Equal(t, build, subProjects[0].GUID)

	// Removing a project takes its relationships with it.
	require.NoError(t, h.RemoveProject(ctx, testCaller, build))
	projects, err = h.GetProjectsForElement(ctx, testCaller, database.GUID, interfaces.Paging{})
	require.NoError(t, err)
	assert.Empty(t, projects)
}
