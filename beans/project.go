package beans

import (
	"time"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// ProjectProperties describes a project. Classification optionally names the
// project classification (Task, Campaign, PersonalProject or StudyProject)
// set when the project is created.
type ProjectProperties struct {
	QualifiedName        string            `json:"qualifiedName"`
	Identifier           string            `json:"identifier,omitempty"`
	Name                 string            `json:"name,omitempty"`
	Description          string            `json:"description,omitempty"`
	StartDate            time.Time         `json:"startDate,omitzero"`
	PlannedEndDate       time.Time         `json:"plannedEndDate,omitzero"`
	Status               string            `json:"projectStatus,omitempty"`
	Classification       string            `json:"classification,omitempty"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
	interfaces.Effectivity
}

func (p ProjectProperties) InstanceProperties() interfaces.InstanceProperties {
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.QualifiedNameProperty, p.QualifiedName).
		SetString(interfaces.IdentifierProperty, p.Identifier).
		SetString(interfaces.NameProperty, p.Name).
		SetString(interfaces.DescriptionProperty, p.Description).
		SetTime(interfaces.StartDateProperty, p.StartDate).
		SetTime(interfaces.PlannedEndDateProperty, p.PlannedEndDate).
		SetString(interfaces.ProjectStatusProperty, p.Status)
	return setAdditional(props, p.AdditionalProperties)
}

type ProjectElement struct {
	ElementHeader
	Properties ProjectProperties `json:"properties"`
	RelatedBy  *RelatedBy        `json:"relatedBy,omitempty"`
}

// projectClassifications are the classifications that mark a project's kind.
var projectClassifications = []string{
	interfaces.TaskClassification,
	interfaces.CampaignClassification,
	interfaces.PersonalProjectClassification,
	interfaces.StudyProjectClassification,
}

func NewProjectElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*ProjectElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	out := &ProjectElement{
		ElementHeader: header,
		Properties: ProjectProperties{
			QualifiedName:        props.GetString(interfaces.QualifiedNameProperty),
			Identifier:           props.GetString(interfaces.IdentifierProperty),
			Name:                 props.GetString(interfaces.NameProperty),
			Description:          props.GetString(interfaces.DescriptionProperty),
			StartDate:            props.GetTime(interfaces.StartDateProperty),
			PlannedEndDate:       props.GetTime(interfaces.PlannedEndDateProperty),
			Status:               props.GetString(interfaces.ProjectStatusProperty),
			AdditionalProperties: props.GetStringMap(interfaces.AdditionalPropsProperty),
			Effectivity:          entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}
	for _, name := range projectClassifications {
		if header.HasClassification(name) {
			out.Properties.Classification = name
			break
		}
	}
	return out, nil
}
