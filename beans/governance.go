package beans

import (
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// AllDomains is the domain identifier that matches every governance domain.
const AllDomains = 0

// setDomain stores a domain identifier. AllDomains is stored as absent.
func setDomain(props interfaces.InstanceProperties, domain int64) {
	if domain != AllDomains {
		props.SetInt(interfaces.DomainIdentifierProperty, domain)
	}
}

// GovernanceDefinitionProperties describes a governance driver, policy or
// control. TypeName selects the GovernanceDefinition subtype on create.
type GovernanceDefinitionProperties struct {
	TypeName             string            `json:"typeName,omitempty"`
	QualifiedName        string            `json:"qualifiedName"`
	Title                string            `json:"title,omitempty"`
	Summary              string            `json:"summary,omitempty"`
	Description          string            `json:"description,omitempty"`
	Scope                string            `json:"scope,omitempty"`
	DomainIdentifier     int64             `json:"domainIdentifier"`
	Priority             string            `json:"priority,omitempty"`
	Implications         []string          `json:"implications,omitempty"`
	Outcomes             []string          `json:"outcomes,omitempty"`
	Results              []string          `json:"results,omitempty"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
	interfaces.Effectivity
}

func (p GovernanceDefinitionProperties) InstanceProperties() interfaces.InstanceProperties {
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.QualifiedNameProperty, p.QualifiedName).
		SetString(interfaces.TitleProperty, p.Title).
		SetString(interfaces.SummaryProperty, p.Summary).
		SetString(interfaces.DescriptionProperty, p.Description).
		SetString(interfaces.ScopeProperty, p.Scope).
		SetString(interfaces.PriorityProperty, p.Priority).
		SetStringSlice(interfaces.ImplicationsProperty, p.Implications).
		SetStringSlice(interfaces.OutcomesProperty, p.Outcomes).
		SetStringSlice(interfaces.ResultsProperty, p.Results)
	setDomain(props, p.DomainIdentifier)
	return setAdditional(props, p.AdditionalProperties)
}

type GovernanceDefinitionElement struct {
	ElementHeader
	Properties GovernanceDefinitionProperties `json:"properties"`
	RelatedBy  *RelatedBy                     `json:"relatedBy,omitempty"`
}

func NewGovernanceDefinitionElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*GovernanceDefinitionElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	return &GovernanceDefinitionElement{
		ElementHeader: header,
		Properties: GovernanceDefinitionProperties{
			TypeName:             entity.TypeName,
			QualifiedName:        props.GetString(interfaces.QualifiedNameProperty),
			Title:                props.GetString(interfaces.TitleProperty),
			Summary:              props.GetString(interfaces.SummaryProperty),
			Description:          props.GetString(interfaces.DescriptionProperty),
			Scope:                props.GetString(interfaces.ScopeProperty),
			DomainIdentifier:     props.GetInt(interfaces.DomainIdentifierProperty),
			Priority:             props.GetString(interfaces.PriorityProperty),
			Implications:         props.GetStringSlice(interfaces.ImplicationsProperty),
			Outcomes:             props.GetStringSlice(interfaces.OutcomesProperty),
			Results:              props.GetStringSlice(interfaces.ResultsProperty),
			AdditionalProperties: props.GetStringMap(interfaces.AdditionalPropsProperty),
			Effectivity:          entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}, nil
}

// GovernanceZoneProperties describes a governance zone.
type GovernanceZoneProperties struct {
	QualifiedName        string            `json:"qualifiedName"`
	DisplayName          string            `json:"displayName,omitempty"`
	Description          string            `json:"description,omitempty"`
	Criteria             string            `json:"criteria,omitempty"`
	Scope                string            `json:"scope,omitempty"`
	DomainIdentifier     int64             `json:"domainIdentifier"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
	interfaces.Effectivity
}

func (p GovernanceZoneProperties) InstanceProperties() interfaces.InstanceProperties {
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.QualifiedNameProperty, p.QualifiedName).
		SetString(interfaces.DisplayNameProperty, p.DisplayName).
		SetString(interfaces.DescriptionProperty, p.Description).
		SetString(interfaces.CriteriaProperty, p.Criteria).
		SetString(interfaces.ScopeProperty, p.Scope)
	setDomain(props, p.DomainIdentifier)
	return setAdditional(props, p.AdditionalProperties)
}

type GovernanceZoneElement struct {
	ElementHeader
	Properties GovernanceZoneProperties `json:"properties"`
	RelatedBy  *RelatedBy               `json:"relatedBy,omitempty"`
}

func NewGovernanceZoneElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*GovernanceZoneElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	return &GovernanceZoneElement{
		ElementHeader: header,
		Properties: GovernanceZoneProperties{
			QualifiedName:        props.GetString(interfaces.QualifiedNameProperty),
			DisplayName:          props.GetString(interfaces.DisplayNameProperty),
			Description:          props.GetString(interfaces.DescriptionProperty),
			Criteria:             props.GetString(interfaces.CriteriaProperty),
			Scope:                props.GetString(interfaces.ScopeProperty),
			DomainIdentifier:     props.GetInt(interfaces.DomainIdentifierProperty),
			AdditionalProperties: props.GetStringMap(interfaces.AdditionalPropsProperty),
			Effectivity:          entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}, nil
}
