package beans

import (
	"time"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// InfrastructureProperties describes a host, platform, server or software
// capability. TypeName selects the asset subtype on create.
type InfrastructureProperties struct {
	TypeName                   string            `json:"typeName,omitempty"`
	QualifiedName              string            `json:"qualifiedName"`
	Name                       string            `json:"name,omitempty"`
	VersionIdentifier          string            `json:"versionIdentifier,omitempty"`
	Description                string            `json:"description,omitempty"`
	DeployedImplementationType string            `json:"deployedImplementationType,omitempty"`
	ZoneMembership             []string          `json:"zoneMembership,omitempty"`
	AdditionalProperties       map[string]string `json:"additionalProperties,omitempty"`
	interfaces.Effectivity
}

func (p InfrastructureProperties) InstanceProperties() interfaces.InstanceProperties {
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.QualifiedNameProperty, p.QualifiedName).
		SetString(interfaces.NameProperty, p.Name).
		SetString(interfaces.VersionIdentifierProperty, p.VersionIdentifier).
		SetString(interfaces.DescriptionProperty, p.Description).
		SetString(interfaces.DeployedImplementationTypeProperty, p.DeployedImplementationType).
		SetStringSlice(interfaces.ZoneMembershipProperty, p.ZoneMembership)
	return setAdditional(props, p.AdditionalProperties)
}

type InfrastructureElement struct {
	ElementHeader
	Properties InfrastructureProperties `json:"properties"`
	RelatedBy  *RelatedBy               `json:"relatedBy,omitempty"`
}

func NewInfrastructureElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*InfrastructureElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	return &InfrastructureElement{
		ElementHeader: header,
		Properties: InfrastructureProperties{
			TypeName:                   entity.TypeName,
			QualifiedName:              props.GetString(interfaces.QualifiedNameProperty),
			Name:                       props.GetString(interfaces.NameProperty),
			VersionIdentifier:          props.GetString(interfaces.VersionIdentifierProperty),
			Description:                props.GetString(interfaces.DescriptionProperty),
			DeployedImplementationType: props.GetString(interfaces.DeployedImplementationTypeProperty),
			ZoneMembership:             props.GetStringSlice(interfaces.ZoneMembershipProperty),
			AdditionalProperties:       props.GetStringMap(interfaces.AdditionalPropsProperty),
			Effectivity:                entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}, nil
}

// DeploymentProperties are carried by the DeployedOn relationship.
type DeploymentProperties struct {
	DeploymentTime time.Time `json:"deploymentTime,omitzero"`
	Deployer       string    `json:"deployer,omitempty"`
	interfaces.Effectivity
}

func (p DeploymentProperties) InstanceProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetTime(interfaces.DeploymentTimeProperty, p.DeploymentTime).
		SetString(interfaces.DeployerProperty, p.Deployer)
}

// ServerAssetUseProperties are carried by the ServerAssetUse relationship.
type ServerAssetUseProperties struct {
	UseType     string `json:"useType,omitempty"`
	Description string `json:"description,omitempty"`
	interfaces.Effectivity
}

func (p ServerAssetUseProperties) InstanceProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetString(interfaces.UseTypeProperty, p.UseType).
		SetString(interfaces.DescriptionProperty, p.Description)
}
