package beans

import (
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// LocationProperties describes a physical or logical location.
type LocationProperties struct {
	QualifiedName        string            `json:"qualifiedName"`
	Identifier           string            `json:"identifier,omitempty"`
	DisplayName          string            `json:"displayName,omitempty"`
	Description          string            `json:"description,omitempty"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
	interfaces.Effectivity
}

func (p LocationProperties) InstanceProperties() interfaces.InstanceProperties {
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.QualifiedNameProperty, p.QualifiedName).
		SetString(interfaces.IdentifierProperty, p.Identifier).
		SetString(interfaces.DisplayNameProperty, p.DisplayName).
		SetString(interfaces.DescriptionProperty, p.Description)
	return setAdditional(props, p.AdditionalProperties)
}

// FixedLocationProperties are carried by the FixedLocation classification.
type FixedLocationProperties struct {
	Coordinates   string `json:"coordinates,omitempty"`
	MapProjection string `json:"mapProjection,omitempty"`
	PostalAddress string `json:"postalAddress,omitempty"`
	TimeZone      string `json:"timeZone,omitempty"`
}

func (p FixedLocationProperties) InstanceProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetString(interfaces.CoordinatesProperty, p.Coordinates).
		SetString(interfaces.MapProjectionProperty, p.MapProjection).
		SetString(interfaces.PostalAddressProperty, p.PostalAddress).
		SetString(interfaces.TimeZoneProperty, p.TimeZone)
}

// SecureLocationProperties are carried by the SecureLocation classification.
type SecureLocationProperties struct {
	Description string `json:"description,omitempty"`
	Level       string `json:"level,omitempty"`
}

func (p SecureLocationProperties) InstanceProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetString(interfaces.DescriptionProperty, p.Description).
		SetString(interfaces.LevelProperty, p.Level)
}

// CyberLocationProperties are carried by the CyberLocation classification.
type CyberLocationProperties struct {
	NetworkAddress string `json:"networkAddress,omitempty"`
}

func (p CyberLocationProperties) InstanceProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetString(interfaces.NetworkAddressProperty, p.NetworkAddress)
}

type LocationElement struct {
	ElementHeader
	Properties LocationProperties `json:"properties"`
	RelatedBy  *RelatedBy         `json:"relatedBy,omitempty"`
}

func NewLocationElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*LocationElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	return &LocationElement{
		ElementHeader: header,
		Properties: LocationProperties{
			QualifiedName:        props.GetString(interfaces.QualifiedNameProperty),
			Identifier:           props.GetString(interfaces.IdentifierProperty),
			DisplayName:          props.GetString(interfaces.DisplayNameProperty),
			Description:          props.GetString(interfaces.DescriptionProperty),
			AdditionalProperties: props.GetStringMap(interfaces.AdditionalPropsProperty),
			Effectivity:          entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}, nil
}
