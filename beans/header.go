package beans

import (
	"fmt"
	"time"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// ElementHeader carries the identity and bookkeeping of a stored entity.
type ElementHeader struct {
	GUID            string                  `json:"guid"`
	TypeName        string                  `json:"typeName"`
	Version         int64                   `json:"version"`
	CreatedBy       string                  `json:"createdBy,omitempty"`
	UpdatedBy       string                  `json:"updatedBy,omitempty"`
	CreateTime      time.Time               `json:"createTime"`
	UpdateTime      time.Time               `json:"updateTime"`
	Classifications []ElementClassification `json:"classifications"`
	interfaces.Effectivity
}

// ElementClassification is a classification attached to an element.
type ElementClassification struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RelatedBy describes the relationship an element was retrieved through.
type RelatedBy struct {
	RelationshipGUID string         `json:"relationshipGuid"`
	TypeName         string         `json:"typeName"`
	Version          int64          `json:"version"`
	Properties       map[string]any `json:"properties,omitempty"`
	interfaces.Effectivity
}

// NewElementHeader extracts the header of entity. Entities without a GUID or
// type name cannot be converted.
func NewElementHeader(entity *interfaces.EntityDetail) (ElementHeader, error) {
	if entity == nil {
		return ElementHeader{}, fmt.Errorf("%w: no entity to convert", interfaces.ErrPropertyServer)
	}
	if entity.GUID == "" || entity.TypeName == "" {
		return ElementHeader{}, fmt.Errorf("%w: entity %q has no type information", interfaces.ErrPropertyServer, entity.GUID)
	}
	header := ElementHeader{
		GUID:            entity.GUID,
		TypeName:        entity.TypeName,
		Version:         entity.Version,
		CreatedBy:       entity.CreatedBy,
		UpdatedBy:       entity.UpdatedBy,
		CreateTime:      entity.CreateTime,
		UpdateTime:      entity.UpdateTime,
		Classifications: make([]ElementClassification, 0, len(entity.Classifications)),
		Effectivity:     entity.Effectivity,
	}
	for _, c := range entity.Classifications {
		header.Classifications = append(header.Classifications, ElementClassification{
			Name:       c.Name,
			Properties: c.Properties.Clone(),
		})
	}
	return header, nil
}

// HasClassification reports whether the element carries the named
// classification.
func (h ElementHeader) HasClassification(name string) bool {
	for _, c := range h.Classifications {
		if c.Name == name {
			return true
		}
	}
	return false
}

func newRelatedBy(rel *interfaces.Relationship) *RelatedBy {
	if rel == nil {
		return nil
	}
	return &RelatedBy{
		RelationshipGUID: rel.GUID,
		TypeName:         rel.TypeName,
		Version:          rel.Version,
		Properties:       rel.Properties.Clone(),
		Effectivity:      rel.Effectivity,
	}
}

// MetadataElement is the untyped element bean: the header plus the raw
// property bag. It serves any entity type.
type MetadataElement struct {
	ElementHeader
	Properties map[string]any `json:"properties"`
	RelatedBy  *RelatedBy     `json:"relatedBy,omitempty"`
}

// NewMetadataElement converts any entity.
func NewMetadataElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*MetadataElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties.Clone()
	if props == nil {
		props = interfaces.NewInstanceProperties()
	}
	return &MetadataElement{
		ElementHeader: header,
		Properties:    props,
		RelatedBy:     newRelatedBy(rel),
	}, nil
}

func setAdditional(props interfaces.InstanceProperties, additional map[string]string) interfaces.InstanceProperties {
	return props.SetStringMap(interfaces.AdditionalPropsProperty, additional)
}
