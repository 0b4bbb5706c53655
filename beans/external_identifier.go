package beans

import (
	"fmt"
	"time"

	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// KeyPattern describes how the third party allocates its identifiers.
type KeyPattern string

const (
	LocalKey     KeyPattern = "LOCAL_KEY"
	RecycledKey  KeyPattern = "RECYCLED_KEY"
	NaturalKey   KeyPattern = "NATURAL_KEY"
	MirrorKey    KeyPattern = "MIRROR_KEY"
	AggregateKey KeyPattern = "AGGREGATE_KEY"
	CallersKey   KeyPattern = "CALLERS_KEY"
	StableKey    KeyPattern = "STABLE_KEY"
	OtherKey     KeyPattern = "OTHER"
)

// Valid reports whether k is a known pattern. The empty pattern is valid and
// stands for LocalKey.
func (k KeyPattern) Valid() bool {
	switch k {
	case "", LocalKey, RecycledKey, NaturalKey, MirrorKey, AggregateKey, CallersKey, StableKey, OtherKey:
		return true
	}
	return false
}

// SynchronizationDirection describes which way metadata flows between the
// open metadata ecosystem and the third party owning a scope.
type SynchronizationDirection string

const (
	BothDirections SynchronizationDirection = "BOTH_DIRECTIONS"
	ToThirdParty   SynchronizationDirection = "TO_THIRD_PARTY"
	FromThirdParty SynchronizationDirection = "FROM_THIRD_PARTY"
	OtherDirection SynchronizationDirection = "OTHER"
)

// Valid reports whether d is a known direction. The empty direction is valid
// and stands for BothDirections.
func (d SynchronizationDirection) Valid() bool {
	switch d {
	case "", BothDirections, ToThirdParty, FromThirdParty, OtherDirection:
		return true
	}
	return false
}

// ExternalIdentifierProperties describes a third-party identifier together
// with its scope link and its link to an open metadata element.
type ExternalIdentifierProperties struct {
	Identifier                     string     `json:"identifier"`
	KeyPattern                     KeyPattern `json:"keyPattern,omitempty"`
	ExternalInstanceCreatedBy      string     `json:"externalInstanceCreatedBy,omitempty"`
	ExternalInstanceCreationTime   time.Time  `json:"externalInstanceCreationTime,omitzero"`
	ExternalInstanceLastUpdatedBy  string     `json:"externalInstanceLastUpdatedBy,omitempty"`
	ExternalInstanceLastUpdateTime time.Time  `json:"externalInstanceLastUpdateTime,omitzero"`
	ExternalInstanceVersion        int64      `json:"externalInstanceVersion,omitempty"`
	interfaces.Effectivity

	// Carried by the ExternalIdScope relationship.
	PermittedSynchronization   SynchronizationDirection `json:"permittedSynchronization,omitempty"`
	SynchronizationDescription string                   `json:"synchronizationDescription,omitempty"`
	ScopeEffectivity           interfaces.Effectivity   `json:"scopeEffectivity,omitzero"`

	// Carried by the ExternalIdLink relationship.
	Description       string                 `json:"description,omitempty"`
	Usage             string                 `json:"usage,omitempty"`
	Source            string                 `json:"source,omitempty"`
	MappingProperties map[string]string      `json:"mappingProperties,omitempty"`
	LinkEffectivity   interfaces.Effectivity `json:"linkEffectivity,omitzero"`

	// LastSynchronized is maintained by ConfirmSynchronization and ignored on
	// input.
	LastSynchronized time.Time `json:"lastSynchronized,omitzero"`
}

// Validate checks the caller supplied values.
func (p ExternalIdentifierProperties) Validate() error {
	if p.Identifier == "" {
		return fmt.Errorf("%w: identifier must not be empty", interfaces.ErrInvalidParameter)
	}
	if !p.KeyPattern.Valid() {
		return fmt.Errorf("%w: unknown key pattern %q", interfaces.ErrInvalidParameter, p.KeyPattern)
	}
	if !p.PermittedSynchronization.Valid() {
		return fmt.Errorf("%w: unknown synchronization direction %q", interfaces.ErrInvalidParameter, p.PermittedSynchronization)
	}
	return nil
}

// InstanceProperties builds the properties of the ExternalId entity.
func (p ExternalIdentifierProperties) InstanceProperties() interfaces.InstanceProperties {
	keyPattern := p.KeyPattern
	if keyPattern == "" {
		keyPattern = LocalKey
	}
	props := interfaces.NewInstanceProperties().
		SetString(interfaces.IdentifierProperty, p.Identifier).
		SetString(interfaces.KeyPatternProperty, string(keyPattern)).
		SetString(interfaces.ExtCreatedByProperty, p.ExternalInstanceCreatedBy).
		SetTime(interfaces.ExtCreationTimeProperty, p.ExternalInstanceCreationTime).
		SetString(interfaces.ExtLastUpdatedByProperty, p.ExternalInstanceLastUpdatedBy).
		SetTime(interfaces.ExtLastUpdateTimeProperty, p.ExternalInstanceLastUpdateTime)
	if p.ExternalInstanceVersion != 0 {
		props.SetInt(interfaces.ExtVersionProperty, p.ExternalInstanceVersion)
	}
	return props
}

// ScopeProperties builds the properties of the ExternalIdScope relationship.
func (p ExternalIdentifierProperties) ScopeProperties() interfaces.InstanceProperties {
	direction := p.PermittedSynchronization
	if direction == "" {
		direction = BothDirections
	}
	return interfaces.NewInstanceProperties().
		SetString(interfaces.PermittedSyncProperty, string(direction)).
		SetString(interfaces.DescriptionProperty, p.SynchronizationDescription)
}

// LinkProperties builds the caller controlled properties of the
// ExternalIdLink relationship.
func (p ExternalIdentifierProperties) LinkProperties() interfaces.InstanceProperties {
	return interfaces.NewInstanceProperties().
		SetString(interfaces.DescriptionProperty, p.Description).
		SetString(interfaces.UsageProperty, p.Usage).
		SetString(interfaces.SourceProperty, p.Source).
		SetStringMap(interfaces.MappingPropertiesProperty, p.MappingProperties)
}

// ExternalIdentifierEntityProperties lists the ExternalId properties a caller
// controls.
var ExternalIdentifierEntityProperties = []string{
	interfaces.IdentifierProperty,
	interfaces.KeyPatternProperty,
	interfaces.ExtCreatedByProperty,
	interfaces.ExtCreationTimeProperty,
	interfaces.ExtLastUpdatedByProperty,
	interfaces.ExtLastUpdateTimeProperty,
	interfaces.ExtVersionProperty,
}

// ExternalIdentifierLinkProperties lists the ExternalIdLink properties a
// caller controls.
var ExternalIdentifierLinkProperties = []string{
	interfaces.DescriptionProperty,
	interfaces.UsageProperty,
	interfaces.SourceProperty,
	interfaces.MappingPropertiesProperty,
}

// ExternalIdentifierElement is an ExternalId as returned to callers. When it
// was reached through its scope or element link, the link's properties are
// folded into Properties and described by RelatedBy.
type ExternalIdentifierElement struct {
	ElementHeader
	Properties ExternalIdentifierProperties `json:"properties"`
	RelatedBy  *RelatedBy                   `json:"relatedBy,omitempty"`
}

// NewExternalIdentifierElement converts an ExternalId entity and, optionally,
// the ExternalIdScope or ExternalIdLink relationship it was reached through.
func NewExternalIdentifierElement(entity *interfaces.EntityDetail, rel *interfaces.Relationship) (*ExternalIdentifierElement, error) {
	header, err := NewElementHeader(entity)
	if err != nil {
		return nil, err
	}
	props := entity.Properties
	out := &ExternalIdentifierElement{
		ElementHeader: header,
		Properties: ExternalIdentifierProperties{
			Identifier:                     props.GetString(interfaces.IdentifierProperty),
			KeyPattern:                     KeyPattern(props.GetString(interfaces.KeyPatternProperty)),
			ExternalInstanceCreatedBy:      props.GetString(interfaces.ExtCreatedByProperty),
			ExternalInstanceCreationTime:   props.GetTime(interfaces.ExtCreationTimeProperty),
			ExternalInstanceLastUpdatedBy:  props.GetString(interfaces.ExtLastUpdatedByProperty),
			ExternalInstanceLastUpdateTime: props.GetTime(interfaces.ExtLastUpdateTimeProperty),
			ExternalInstanceVersion:        props.GetInt(interfaces.ExtVersionProperty),
			Effectivity:                    entity.Effectivity,
		},
		RelatedBy: newRelatedBy(rel),
	}
	if rel == nil {
		return out, nil
	}

	switch rel.TypeName {
	case interfaces.ExternalIDScopeTypeName:
		out.Properties.PermittedSynchronization = SynchronizationDirection(rel.Properties.GetString(interfaces.PermittedSyncProperty))
		out.Properties.SynchronizationDescription = rel.Properties.GetString(interfaces.DescriptionProperty)
		out.Properties.ScopeEffectivity = rel.Effectivity
	case interfaces.ExternalIDLinkTypeName:
		out.Properties.Description = rel.Properties.GetString(interfaces.DescriptionProperty)
		out.Properties.Usage = rel.Properties.GetString(interfaces.UsageProperty)
		out.Properties.Source = rel.Properties.GetString(interfaces.SourceProperty)
		out.Properties.MappingProperties = rel.Properties.GetStringMap(interfaces.MappingPropertiesProperty)
		out.Properties.LastSynchronized = rel.Properties.GetTime(interfaces.LastSynchronizedProperty)
		out.Properties.LinkEffectivity = rel.Effectivity
	}
	return out, nil
}
