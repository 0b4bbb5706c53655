package interfaces

import (
	"slices"
	"time"
)

// EntityProxy identifies one end of a relationship.
type EntityProxy struct {
	GUID     string `json:"guid"`
	TypeName string `json:"typeName"`
}

// InstanceAudit carries the bookkeeping the repository maintains for every
// stored instance.
type InstanceAudit struct {
	// Version starts at 1 and is incremented on every write. Updates that
	// supply a stale version fail with ErrVersionConflict.
	Version    int64     `json:"version"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// Effectivity is an optional from/to window during which an instance is
// considered active.
type Effectivity struct {
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// IsEffective reports whether the window contains t. A zero t means now.
func (e Effectivity) IsEffective(t time.Time) bool {
	if t.IsZero() {
		t = time.Now()
	}
	if e.EffectiveFrom != nil && t.Before(*e.EffectiveFrom) {
		return false
	}
	if e.EffectiveTo != nil && !t.Before(*e.EffectiveTo) {
		return false
	}
	return true
}

// Equal compares two windows.
func (e Effectivity) Equal(other Effectivity) bool {
	return timePtrEqual(e.EffectiveFrom, other.EffectiveFrom) && timePtrEqual(e.EffectiveTo, other.EffectiveTo)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Classification is a named property bag attached to an entity.
type Classification struct {
	Name       string             `json:"name"`
	Properties InstanceProperties `json:"properties,omitempty"`
	InstanceAudit
}

// EntityDetail is a stored entity.
type EntityDetail struct {
	GUID            string             `json:"guid"`
	TypeName        string             `json:"typeName"`
	Properties      InstanceProperties `json:"properties,omitempty"`
	Classifications []Classification   `json:"classifications,omitempty"`
	InstanceAudit
	Effectivity
}

// Proxy returns the relationship end describing this entity.
func (e *EntityDetail) Proxy() EntityProxy {
	return EntityProxy{GUID: e.GUID, TypeName: e.TypeName}
}

// Classification returns the named classification or nil.
func (e *EntityDetail) Classification(name string) *Classification {
	for i := range e.Classifications {
		if e.Classifications[i].Name == name {
			return &e.Classifications[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (e *EntityDetail) Clone() *EntityDetail {
	if e == nil {
		return nil
	}
	out := *e
	out.Properties = e.Properties.Clone()
	out.Classifications = slices.Clone(e.Classifications)
	for i := range out.Classifications {
		out.Classifications[i].Properties = e.Classifications[i].Properties.Clone()
	}
	out.Effectivity = e.Effectivity.clone()
	return &out
}

// Relationship is a stored link between two entities.
type Relationship struct {
	GUID       string             `json:"guid"`
	TypeName   string             `json:"typeName"`
	End1       EntityProxy        `json:"end1"`
	End2       EntityProxy        `json:"end2"`
	Properties InstanceProperties `json:"properties,omitempty"`
	InstanceAudit
	Effectivity
}

// OtherEnd returns the end that is not guid.
func (r *Relationship) OtherEnd(guid string) EntityProxy {
	if r.End1.GUID == guid {
		return r.End2
	}
	return r.End1
}

// Connects reports whether the relationship links guid1 and guid2 in either
// direction.
func (r *Relationship) Connects(guid1, guid2 string) bool {
	return (r.End1.GUID == guid1 && r.End2.GUID == guid2) || (r.End1.GUID == guid2 && r.End2.GUID == guid1)
}

// Clone returns a deep copy.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	out := *r
	out.Properties = r.Properties.Clone()
	out.Effectivity = r.Effectivity.clone()
	return &out
}

func (e Effectivity) clone() Effectivity {
	var out Effectivity
	if e.EffectiveFrom != nil {
		t := *e.EffectiveFrom
		out.EffectiveFrom = &t
	}
	if e.EffectiveTo != nil {
		t := *e.EffectiveTo
		out.EffectiveTo = &t
	}
	return out
}
