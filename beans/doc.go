/*
Package beans holds the element types the handlers return and the property
types callers supply when creating or updating metadata.

Every property type builds the repository property bag for its entity through
InstanceProperties. Every element type has a constructor with the signature

	func(entity *interfaces.EntityDetail, relationship *interfaces.Relationship) (*T, error)

which the handlers accept as their bean converter. The relationship is the
link through which the entity was reached and may be nil.
*/
package beans
