package handlers

import (
	"context"
	"log/slog"

	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/interfaces"
)

// GovernanceDefinitionHandler manages governance drivers, policies and
// controls and the relationships that tie them together.
type GovernanceDefinitionHandler[B any] struct {
	beanHandler[B]
}

// NewGovernanceDefinitionHandler returns a handler that converts definitions
// with convert.
func NewGovernanceDefinitionHandler[B any](repo *RepositoryHandler, convert Converter[B], log *slog.Logger) *GovernanceDefinitionHandler[B] {
	return &GovernanceDefinitionHandler[B]{
		beanHandler: newBeanHandler(repo, convert, interfaces.GovernanceDefinitionTypeName, "GovernanceDefinitionHandler", log),
	}
}

// CreateGovernanceDefinition stores a definition of props.TypeName, which
// defaults to GovernanceDefinition.
func (h *GovernanceDefinitionHandler[B]) CreateGovernanceDefinition(ctx context.Context, caller interfaces.Caller, props beans.GovernanceDefinitionProperties) (string, error) {
	return h.create(ctx, caller, props.TypeName, props, props.Effectivity, nil, "CreateGovernanceDefinition")
}

// UpdateGovernanceDefinition replaces the definition's properties, or merges
// them into the stored ones when merge is set.
func (h *GovernanceDefinitionHandler[B]) UpdateGovernanceDefinition(ctx context.Context, caller interfaces.Caller, guid string, props beans.GovernanceDefinitionProperties, merge bool) error {
	return h.update(ctx, caller, guid, props, props.Effectivity, merge, "UpdateGovernanceDefinition")
}

// RemoveGovernanceDefinition deletes the definition and its relationships.
func (h *GovernanceDefinitionHandler[B]) RemoveGovernanceDefinition(ctx context.Context, caller interfaces.Caller, guid string) error {
	return h.remove(ctx, caller, guid, "RemoveGovernanceDefinition")
}

// GetGovernanceDefinition returns the definition with guid.
func (h *GovernanceDefinitionHandler[B]) GetGovernanceDefinition(ctx context.Context, caller interfaces.Caller, guid string) (B, error) {
	return h.get(ctx, caller, guid, "GetGovernanceDefinition")
}

// FindGovernanceDefinitions returns the definitions with a property matching
// the searchString regular expression.
func (h *GovernanceDefinitionHandler[B]) FindGovernanceDefinitions(ctx context.Context, caller interfaces.Caller, searchString string, paging interfaces.Paging) ([]B, error) {
	return h.find(ctx, caller, searchString, paging, "FindGovernanceDefinitions")
}

// GetGovernanceDefinitionsByName returns the definitions whose qualified name,
// name or display name equals name.
func (h *GovernanceDefinitionHandler[B]) GetGovernanceDefinitionsByName(ctx context.Context, caller interfaces.Caller, name string, paging interfaces.Paging) ([]B, error) {
	return h.getByName(ctx, caller, name, paging, "GetGovernanceDefinitionsByName")
}

// GetGovernanceDefinitionsByType returns the definitions of typeName and its
// subtypes.
func (h *GovernanceDefinitionHandler[B]) GetGovernanceDefinitionsByType(ctx context.Context, caller interfaces.Caller, typeName string, paging interfaces.Paging) ([]B, error) {
	return h.getByType(ctx, caller, typeName, paging, "GetGovernanceDefinitionsByType")
}

// GetGovernanceDefinitionsByDomain returns the definitions of typeName in the
// governance domain. beans.AllDomains matches every domain.
func (h *GovernanceDefinitionHandler[B]) GetGovernanceDefinitionsByDomain(ctx context.Context, caller interfaces.Caller, typeName string, domainIdentifier int64, paging interfaces.Paging) ([]B, error) {
	return h.getByDomain(ctx, caller, typeName, domainIdentifier, paging, "GetGovernanceDefinitionsByDomain")
}

// LinkPolicies records that two policies support each other.
func (h *GovernanceDefinitionHandler[B]) LinkPolicies(ctx context.Context, caller interfaces.Caller, policyGUID, linkedPolicyGUID, description string) (string, error) {
	props := interfaces.NewInstanceProperties().SetString(interfaces.DescriptionProperty, description)
	return h.link(ctx, caller, interfaces.GovernancePolicyLinkTypeName, policyGUID, linkedPolicyGUID, props, interfaces.Effectivity{}, "LinkPolicies")
}

// UnlinkPolicies removes the link made by LinkPolicies.
func (h *GovernanceDefinitionHandler[B]) UnlinkPolicies(ctx context.Context, caller interfaces.Caller, policyGUID, linkedPolicyGUID string) error {
	return h.unlink(ctx, caller, interfaces.GovernancePolicyLinkTypeName, policyGUID, linkedPolicyGUID, "UnlinkPolicies")
}

// LinkResponse records that a policy responds to a governance driver.
func (h *GovernanceDefinitionHandler[B]) LinkResponse(ctx context.Context, caller interfaces.Caller, driverGUID, policyGUID, rationale string) (string, error) {
	props := interfaces.NewInstanceProperties().SetString(interfaces.RationaleProperty, rationale)
	return h.link(ctx, caller, interfaces.GovernanceResponseTypeName, driverGUID, policyGUID, props, interfaces.Effectivity{}, "LinkResponse")
}

// UnlinkResponse removes the link made by LinkResponse.
func (h *GovernanceDefinitionHandler[B]) UnlinkResponse(ctx context.Context, caller interfaces.Caller, driverGUID, policyGUID string) error {
	return h.unlink(ctx, caller, interfaces.GovernanceResponseTypeName, driverGUID, policyGUID, "UnlinkResponse")
}

// LinkImplementation records that a control implements a policy.
func (h *GovernanceDefinitionHandler[B]) LinkImplementation(ctx context.Context, caller interfaces.Caller, policyGUID, controlGUID, rationale string) (string, error) {
	props := interfaces.NewInstanceProperties().SetString(interfaces.RationaleProperty, rationale)
	return h.link(ctx, caller, interfaces.GovernanceImplementationTypeName, policyGUID, controlGUID, props, interfaces.Effectivity{}, "LinkImplementation")
}

// UnlinkImplementation removes the link made by LinkImplementation.
func (h *GovernanceDefinitionHandler[B]) UnlinkImplementation(ctx context.Context, caller interfaces.Caller, policyGUID, controlGUID string) error {
	return h.unlink(ctx, caller, interfaces.GovernanceImplementationTypeName, policyGUID, controlGUID, "UnlinkImplementation")
}

// GetSupportingDefinitions returns the definitions linked to guid through
// relationshipType where guid sits at end 1: the policies answering a driver,
// the controls implementing a policy or the policies a policy links to.
func (h *GovernanceDefinitionHandler[B]) GetSupportingDefinitions(ctx context.Context, caller interfaces.Caller, guid, relationshipType string, paging interfaces.Paging) ([]B, error) {
	if err := oneOf(relationshipType, "relationshipType",
		interfaces.GovernanceResponseTypeName,
		interfaces.GovernanceImplementationTypeName,
		interfaces.GovernancePolicyLinkTypeName); err != nil {
		return nil, err
	}
	return h.related(ctx, caller, guid, relationshipType, 2, paging, "GetSupportingDefinitions")
}
