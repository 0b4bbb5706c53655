package interfaces

import (
	"fmt"
	"sort"
	"sync"
)

// Open metadata type names used by the handlers.
const (
	ReferenceableTypeName = "Referenceable"
	AssetTypeName         = "Asset"

	ExternalIDTypeName             = "ExternalId"
	ExternalIDScopeTypeName        = "ExternalIdScope"
	ExternalIDLinkTypeName         = "ExternalIdLink"
	SoftwareCapabilityTypeName     = "SoftwareCapability"
	SoftwareServerCapabilityName   = "SoftwareServerCapability"
	SoftwareServerTypeName         = "SoftwareServer"
	ApplicationTypeName            = "Application"
	DataManagerTypeName            = "DataManager"
	DatabaseTypeName               = "Database"
	ITInfrastructureTypeName       = "ITInfrastructure"
	HostTypeName                   = "Host"
	SoftwareServerPlatformTypeName = "SoftwareServerPlatform"

	GovernanceDefinitionTypeName  = "GovernanceDefinition"
	GovernanceDriverTypeName      = "GovernanceDriver"
	RegulationTypeName            = "Regulation"
	BusinessImperativeTypeName    = "BusinessImperative"
	GovernancePolicyTypeName      = "GovernancePolicy"
	GovernancePrincipleTypeName   = "GovernancePrinciple"
	GovernanceObligationTypeName  = "GovernanceObligation"
	GovernanceApproachTypeName    = "GovernanceApproach"
	GovernanceControlTypeName     = "GovernanceControl"
	TechnicalControlTypeName      = "TechnicalControl"
	OrganizationalControlTypeName = "OrganizationalControl"
	GovernanceZoneTypeName        = "GovernanceZone"

	LocationTypeName = "Location"
	ProjectTypeName  = "Project"

	ZoneHierarchyTypeName               = "ZoneHierarchy"
	ZoneGovernanceTypeName              = "ZoneGovernance"
	GovernancePolicyLinkTypeName        = "GovernancePolicyLink"
	GovernanceResponseTypeName          = "GovernanceResponse"
	GovernanceImplementationTypeName    = "GovernanceImplementation"
	NestedLocationTypeName              = "NestedLocation"
	AdjacentLocationTypeName            = "AdjacentLocation"
	AssetLocationTypeName               = "AssetLocation"
	ProjectHierarchyTypeName            = "ProjectHierarchy"
	ProjectDependencyTypeName           = "ProjectDependency"
	ProjectScopeTypeName                = "ProjectScope"
	DeployedOnTypeName                  = "DeployedOn"
	ServerAssetUseTypeName              = "ServerAssetUse"
	SupportedSoftwareCapabilityTypeName = "SupportedSoftwareCapability"

	FixedLocationClassification   = "FixedLocation"
	SecureLocationClassification  = "SecureLocation"
	CyberLocationClassification   = "CyberLocation"
	TaskClassification            = "Task"
	CampaignClassification        = "Campaign"
	PersonalProjectClassification = "PersonalProject"
	StudyProjectClassification    = "StudyProject"
)

// Common property names.
const (
	QualifiedNameProperty     = "qualifiedName"
	NameProperty              = "name"
	DisplayNameProperty       = "displayName"
	DescriptionProperty       = "description"
	AdditionalPropsProperty   = "additionalProperties"
	ZoneMembershipProperty    = "zoneMembership"
	DomainIdentifierProperty  = "domainIdentifier"
	IdentifierProperty        = "identifier"
	KeyPatternProperty        = "keyPattern"
	ExtCreatedByProperty      = "externalInstanceCreatedBy"
	ExtCreationTimeProperty   = "externalInstanceCreationTime"
	ExtLastUpdatedByProperty  = "externalInstanceLastUpdatedBy"
	ExtLastUpdateTimeProperty = "externalInstanceLastUpdateTime"
	ExtVersionProperty        = "externalInstanceVersion"
	PermittedSyncProperty     = "permittedSynchronization"
	UsageProperty             = "usage"
	SourceProperty            = "source"
	MappingPropertiesProperty = "mappingProperties"
	LastSynchronizedProperty  = "lastSynchronized"
)

// Property names of the governance, infrastructure, location and project
// types.
const (
	TitleProperty                      = "title"
	SummaryProperty                    = "summary"
	ScopeProperty                      = "scope"
	PriorityProperty                   = "priority"
	ImplicationsProperty               = "implications"
	OutcomesProperty                   = "outcomes"
	ResultsProperty                    = "results"
	CriteriaProperty                   = "criteria"
	RationaleProperty                  = "rationale"
	DeployedImplementationTypeProperty = "deployedImplementationType"
	VersionIdentifierProperty          = "versionIdentifier"
	DeploymentTimeProperty             = "deploymentTime"
	DeployerProperty                   = "deployer"
	UseTypeProperty                    = "useType"
	CoordinatesProperty                = "coordinates"
	MapProjectionProperty              = "mapProjection"
	PostalAddressProperty              = "postalAddress"
	TimeZoneProperty                   = "timeZone"
	LevelProperty                      = "level"
	NetworkAddressProperty             = "networkAddress"
	StartDateProperty                  = "startDate"
	PlannedEndDateProperty             = "plannedEndDate"
	ProjectStatusProperty              = "projectStatus"
	DependencySummaryProperty          = "dependencySummary"
	AssetSummaryProperty               = "assetSummary"
	ContextProperty                    = "context"
)

// EntityDef describes an entity type.
type EntityDef struct {
	Name      string
	SuperType string
}

// RelationshipDef describes a relationship type and the entity types each
// end accepts.
type RelationshipDef struct {
	Name     string
	End1Type string
	End2Type string
	// MultiLink permits more than one relationship of this type between the
	// same pair of entities.
	MultiLink bool
	// Symmetric relationships mean the same whichever way round the ends are.
	Symmetric bool
}

// ClassificationDef describes a classification and the entity types it may
// be attached to.
type ClassificationDef struct {
	Name             string
	ValidEntityTypes []string
}

// TypeRegistry resolves type names and the entity type hierarchy.
type TypeRegistry struct {
	mu              sync.RWMutex
	entities        map[string]EntityDef
	relationships   map[string]RelationshipDef
	classifications map[string]ClassificationDef
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		entities:        make(map[string]EntityDef),
		relationships:   make(map[string]RelationshipDef),
		classifications: make(map[string]ClassificationDef),
	}
}

// DefaultTypeRegistry returns a registry loaded with the built-in open
// metadata types.
func DefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	for _, def := range []EntityDef{
		{Name: ReferenceableTypeName},
		{Name: ExternalIDTypeName, SuperType: ReferenceableTypeName},
		{Name: AssetTypeName, SuperType: ReferenceableTypeName},
		{Name: ITInfrastructureTypeName, SuperType: AssetTypeName},
		{Name: HostTypeName, SuperType: ITInfrastructureTypeName},
		{Name: SoftwareServerPlatformTypeName, SuperType: ITInfrastructureTypeName},
		{Name: SoftwareCapabilityTypeName, SuperType: AssetTypeName},
		{Name: SoftwareServerCapabilityName, SuperType: SoftwareCapabilityTypeName},
		{Name: SoftwareServerTypeName, SuperType: SoftwareCapabilityTypeName},
		{Name: ApplicationTypeName, SuperType: SoftwareCapabilityTypeName},
		{Name: DataManagerTypeName, SuperType: SoftwareCapabilityTypeName},
		{Name: DatabaseTypeName, SuperType: DataManagerTypeName},
		{Name: GovernanceDefinitionTypeName, SuperType: ReferenceableTypeName},
		{Name: GovernanceDriverTypeName, SuperType: GovernanceDefinitionTypeName},
		{Name: RegulationTypeName, SuperType: GovernanceDriverTypeName},
		{Name: BusinessImperativeTypeName, SuperType: GovernanceDriverTypeName},
		{Name: GovernancePolicyTypeName, SuperType: GovernanceDefinitionTypeName},
		{Name: GovernancePrincipleTypeName, SuperType: GovernancePolicyTypeName},
		{Name: GovernanceObligationTypeName, SuperType: GovernancePolicyTypeName},
		{Name: GovernanceApproachTypeName, SuperType: GovernancePolicyTypeName},
		{Name: GovernanceControlTypeName, SuperType: GovernanceDefinitionTypeName},
		{Name: TechnicalControlTypeName, SuperType: GovernanceControlTypeName},
		{Name: OrganizationalControlTypeName, SuperType: GovernanceControlTypeName},
		{Name: GovernanceZoneTypeName, SuperType: ReferenceableTypeName},
		{Name: LocationTypeName, SuperType: ReferenceableTypeName},
		{Name: ProjectTypeName, SuperType: ReferenceableTypeName},
	} {
		r.AddEntityDef(def)
	}

	for _, def := range []RelationshipDef{
		{Name: ExternalIDScopeTypeName, End1Type: ReferenceableTypeName, End2Type: ExternalIDTypeName},
		{Name: ExternalIDLinkTypeName, End1Type: ReferenceableTypeName, End2Type: ExternalIDTypeName},
		{Name: ZoneHierarchyTypeName, End1Type: GovernanceZoneTypeName, End2Type: GovernanceZoneTypeName},
		{Name: ZoneGovernanceTypeName, End1Type: GovernanceZoneTypeName, End2Type: GovernanceDefinitionTypeName},
		{Name: GovernancePolicyLinkTypeName, End1Type: GovernancePolicyTypeName, End2Type: GovernancePolicyTypeName},
		{Name: GovernanceResponseTypeName, End1Type: GovernanceDriverTypeName, End2Type: GovernancePolicyTypeName},
		{Name: GovernanceImplementationTypeName, End1Type: GovernancePolicyTypeName, End2Type: GovernanceControlTypeName},
		{Name: NestedLocationTypeName, End1Type: LocationTypeName, End2Type: LocationTypeName},
		{Name: AdjacentLocationTypeName, End1Type: LocationTypeName, End2Type: LocationTypeName, Symmetric: true},
		{Name: AssetLocationTypeName, End1Type: LocationTypeName, End2Type: AssetTypeName},
		{Name: ProjectHierarchyTypeName, End1Type: ProjectTypeName, End2Type: ProjectTypeName},
		{Name: ProjectDependencyTypeName, End1Type: ProjectTypeName, End2Type: ProjectTypeName},
		{Name: ProjectScopeTypeName, End1Type: ProjectTypeName, End2Type: ReferenceableTypeName},
		{Name: DeployedOnTypeName, End1Type: AssetTypeName, End2Type: ITInfrastructureTypeName},
		{Name: ServerAssetUseTypeName, End1Type: SoftwareCapabilityTypeName, End2Type: AssetTypeName, MultiLink: true},
		{Name: SupportedSoftwareCapabilityTypeName, End1Type: ITInfrastructureTypeName, End2Type: SoftwareCapabilityTypeName},
	} {
		r.AddRelationshipDef(def)
	}

	for _, def := range []ClassificationDef{
		{Name: FixedLocationClassification, ValidEntityTypes: []string{LocationTypeName}},
		{Name: SecureLocationClassification, ValidEntityTypes: []string{LocationTypeName}},
		{Name: CyberLocationClassification, ValidEntityTypes: []string{LocationTypeName}},
		{Name: TaskClassification, ValidEntityTypes: []string{ProjectTypeName}},
		{Name: CampaignClassification, ValidEntityTypes: []string{ProjectTypeName}},
		{Name: PersonalProjectClassification, ValidEntityTypes: []string{ProjectTypeName}},
		{Name: StudyProjectClassification, ValidEntityTypes: []string{ProjectTypeName}},
	} {
		r.AddClassificationDef(def)
	}
	return r
}

// AddEntityDef registers or replaces an entity type.
func (r *TypeRegistry) AddEntityDef(def EntityDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[def.Name] = def
}

// AddRelationshipDef registers or replaces a relationship type.
func (r *TypeRegistry) AddRelationshipDef(def RelationshipDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relationships[def.Name] = def
}

// AddClassificationDef registers or replaces a classification.
func (r *TypeRegistry) AddClassificationDef(def ClassificationDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifications[def.Name] = def
}

// EntityDef returns the named entity type.
func (r *TypeRegistry) EntityDef(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.entities[name]
	return def, ok
}

// RelationshipDef returns the named relationship type.
func (r *TypeRegistry) RelationshipDef(name string) (RelationshipDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.relationships[name]
	return def, ok
}

// ClassificationDef returns the named classification.
func (r *TypeRegistry) ClassificationDef(name string) (ClassificationDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.classifications[name]
	return def, ok
}

// IsTypeOf reports whether typeName is superTypeName or one of its subtypes.
func (r *TypeRegistry) IsTypeOf(typeName, superTypeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for seen := 0; typeName != "" && seen <= len(r.entities); seen++ {
		if typeName == superTypeName {
			return true
		}
		def, ok := r.entities[typeName]
		if !ok {
			return false
		}
		typeName = def.SuperType
	}
	return false
}

// SubTypes returns typeName and every type beneath it, sorted by name.
func (r *TypeRegistry) SubTypes(typeName string) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	r.mu.RUnlock()

	var out []string
	for _, name := range names {
		if r.IsTypeOf(name, typeName) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateEntityType checks that typeName is known and is a subtype of
// expectedType.
func (r *TypeRegistry) ValidateEntityType(typeName, expectedType string) error {
	if _, ok := r.EntityDef(typeName); !ok {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidParameter, typeName)
	}
	if expectedType != "" && !r.IsTypeOf(typeName, expectedType) {
		return fmt.Errorf("%w: type %q is not a %s", ErrInvalidParameter, typeName, expectedType)
	}
	return nil
}
