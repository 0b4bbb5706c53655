/*
Package handlers implements the governance metadata handlers: the shared
RepositoryHandler, the ExternalIdentifierHandler that reconciles identifiers
from third-party technologies, and one bean handler per element family.

# Layers

The RepositoryHandler sits directly on an interfaces.MetadataRepository. It
validates parameters and entity types, filters every read by effectivity
time and zone visibility, asks the SecurityVerifier before every write,
skips writes that would not change anything and records an audit record for
each change. Repository failures are translated into the three error
categories of the interfaces package.

The bean handlers are generic over the bean type B they return and are
built with a Converter[B] that turns an entity, and the relationship it was
reached through, into a bean:

  - GovernanceDefinitionHandler for policies, drivers and controls
  - GovernanceZoneHandler for governance zones and their nesting
  - ITInfrastructureHandler for hosts, platforms, servers and capabilities
  - LocationHandler for physical and cyber locations
  - ProjectHandler for projects, tasks and campaigns

# External identifiers

ExternalIdentifierHandler keeps one ExternalId entity per identifier and
scope. SetUpExternalIdentifier is idempotent: repeating a call with the same
values reads but never writes, and a changed value updates only what
changed. The scope is attached through ExternalIdScope and every element
carrying the identifier through ExternalIdLink.

# Errors

Callers see interfaces.ErrInvalidParameter for bad input and unknown GUIDs,
interfaces.ErrUserNotAuthorized when the verifier refuses, and
interfaces.ErrPropertyServer for everything the repository could not do.
*/
package handlers
