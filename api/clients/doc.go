/*
Package clients provides a Go client for the metadata governance REST API.

MetadataClient implements api.ExternalIdentifierProvider, which is what
synchronization agents need to keep their keys correlated with metadata
elements, plus a few lookups for assets and projects:

	client := &clients.MetadataClient{
		ServerAddr: "http://localhost:8080",
		UserID:     "crm-sync",
	}
	guid, err := client.SetUpExternalIdentifier(handlers.Correlation{
		ElementGUID: databaseGUID,
		Identifier:  "CUST-1",
		ScopeGUID:   crmServerGUID,
	}, beans.ExternalIdentifierProperties{KeyPattern: beans.NaturalKey})

Errors for 400 and 403 responses wrap interfaces.ErrInvalidParameter and
interfaces.ErrUserNotAuthorized.

MockExternalIdentifierProvider is a testify mock for code depending on the
provider interface.
*/
package clients
