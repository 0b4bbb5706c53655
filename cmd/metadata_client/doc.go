// Command metadata_client talks to a metadata governance server.
//
// It maintains the external identifiers that correlate elements with the
// keys third-party systems use for them, and registers or searches IT
// infrastructure. Every request is made as --user.
//
//	metadata_client --user sync-agent external-id set \
//	  --element <database guid> --scope <server guid> --identifier CUST-1 \
//	  --key-pattern NATURAL_KEY --synchronization FROM_THIRD_PARTY
//
//	metadata_client --user sync-agent infrastructure find 'host:.*'
package main
