// Package metadatahandler serves the governance metadata handlers over HTTP.
//
// Every route lives under /api/v1 and is made on behalf of the user named by
// the X-Metadata-User header. Reads may select an effective time with
// X-Metadata-As-Of (RFC 3339). The server's zone configuration applies to
// every caller.
//
// # Resources
//
//   - /external-identifiers, /scopes/{scopeGUID}/..., /elements/{elementGUID}/...
//   - /governance-definitions and /governance-zones
//   - /infrastructure and /asset-uses
//   - /locations and /assets/{assetGUID}/locations
//   - /projects and /elements/{elementGUID}/projects
//
// Creates and links answer 201 with {"guid": ...}. Updates, removes and
// unlinks answer 204. Lists take ?startFrom= and ?pageSize=. Updates merge
// into the stored properties unless ?merge=false.
//
// # Errors
//
// Failures answer with {"error": ...}: 400 for invalid parameters (including
// unknown GUIDs), 403 when the security policy refuses the caller and 500 for
// repository failures.
//
// # Usage
//
//	repo := handlers.NewRepositoryHandler(backend, nil, verifier, auditLog, cfg.Server.MaxPageSize, logger)
//	router := chi.NewRouter()
//	metadatahandler.NewHandler(repo, cfg.Zones, logger).RegisterRoutes(router)
package metadatahandler
