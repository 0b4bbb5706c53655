/*
Package api holds the wire types shared by the metadata governance server and
its clients.

Subpackages:

  - metadatahandler - the chi routes over the governance handlers
  - clients - a Go client for the REST API

The server itself lives in the httpserver package and is configured with
HTTPServerConfig.
*/
package api
