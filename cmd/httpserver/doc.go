// Command httpserver serves the governance metadata REST API.
//
// The repository backend is chosen with --repository-uri (memory://,
// badger://, sqlite://, postgres:// or dynamodb://). Zones, the write policy
// and the audit stream come from the YAML file named by --config-file, and a
// few of its values can be overridden with flags.
//
// Audit records are always logged. With --audit-redis-addr they are also
// appended to a Redis stream.
//
// Example:
//
//	httpserver --listen-addr 0.0.0.0:8080 \
//	  --repository-uri sqlite:///var/lib/metadata/metadata.db \
//	  --config-file /etc/metadata/config.yaml \
//	  --log-json
//
// The server drains on SIGINT/SIGTERM, exposes /livez, /readyz, /drain and
// /undrain, and serves Prometheus metrics on --metrics-addr.
package main
