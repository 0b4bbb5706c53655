package common

var (
	// Version is set at build time through -ldflags "-X .../common.Version=..."
	Version = "dev"

	// PackageName prefixes the service's Prometheus metrics.
	PackageName = "metadata_governance"
)
