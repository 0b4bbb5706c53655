package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/common"
	"github.com/ruteri/metadata-governance-backend/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return api.HTTPServerConfig{
		ListenAddr:    listenAddr,
		MetricsAddr:   metricsAddr,
		Log:           logger,
		EnablePprof:   enablePprof,
		DrainDuration: drainDuration,
	}.WithDefaults()
}

// LoadConfig reads --config-file when given and applies the flag overrides
// on top of it.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := cCtx.String(ConfigFileFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cCtx.IsSet(MaxPageSizeFlag.Name) {
		cfg.Server.MaxPageSize = cCtx.Int(MaxPageSizeFlag.Name)
	}
	if cCtx.IsSet(AuditRedisAddrFlag.Name) {
		cfg.Audit.RedisAddr = cCtx.String(AuditRedisAddrFlag.Name)
	}
	if cCtx.IsSet(AuditRedisStreamFlag.Name) {
		cfg.Audit.RedisStream = cCtx.String(AuditRedisStreamFlag.Name)
	}
	return cfg, cfg.Validate()
}

var ServerAddrFlag = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "base URL of the metadata governance server",
}

var UserFlag = &cli.StringFlag{
	Name:    "user",
	Aliases: []string{"u"},
	EnvVars: []string{"METADATA_USER"},
	Usage:   "user id sent with every request",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var RepositoryURIFlag = &cli.StringFlag{
	Name:  "repository-uri",
	Value: "memory://",
	Usage: "metadata repository backend: memory://, badger:///path, sqlite:///file.db, postgres://... or dynamodb://table?region=...",
}

var ConfigFileFlag = &cli.StringFlag{
	Name:  "config-file",
	Usage: "YAML file with zones, security policy and audit settings",
}

var MaxPageSizeFlag = &cli.IntFlag{
	Name:  "max-page-size",
	Value: config.DefaultMaxPageSize,
	Usage: "upper bound on the page size of every query",
}

var AuditRedisAddrFlag = &cli.StringFlag{
	Name:  "audit-redis-addr",
	Usage: "if set, audit records are also appended to a Redis stream at this address",
}

var AuditRedisStreamFlag = &cli.StringFlag{
	Name:  "audit-redis-stream",
	Value: "metadata-audit",
	Usage: "Redis stream receiving audit records",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "metadata-governance",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = append([]cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}, LogFlags...)
