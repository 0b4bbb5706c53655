package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/metadata-governance-backend/api/metadatahandler"
	"github.com/ruteri/metadata-governance-backend/audit"
	"github.com/ruteri/metadata-governance-backend/cmd/flags"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/httpserver"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/ruteri/metadata-governance-backend/security"
	"github.com/urfave/cli/v2"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.RepositoryURIFlag,
	flags.ConfigFileFlag,
	flags.MaxPageSizeFlag,
	flags.AuditRedisAddrFlag,
	flags.AuditRedisStreamFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "metadata-governance-server",
		Usage: "Serve the governance metadata API over a repository backend",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Failed to load configuration", "err", err)
				return err
			}

			location, err := interfaces.NewRepositoryLocation(cCtx.String(flags.RepositoryURIFlag.Name))
			if err != nil {
				logger.Error("Invalid repository URI", "err", err)
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			repo, err := repository.NewFactory(logger).RepositoryFor(ctx, location)
			if err != nil {
				logger.Error("Failed to create repository", "err", err)
				return err
			}
			defer repo.Close()
			logger.Info("Repository ready", "repository", repo.Name(), "scheme", location.Scheme)

			sinks := []interfaces.AuditLog{audit.NewSlogAuditLog(logger)}
			if cfg.Audit.RedisAddr != "" {
				logger.Info("Appending audit records to Redis", "addr", cfg.Audit.RedisAddr, "stream", cfg.Audit.RedisStream)
				sinks = append(sinks, audit.NewRedisStreamAuditLog(cfg.Audit.RedisAddr, cfg.Audit.RedisStream, cfg.Audit.MaxLen, logger))
			}

			repoHandler := handlers.NewRepositoryHandler(
				repo,
				nil,
				security.NewZoneSecurityVerifier(cfg.Security, logger),
				audit.NewMultiAuditLog(sinks...),
				cfg.Server.MaxPageSize,
				logger,
			)
			routes := metadatahandler.NewHandler(repoHandler, cfg.Zones, logger)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name)), routes, repo)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
