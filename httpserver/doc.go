/*
Package httpserver runs the metadata governance API.

Server mounts the routes of a RouteRegistrar behind request logging and panic
recovery, and adds the operational endpoints:

  - GET /livez - always 200 while the process runs
  - GET /readyz - 200 unless draining or the repository is unreachable
  - GET /drain - mark the server not ready so load balancers stop routing to it
  - GET /undrain - mark the server ready again
  - /debug/pprof - when EnablePprof is set

Prometheus metrics are served on a separate listener at MetricsAddr.

Shutdown drains for DrainDuration before stopping both listeners within
GracefulShutdownDuration.

	routes := metadatahandler.NewHandler(repoHandler, cfg.Zones, logger)
	server, err := httpserver.New(serverConfig, routes, repo)
	if err != nil {
		return err
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
