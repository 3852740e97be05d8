/*
Package api exposes felt over HTTP and gRPC.

One http.ServeMux carries every HTTP route:

	/ws            websocket upgrade, handled by transport.Hub
	/api/sessions  GET, public session listing as JSON
	/health        overall component health (metrics.HealthHandler)
	/ready         readiness of the critical components
	/live          process liveness
	/metrics       Prometheus exposition

When a gRPC address is configured the server also runs the standard
grpc.health.v1 service. GRPCHealth mirrors metrics.Ready onto it for both
the empty service name and "felt", so load balancers and orchestrators can
probe either protocol. Shutdown flips the gRPC status to NOT_SERVING before
draining connections.

Unary gRPC calls go through RecoveryInterceptor and LoggingInterceptor.
*/
package api
