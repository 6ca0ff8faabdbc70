// Package httpserver provides the base HTTP server shared by SafeBid
// binaries: standard middleware, health and drain endpoints, an optional
// metrics listener, and graceful shutdown. Domain routes are plugged in
// through the RouteRegistrar interface.
package httpserver
