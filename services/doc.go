// Package services contains the HTTP-facing auction service and its
// read-side collaborators: a NATS JetStream event publisher, a Postgres
// archiver for bid and event history, and a Redis snapshot cache. The
// collaborators are optional; the auction state machine in package
// auction never depends on any of them.
package services
