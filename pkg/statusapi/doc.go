// Package statusapi serves the gateway's read-only status endpoint.
//
// It is observability only: GET /status returns the controller snapshot
// as JSON and GET /healthz answers liveness probes. There is no control
// surface here; mode changes go through the command console.
package statusapi
