// Package server exposes the managed-server lifecycle over HTTP.
//
// This package provides:
//   - CRUD endpoints for server records (env values redacted in responses)
//   - Asynchronous deploy with per-server locking (busy servers answer 429)
//   - Health endpoints backed by the log-scanning monitor
//   - A webhook endpoint for push-triggered redeploys, HMAC verified
//   - Per-IP rate limiting and structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/registry: the in-memory record store
//   - internal/deploy: host configuration mutation
//   - internal/health: cached health inference
//   - internal/storage: the deployment event log
package server
