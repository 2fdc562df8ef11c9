// Package client contains the client-side building blocks that face the
// outside world.
//
// # Overview
//
// The package provides:
//  1. The Client contract for the remote authority (Push, Pull, Ping) and
//     HTTPClient, its implementation over the JSON protocol:
//     POST /push with {changes}, GET /pull?since=<checkpoint>, GET /health.
//  2. StatusWatcher, which pings the server periodically and reports whether
//     it is reachable without doing network I/O on the caller's path.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations), which opens
//     SQLite and applies the embedded goose migrations.
//
// # Error Handling
//
// HTTP statuses map to sentinel errors that callers match with errors.Is:
// ErrUnauthorized (401), ErrForbidden (403), ErrRejected (other 4xx) and
// ErrUnavailable (5xx and transport failures).
package client
