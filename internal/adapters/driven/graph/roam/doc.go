// Package roam provides a Roam Research backend implementation of the
// driven.GraphClient port.
//
// The client speaks the Roam backend query API: Datalog queries POSTed to
// /api/graph/{graph}/q with bearer token authentication. The backend
// answers with a 307 redirect to a per-graph peer on first contact, so the
// client follows redirects manually and caches the peer URL.
//
// Transient failures (429, 5xx, network errors) are retried with bounded
// exponential backoff. Exhausted retries surface as
// domain.ErrSourceUnreachable so callers can degrade gracefully.
package roam
