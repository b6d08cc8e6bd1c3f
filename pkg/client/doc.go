// Package client is a Go client library for the cluster's JSON-over-HTTP
// RPC surfaces (spec.md section 6): ManagerClient, WorkerClient, and
// NodeClient each wrap a base URL and an *http.Client, with one method per
// endpoint, following the teacher's per-method context.WithTimeout style
// (pkg/client/client.go in the original) generalized from gRPC+mTLS stubs
// to plain JSON POST calls.
package client
