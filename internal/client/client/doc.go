// Package client contains the client side of the authentication boundary.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     remote authentication service: Login, Register, Logout, Refresh,
//     profile, password and email verification calls, and Ping.
//  2. A concrete gRPC implementation (see GRPCClient). Messages travel as
//     google.protobuf.Struct values on service authkeeper.v1.AuthService; a
//     unary interceptor injects the bearer token and a correlation id.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Service failures are mapped onto the boundary sentinels of package common
// (common.ErrInvalidCredentials, common.ErrTokenExpired, ...), so callers
// match them with errors.Is. The reason is taken from a google.rpc.ErrorInfo
// status detail when present, otherwise from the gRPC status code.
//
// # Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and are additionally bounded by the configured request
// timeout.
package client
