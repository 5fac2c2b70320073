// Package common contains shared constants, the authentication error taxonomy
// and small helpers used across authkeeper components.
package common

// AuthorizationHeaderName is the gRPC metadata key used to carry the bearer
// access token on outbound requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the access token in the authorization header.
const BearerPrefix = "Bearer "

// CorrelationHeaderName carries the client-generated request id.
const CorrelationHeaderName = "x-correlation-id"
