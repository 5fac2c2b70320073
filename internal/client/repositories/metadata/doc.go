// Package metadata is the local key/value table backing the client's secret
// store: tokens, the cached session pair and the secret store salt all live
// here as opaque byte values.
package metadata
