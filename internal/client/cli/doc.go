// Package cli provides the interactive authkeeper command-line client.
//
// The REPL drives the authentication state machine and renders its
// snapshot: the prompt shows the signed-in user and status, failed commands
// print the structured error, and password prompts show the strength
// checklist before anything is sent. Transitions made by the background
// sweeps (expiry, failed renewal) are announced as they happen.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
