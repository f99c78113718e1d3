// Package server implements the Textline chat service: the WebSocket
// endpoint, the per-connection session state machine, the registered-user
// directory with its JSON snapshot persistence, and the online-presence
// registry used to route directed text messages between sessions.
//
// The implementation is organized into specialized files for configuration,
// the command parser, the shared core state, sessions, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project
// grows.
package server
