// Package server wires HTTP handlers into a ServeMux for the Textline
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, and test console. The shared
// core is passed in explicitly; there is no package-level instance.
func SetupRoutes(core *Core) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(core))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
