// Package testhelpers provides common utilities and helper functions for
// testing the Textline server.
//
// It contains reusable utilities shared across unit and integration tests:
// starting a fully wired chat server over httptest, dialing WebSocket
// sessions, and asserting on protocol replies, to reduce duplication in the
// test files.
package testhelpers

import (
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/larkvale/textline/internal/server"
)

// ReplyTimeout bounds how long helpers wait for a single protocol reply.
const ReplyTimeout = 2 * time.Second

// StartChatServer starts a fully wired chat server over httptest, backed by
// the users file at usersFile (a fresh temp file when empty). It configures
// the package config to accept the test server's origin and a generous rate
// limit so tests can send commands back to back. Both the test server and
// the config reset are cleaned up automatically; the Core is returned for
// shutdown and state assertions.
func StartChatServer(t *testing.T, usersFile string) (*httptest.Server, *server.Core) {
	t.Helper()

	if usersFile == "" {
		usersFile = filepath.Join(t.TempDir(), "users.json")
	}

	directory, err := server.NewUserDirectory(server.NewFileStore(usersFile))
	if err != nil {
		t.Fatalf("Failed to load user directory: %v", err)
	}

	core := server.NewCore(directory)
	testServer := httptest.NewServer(server.SetupRoutes(core))

	cfg := server.NewConfig()
	cfg.UsersFile = usersFile
	cfg.AllowedOrigins = []string{testServer.URL}
	cfg.RateLimit.Burst = 1000
	server.SetConfig(cfg)

	t.Cleanup(func() {
		testServer.Close()
		_ = core.Shutdown(ReplyTimeout)
		server.SetConfig(nil)
	})

	return testServer, core
}

// WebSocketURL converts a test server's base URL into its ws:// endpoint.
func WebSocketURL(testServer *httptest.Server) string {
	return "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
}

// DialChat opens a WebSocket session against the test server, presenting the
// server's own URL as the origin. The connection is closed on cleanup.
func DialChat(t *testing.T, testServer *httptest.Server) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Origin", testServer.URL)

	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(testServer), header)
	if err != nil {
		t.Fatalf("Failed to dial chat server: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// SendCommand writes one command line as a text frame.
func SendCommand(t *testing.T, conn *websocket.Conn, command string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(command)); err != nil {
		t.Fatalf("Failed to send command %q: %v", command, err)
	}
}

// ReadReply reads the next text frame, failing the test on error or timeout.
func ReadReply(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(ReplyTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	return string(payload)
}

// ExpectReply asserts that the next frame on conn is exactly want.
func ExpectReply(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	if got := ReadReply(t, conn); got != want {
		t.Fatalf("Expected reply %q, got %q", want, got)
	}
}

// ExpectNoMessage asserts that nothing arrives on conn within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", payload)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// ExpectClose waits for the peer to close the connection.
func ExpectClose(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			return
		}
		if strings.Contains(err.Error(), "use of closed network connection") {
			return
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			t.Fatalf("Timed out waiting for connection close")
		}
		// Any other read error also means the connection is gone.
		return
	}
}
