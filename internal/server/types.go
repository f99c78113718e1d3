// Package server defines the wire reply strings shared across session logic
// plus utility helpers reused by the session and core code.
package server

import (
	"fmt"
	"strings"
)

// Reply literals sent back to a session's own connection. These are part of
// the wire contract and must not be reworded.
const (
	ReplyRegistrationOK    = "Registration successful"
	ReplyRegistrationError = "Registration error"
	ReplyLoginOK           = "Login Successful"
	ReplyWrongPassword     = "Wrong Password"
	ReplyNoSuchUser        = "User does not exist"
	ReplyLoginFirst        = "Login first"
	ReplyNotOnline         = "User is not online"
	ReplyUnknownCommand    = "Unknown command"
)

// FormatRelay renders a relayed message as delivered to the recipient's
// connection. Also part of the wire contract.
func FormatRelay(sender, content string) string {
	return fmt.Sprintf("From %s: %s", sender, content)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
