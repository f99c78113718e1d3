// Package integration contains integration tests for the Textline server.
//
// These tests verify complete system behavior with real HTTP servers and
// WebSocket connections: registration, login, presence, directed message
// delivery, and persistence across restarts.
package integration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/larkvale/textline/test/testhelpers"
)

func TestRegisterLoginFlow(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")
	conn := testhelpers.DialChat(t, testServer)

	testhelpers.SendCommand(t, conn, "reg -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Registration successful")

	testhelpers.SendCommand(t, conn, "reg -u alice -p other")
	testhelpers.ExpectReply(t, conn, "Registration error")

	testhelpers.SendCommand(t, conn, "login -u carol -p secret")
	testhelpers.ExpectReply(t, conn, "User does not exist")

	testhelpers.SendCommand(t, conn, "login -u alice -p wrong")
	testhelpers.ExpectReply(t, conn, "Wrong Password")

	testhelpers.SendCommand(t, conn, "login -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Login Successful")
}

func TestUnknownCommandReply(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")
	conn := testhelpers.DialChat(t, testServer)

	for _, line := range []string{"hello there", "reg -u alice", "   "} {
		testhelpers.SendCommand(t, conn, line)
		testhelpers.ExpectReply(t, conn, "Unknown command")
	}

	// The session survives malformed input.
	testhelpers.SendCommand(t, conn, "reg -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Registration successful")
}

func TestTextRequiresLogin(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	conn := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, conn, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, conn, "Registration successful")

	bob := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, bob, "login -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Login Successful")

	// Anonymous senders are refused even though the recipient is online.
	testhelpers.SendCommand(t, conn, "text -u bob hi")
	testhelpers.ExpectReply(t, conn, "Login first")
	testhelpers.ExpectNoMessage(t, bob, 200*time.Millisecond)
}

func TestDirectMessageDelivery(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	alice := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, alice, "reg -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")
	testhelpers.SendCommand(t, alice, "login -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Login Successful")

	bob := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, bob, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Registration successful")
	testhelpers.SendCommand(t, bob, "login -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Login Successful")

	testhelpers.SendCommand(t, alice, "text -u bob hello")
	testhelpers.ExpectReply(t, bob, "From alice: hello")

	// Successful delivery produces no reply on the sender's connection.
	testhelpers.ExpectNoMessage(t, alice, 200*time.Millisecond)
}

func TestTextToOfflineRecipient(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	alice := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, alice, "reg -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")
	testhelpers.SendCommand(t, alice, "login -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Login Successful")

	// carol is registered but never logged in.
	testhelpers.SendCommand(t, alice, "reg -u carol -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")

	testhelpers.SendCommand(t, alice, "text -u carol hi")
	testhelpers.ExpectReply(t, alice, "User is not online")
}

func TestQuitRemovesPresence(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	alice := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, alice, "reg -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")
	testhelpers.SendCommand(t, alice, "login -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Login Successful")

	bob := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, bob, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Registration successful")
	testhelpers.SendCommand(t, bob, "login -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Login Successful")

	testhelpers.SendCommand(t, bob, "quit")
	// The presence entry is removed before the close frame is sent, so once
	// the close is observed the name is reliably offline.
	testhelpers.ExpectClose(t, bob, testhelpers.ReplyTimeout)

	testhelpers.SendCommand(t, alice, "text -u bob hi")
	testhelpers.ExpectReply(t, alice, "User is not online")
}

func TestRepliesFlushedBeforeQuitClose(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")
	conn := testhelpers.DialChat(t, testServer)

	// Pipeline a command and quit without waiting for the reply. The reply
	// must still arrive ahead of the close frame.
	testhelpers.SendCommand(t, conn, "reg -u alice -p pw")
	testhelpers.SendCommand(t, conn, "quit")

	testhelpers.ExpectReply(t, conn, "Registration successful")
	testhelpers.ExpectClose(t, conn, testhelpers.ReplyTimeout)
}

func TestDisconnectWithoutQuitRemovesPresence(t *testing.T) {
	testServer, core := testhelpers.StartChatServer(t, "")

	bob := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, bob, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Registration successful")
	testhelpers.SendCommand(t, bob, "login -u bob -p pw")
	testhelpers.ExpectReply(t, bob, "Login Successful")

	_ = bob.Close()

	deadline := time.Now().Add(testhelpers.ReplyTimeout)
	for core.OnlineCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Presence entry was not cleaned up after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReLoginSupersedesOldSession(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	alice := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, alice, "reg -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")
	testhelpers.SendCommand(t, alice, "login -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Login Successful")

	first := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, first, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, first, "Registration successful")
	testhelpers.SendCommand(t, first, "login -u bob -p pw")
	testhelpers.ExpectReply(t, first, "Login Successful")

	second := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, second, "login -u bob -p pw")
	testhelpers.ExpectReply(t, second, "Login Successful")

	// Relayed messages go to the newer session only.
	testhelpers.SendCommand(t, alice, "text -u bob hello")
	testhelpers.ExpectReply(t, second, "From alice: hello")
	testhelpers.ExpectNoMessage(t, first, 200*time.Millisecond)

	// The superseded session can still send.
	testhelpers.SendCommand(t, first, "text -u alice still-sending")
	testhelpers.ExpectReply(t, alice, "From bob: still-sending")
}

func TestStaleCleanupDoesNotEvictNewLogin(t *testing.T) {
	testServer, _ := testhelpers.StartChatServer(t, "")

	alice := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, alice, "reg -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Registration successful")
	testhelpers.SendCommand(t, alice, "login -u alice -p pw")
	testhelpers.ExpectReply(t, alice, "Login Successful")

	first := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, first, "reg -u bob -p pw")
	testhelpers.ExpectReply(t, first, "Registration successful")
	testhelpers.SendCommand(t, first, "login -u bob -p pw")
	testhelpers.ExpectReply(t, first, "Login Successful")

	second := testhelpers.DialChat(t, testServer)
	testhelpers.SendCommand(t, second, "login -u bob -p pw")
	testhelpers.ExpectReply(t, second, "Login Successful")

	// The superseded session quits after the re-login. Its cleanup must not
	// delete the newer session's presence entry.
	testhelpers.SendCommand(t, first, "quit")
	testhelpers.ExpectClose(t, first, testhelpers.ReplyTimeout)

	testhelpers.SendCommand(t, alice, "text -u bob persistent")
	testhelpers.ExpectReply(t, second, "From alice: persistent")
}

func TestDirectoryPersistsAcrossRestart(t *testing.T) {
	usersFile := filepath.Join(t.TempDir(), "users.json")

	firstServer, firstCore := testhelpers.StartChatServer(t, usersFile)
	conn := testhelpers.DialChat(t, firstServer)
	testhelpers.SendCommand(t, conn, "reg -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Registration successful")
	testhelpers.SendCommand(t, conn, "login -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Login Successful")

	_ = conn.Close()
	firstServer.Close()
	_ = firstCore.Shutdown(testhelpers.ReplyTimeout)

	secondServer, secondCore := testhelpers.StartChatServer(t, usersFile)
	if secondCore.UserCount() != 1 {
		t.Fatalf("Expected 1 registered user after restart, got %d", secondCore.UserCount())
	}
	// Presence never survives a restart.
	if secondCore.OnlineCount() != 0 {
		t.Fatalf("Expected empty presence after restart, got %d entries", secondCore.OnlineCount())
	}

	conn = testhelpers.DialChat(t, secondServer)
	testhelpers.SendCommand(t, conn, "login -u alice -p secret")
	testhelpers.ExpectReply(t, conn, "Login Successful")
}
