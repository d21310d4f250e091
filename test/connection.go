package test

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/server"
	"github.com/lawnchairsociety/questengine/internal/testclient"
)

// =============================================================================
// Group 1: Connection & Sessions
// =============================================================================

// TestBasicConnection tests that a client can open a session and query it
func TestBasicConnection(serverAddr string) TestResult {
	const testName = "Basic Connection"

	name := uniqueName("player")
	logAction(testName, fmt.Sprintf("Connecting as '%s'...", name))
	client, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer client.Close()

	view, err := status(client)
	if err != nil {
		return fail(testName, "Status failed: %v", err)
	}
	logResult(testName, view.Level == 1, fmt.Sprintf("New player at level %d", view.Level))

	if view.Player != name || view.Level != 1 {
		return fail(testName, "Expected a fresh level 1 player %s, got %+v", name, view)
	}

	return pass(testName, "Connected successfully as a new level 1 player")
}

// TestDuplicatePlayerRejected tests that a player can hold only one session
func TestDuplicatePlayerRejected(serverAddr string) TestResult {
	const testName = "Duplicate Player Rejected"

	name := uniqueName("dupe")
	client, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Opening a second session for the same player...")
	second, err := testclient.NewTestClient(name, serverAddr)
	if err == nil {
		second.Close()
		return fail(testName, "Second session for %s was accepted", name)
	}
	logResult(testName, true, fmt.Sprintf("Second session refused: %v", err))

	return pass(testName, "Second session for the same player was refused")
}

// TestBadRequestRejected tests that malformed requests get BAD_REQUEST
func TestBadRequestRejected(serverAddr string) TestResult {
	const testName = "Bad Request Rejected"

	client, err := testclient.NewTestClient(uniqueName("badreq"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Sending an unknown op...")
	msg, err := client.Send(server.Request{Op: "teleport"})
	if err != nil {
		return fail(testName, "Request failed: %v", err)
	}
	logResult(testName, !msg.OK, testclient.ErrorText(msg))

	if msg.OK || msg.Error == nil || msg.Error.Code != "BAD_REQUEST" {
		return fail(testName, "Expected BAD_REQUEST, got %+v", msg)
	}

	return pass(testName, "Unknown op rejected with BAD_REQUEST")
}

// TestSessionPersistence tests that quest progress survives a reconnect
func TestSessionPersistence(serverAddr string) TestResult {
	const testName = "Session Persistence"

	name := uniqueName("persist")
	client, err := testclient.NewTestClient(name, serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}

	logAction(testName, "Starting wolf_hunt and killing one wolf...")
	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "wolf_hunt"}); err != nil {
		client.Close()
		return fail(testName, "%v", err)
	}
	if _, err := sendEvent(client, quest.EventEnvelope{Type: "kill", Target: "wolf"}); err != nil {
		client.Close()
		return fail(testName, "%v", err)
	}
	client.Close()

	// The server saves on disconnect before freeing the player slot
	var again *testclient.TestClient
	deadline := time.Now().Add(3 * time.Second)
	for {
		again, err = testclient.NewTestClient(name, serverAddr)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return fail(testName, "Reconnect failed: %v", err)
	}
	defer again.Close()

	q, err := getQuest(again, "wolf_hunt")
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, q.Status == quest.StatusActive, fmt.Sprintf("wolf_hunt is %s with %d kills", q.Status, q.Objectives[0].Current))

	if q.Status != quest.StatusActive || q.Objectives[0].Current != 1 {
		return fail(testName, "Expected active wolf_hunt with 1 kill after reconnect, got %s with %d", q.Status, q.Objectives[0].Current)
	}

	return pass(testName, "Quest progress survived a reconnect")
}
