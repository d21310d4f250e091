package test

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/questengine/internal/engine"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/server"
	"github.com/lawnchairsociety/questengine/internal/testclient"
)

// =============================================================================
// Group 4: Progression
// =============================================================================

// completeQuest starts id, feeds the events that finish it and turns it in
func completeQuest(client *testclient.TestClient, id string, events ...quest.EventEnvelope) (engine.RewardReport, error) {
	var report engine.RewardReport
	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: id}); err != nil {
		return report, err
	}
	for _, ev := range events {
		if _, err := sendEvent(client, ev); err != nil {
			return report, err
		}
	}
	msg, err := mustOK(client, server.Request{Op: server.OpComplete, Quest: id})
	if err != nil {
		return report, err
	}
	err = msg.Decode(&report)
	return report, err
}

var wolfKills = quest.EventEnvelope{Type: "kill", Target: "wolf", Amount: 3}

// TestQuestRewards tests that turning in a quest pays its rewards
func TestQuestRewards(serverAddr string) TestResult {
	const testName = "Quest Rewards"

	client, err := testclient.NewTestClient(uniqueName("rewards"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	report, err := completeQuest(client, "wolf_hunt", wolfKills)
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, len(report.Failures) == 0, fmt.Sprintf("granted %+v", report.Granted))
	if len(report.Failures) != 0 {
		return fail(testName, "Reward failures: %+v", report.Failures)
	}

	view, err := status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if view.Gold != 40 || view.Experience != 120 {
		return fail(testName, "Expected 40 gold and 120 XP, got %d and %d", view.Gold, view.Experience)
	}

	if !client.WaitForMessage("Wolf Hunt", time.Second) {
		return fail(testName, "No completion notification")
	}

	return pass(testName, "Completion paid 40 gold and 120 XP")
}

// TestQuestItems tests that quest items are given on start and taken back on abandon
func TestQuestItems(serverAddr string) TestResult {
	const testName = "Quest Items"

	client, err := testclient.NewTestClient(uniqueName("items"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "courier_run"}); err != nil {
		return fail(testName, "%v", err)
	}
	view, err := status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, view.Inventory["parcel"] == 1, fmt.Sprintf("inventory %v", view.Inventory))
	if view.Inventory["parcel"] != 1 {
		return fail(testName, "Expected a parcel after accepting, got %v", view.Inventory)
	}

	if _, err := mustOK(client, server.Request{Op: server.OpAbandon, Quest: "courier_run"}); err != nil {
		return fail(testName, "%v", err)
	}
	view, err = status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if view.Inventory["parcel"] != 0 {
		return fail(testName, "Expected the parcel reclaimed on abandon, got %v", view.Inventory)
	}

	return pass(testName, "Quest item granted on accept and reclaimed on abandon")
}

// TestLevelUp tests that quest experience levels the player up
func TestLevelUp(serverAddr string) TestResult {
	const testName = "Level Up"

	client, err := testclient.NewTestClient(uniqueName("levelup"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := completeQuest(client, "wolf_hunt", wolfKills); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := completeQuest(client, "ember_trial", quest.EventEnvelope{Type: "talk", Target: "keeper_ash"}); err != nil {
		return fail(testName, "%v", err)
	}

	view, err := status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, view.Level >= 2, fmt.Sprintf("level %d with %d XP", view.Level, view.Experience))
	if view.Level < 2 {
		return fail(testName, "Expected level 2 after %d XP, still level %d", view.Experience, view.Level)
	}

	if !client.WaitForMessage("level 2", time.Second) {
		return fail(testName, "No level up notification")
	}

	return pass(testName, fmt.Sprintf("Reached level %d with %d XP", view.Level, view.Experience))
}
