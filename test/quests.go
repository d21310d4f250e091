package test

import (
	"fmt"
	"time"

	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/requirements"
	"github.com/lawnchairsociety/questengine/internal/server"
	"github.com/lawnchairsociety/questengine/internal/testclient"
)

// =============================================================================
// Group 2: Quest Scenarios
// =============================================================================

// TestScenarioKillProgress feeds kills one at a time and checks the
// objective and quest progress after each
func TestScenarioKillProgress(serverAddr string) TestResult {
	const testName = "Scenario A Kill Progress"

	client, err := testclient.NewTestClient(uniqueName("scena"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "wolf_hunt"}); err != nil {
		return fail(testName, "%v", err)
	}

	for kill := 1; kill <= 3; kill++ {
		logAction(testName, fmt.Sprintf("Killing wolf %d...", kill))
		if _, err := sendEvent(client, quest.EventEnvelope{Type: "kill", Target: "wolf"}); err != nil {
			return fail(testName, "%v", err)
		}

		q, err := getQuest(client, "wolf_hunt")
		if err != nil {
			return fail(testName, "%v", err)
		}
		obj := q.Objectives[0]
		logResult(testName, obj.Current == kill, fmt.Sprintf("current=%d completed=%v progress=%d", obj.Current, obj.Completed, q.Progress))

		switch kill {
		case 1:
			if obj.Current != 1 || obj.Completed || q.Progress != 0 {
				return fail(testName, "After 1 kill expected current=1 completed=false progress=0, got %d/%v/%d", obj.Current, obj.Completed, q.Progress)
			}
		case 3:
			if obj.Current != 3 || !obj.Completed || q.Progress != 100 {
				return fail(testName, "After 3 kills expected current=3 completed=true progress=100, got %d/%v/%d", obj.Current, obj.Completed, q.Progress)
			}
			if q.Status != quest.StatusActive {
				return fail(testName, "Quest should stay active until turned in, got %s", q.Status)
			}
		}
	}

	if !client.WaitForMessage("Wolf Hunt", time.Second) {
		return fail(testName, "No ready-to-turn-in notification")
	}

	return pass(testName, "Kill objective advanced 1..3 and quest stayed active")
}

// TestScenarioEarlyComplete tests that completing with objectives left fails
func TestScenarioEarlyComplete(serverAddr string) TestResult {
	const testName = "Scenario B Early Complete"

	client, err := testclient.NewTestClient(uniqueName("scenb"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "wolf_hunt"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := sendEvent(client, quest.EventEnvelope{Type: "kill", Target: "wolf"}); err != nil {
		return fail(testName, "%v", err)
	}

	logAction(testName, "Completing after one kill...")
	msg, err := client.Send(server.Request{Op: server.OpComplete, Quest: "wolf_hunt"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, !msg.OK, testclient.ErrorText(msg))
	if msg.OK || msg.Error.Code != apperrors.CodeIllegalTransition {
		return fail(testName, "Expected ILLEGAL_TRANSITION, got %+v", msg)
	}

	active, err := idsWithStatus(client, quest.StatusActive)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !hasID(active, "wolf_hunt") {
		return fail(testName, "wolf_hunt left the active list: %v", active)
	}

	return pass(testName, "Early completion refused and quest still active")
}

// TestScenarioLevelGate tests that a level requirement blocks the start
func TestScenarioLevelGate(serverAddr string) TestResult {
	const testName = "Scenario C Level Gate"

	client, err := testclient.NewTestClient(uniqueName("scenc"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	logAction(testName, "Starting elite_patrol at level 1...")
	msg, err := client.Send(server.Request{Op: server.OpStart, Quest: "elite_patrol"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	if msg.OK || msg.Error.Code != apperrors.CodeRequirementsNotMet {
		return fail(testName, "Expected REQUIREMENTS_NOT_MET, got %+v", msg)
	}

	var result requirements.Result
	if err := msg.Decode(&result); err != nil {
		return fail(testName, "Failed to decode requirement result: %v", err)
	}
	logResult(testName, !result.AllMet, fmt.Sprintf("all_met=%v requirements=%+v", result.AllMet, result.Requirements))
	if result.AllMet || len(result.Requirements) != 1 ||
		result.Requirements[0].Kind != quest.RequireLevel || result.Requirements[0].Met {
		return fail(testName, "Expected one unmet level requirement, got %+v", result)
	}

	available, err := idsWithStatus(client, quest.StatusAvailable)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !hasID(available, "elite_patrol") {
		return fail(testName, "elite_patrol left the available list: %v", available)
	}

	if !client.WaitForMessage("Elite Patrol", time.Second) {
		return fail(testName, "No locked notification")
	}

	return pass(testName, "Level requirement reported unmet and quest stayed available")
}

// TestScenarioDailyQuest tests that a completed daily waits for the next
// reset. The reset itself is time driven and covered by the engine tests.
func TestScenarioDailyQuest(serverAddr string) TestResult {
	const testName = "Scenario D Daily Quest"

	client, err := testclient.NewTestClient(uniqueName("scend"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "herb_daily"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := sendEvent(client, quest.EventEnvelope{Type: "gather", Target: "moonpetal", Amount: 2}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := mustOK(client, server.Request{Op: server.OpComplete, Quest: "herb_daily"}); err != nil {
		return fail(testName, "%v", err)
	}

	completed, err := idsWithStatus(client, quest.StatusCompleted)
	if err != nil {
		return fail(testName, "%v", err)
	}
	available, err := idsWithStatus(client, quest.StatusAvailable)
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, hasID(completed, "herb_daily"), fmt.Sprintf("completed=%v", completed))
	if !hasID(completed, "herb_daily") || hasID(available, "herb_daily") {
		return fail(testName, "Expected herb_daily completed and not available, got completed=%v available=%v", completed, available)
	}

	msg, err := client.Send(server.Request{Op: server.OpStart, Quest: "herb_daily"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	if msg.OK {
		return fail(testName, "Daily quest restarted before the reset")
	}

	view, err := status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if !view.NextDailyReset.After(time.Now()) {
		return fail(testName, "Next daily reset %v is not in the future", view.NextDailyReset)
	}

	return pass(testName, fmt.Sprintf("Daily quest locked until %s", view.NextDailyReset.Format(time.RFC3339)))
}

// TestScenarioUnlockChain tests that completing a quest opens its hidden follow-up
func TestScenarioUnlockChain(serverAddr string) TestResult {
	const testName = "Scenario E Unlock Chain"

	client, err := testclient.NewTestClient(uniqueName("scene"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	available, err := idsWithStatus(client, quest.StatusAvailable)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if hasID(available, "ember_sanctum") {
		return fail(testName, "Hidden ember_sanctum offered before unlock")
	}

	logAction(testName, "Completing ember_trial...")
	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "ember_trial"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := sendEvent(client, quest.EventEnvelope{Type: "talk", Target: "keeper_ash"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := mustOK(client, server.Request{Op: server.OpComplete, Quest: "ember_trial"}); err != nil {
		return fail(testName, "%v", err)
	}

	q, err := getQuest(client, "ember_sanctum")
	if err != nil {
		return fail(testName, "%v", err)
	}
	available, err = idsWithStatus(client, quest.StatusAvailable)
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, hasID(available, "ember_sanctum"), fmt.Sprintf("ember_sanctum is %s", q.Status))
	if !hasID(available, "ember_sanctum") || q.Status != quest.StatusAvailable {
		return fail(testName, "Expected ember_sanctum available, got %s in %v", q.Status, available)
	}

	if !client.WaitForMessage("The Ember Sanctum", time.Second) {
		return fail(testName, "No unlock notification")
	}

	return pass(testName, "Completing ember_trial unlocked ember_sanctum")
}

// =============================================================================
// Group 3: Quest Journal
// =============================================================================

// TestQuestList tests list filters
func TestQuestList(serverAddr string) TestResult {
	const testName = "Quest List"

	client, err := testclient.NewTestClient(uniqueName("list"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	msg, err := mustOK(client, server.Request{Op: server.OpList, Giver: "ranger_ilsa"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	var byGiver []quest.Quest
	if err := msg.Decode(&byGiver); err != nil {
		return fail(testName, "%v", err)
	}
	for _, q := range byGiver {
		if q.Giver != "ranger_ilsa" && q.TurnInNPC() != "ranger_ilsa" {
			return fail(testName, "Giver filter returned %s from %s", q.ID, q.Giver)
		}
	}
	logResult(testName, len(byGiver) >= 2, fmt.Sprintf("%d quests from ranger_ilsa", len(byGiver)))
	if len(byGiver) < 2 {
		return fail(testName, "Expected at least 2 quests from ranger_ilsa, got %d", len(byGiver))
	}

	msg, err = mustOK(client, server.Request{Op: server.OpList, Category: "daily"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	var daily []quest.Quest
	if err := msg.Decode(&daily); err != nil {
		return fail(testName, "%v", err)
	}
	for _, q := range daily {
		if q.Category != quest.CategoryDaily {
			return fail(testName, "Category filter returned %s (%s)", q.ID, q.Category)
		}
	}

	return pass(testName, fmt.Sprintf("Filters returned %d giver and %d daily quests", len(byGiver), len(daily)))
}

// TestAbandonQuest tests that an abandoned quest is offered again
func TestAbandonQuest(serverAddr string) TestResult {
	const testName = "Abandon Quest"

	client, err := testclient.NewTestClient(uniqueName("abandon"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "rat_cellar"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := mustOK(client, server.Request{Op: server.OpAbandon, Quest: "rat_cellar"}); err != nil {
		return fail(testName, "%v", err)
	}

	q, err := getQuest(client, "rat_cellar")
	if err != nil {
		return fail(testName, "%v", err)
	}
	if q.Status != quest.StatusAvailable {
		return fail(testName, "Expected rat_cellar available after abandon, got %s", q.Status)
	}

	return pass(testName, "Abandoned quest returned to available")
}

// TestStoryAbandonRejected tests that story quests can't be abandoned
func TestStoryAbandonRejected(serverAddr string) TestResult {
	const testName = "Story Abandon Rejected"

	client, err := testclient.NewTestClient(uniqueName("story"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "lost_caravan"}); err != nil {
		return fail(testName, "%v", err)
	}

	msg, err := client.Send(server.Request{Op: server.OpAbandon, Quest: "lost_caravan"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	logResult(testName, !msg.OK, testclient.ErrorText(msg))
	if msg.OK || msg.Error.Code != apperrors.CodeIllegalTransition {
		return fail(testName, "Expected ILLEGAL_TRANSITION, got %+v", msg)
	}

	q, err := getQuest(client, "lost_caravan")
	if err != nil {
		return fail(testName, "%v", err)
	}
	if q.Status != quest.StatusActive {
		return fail(testName, "Story quest should stay active, got %s", q.Status)
	}

	return pass(testName, "Story quest abandon refused")
}

// TestTrackQuest tests HUD tracking
func TestTrackQuest(serverAddr string) TestResult {
	const testName = "Track Quest"

	client, err := testclient.NewTestClient(uniqueName("track"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	msg, err := client.Send(server.Request{Op: server.OpTrack, Quest: "wolf_hunt"})
	if err != nil {
		return fail(testName, "%v", err)
	}
	if msg.OK {
		return fail(testName, "Tracking an inactive quest should fail")
	}

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "wolf_hunt"}); err != nil {
		return fail(testName, "%v", err)
	}
	if _, err := mustOK(client, server.Request{Op: server.OpTrack, Quest: "wolf_hunt"}); err != nil {
		return fail(testName, "%v", err)
	}

	view, err := status(client)
	if err != nil {
		return fail(testName, "%v", err)
	}
	if view.Tracked != "wolf_hunt" {
		return fail(testName, "Expected wolf_hunt tracked, got %q", view.Tracked)
	}

	return pass(testName, "Active quest tracked")
}

// TestQuestLog tests reading the quest log
func TestQuestLog(serverAddr string) TestResult {
	const testName = "Quest Log"

	client, err := testclient.NewTestClient(uniqueName("log"), serverAddr)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer client.Close()

	if _, err := mustOK(client, server.Request{Op: server.OpStart, Quest: "wolf_hunt"}); err != nil {
		return fail(testName, "%v", err)
	}

	unread := func() ([]quest.LogEntry, error) {
		msg, err := mustOK(client, server.Request{Op: server.OpLog, Unread: true})
		if err != nil {
			return nil, err
		}
		var entries []quest.LogEntry
		err = msg.Decode(&entries)
		return entries, err
	}

	entries, err := unread()
	if err != nil {
		return fail(testName, "%v", err)
	}
	if len(entries) == 0 || entries[len(entries)-1].QuestID != "wolf_hunt" {
		return fail(testName, "Expected an unread wolf_hunt entry, got %+v", entries)
	}

	if _, err := mustOK(client, server.Request{Op: server.OpRead}); err != nil {
		return fail(testName, "%v", err)
	}
	entries, err = unread()
	if err != nil {
		return fail(testName, "%v", err)
	}
	if len(entries) != 0 {
		return fail(testName, "Expected no unread entries after read, got %d", len(entries))
	}

	return pass(testName, "Log entry recorded and marked read")
}
