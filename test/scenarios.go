package test

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/server"
	"github.com/lawnchairsociety/questengine/internal/testclient"
)

// uniqueCounter provides unique IDs for test players within a single run
var uniqueCounter uint64

// runTag keeps player IDs from colliding with saved state from earlier runs
var runTag = strconv.FormatInt(time.Now().Unix(), 36)

// uniqueName generates a unique player ID by appending the run tag and a
// letter-based suffix
func uniqueName(base string) string {
	counter := atomic.AddUint64(&uniqueCounter, 1)
	return base + runTag + counterToLetters(counter)
}

// counterToLetters converts a number to a letter sequence (1=a, 2=b, ..., 26=z, 27=aa, 28=ab, ...)
func counterToLetters(n uint64) string {
	if n == 0 {
		return "a"
	}
	result := ""
	for n > 0 {
		n-- // Make it 0-indexed
		result = string(rune('a'+(n%26))) + result
		n /= 26
	}
	return result
}

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// TestResult represents the result of a test. Group and Elapsed are
// filled in by Run.
type TestResult struct {
	Name    string
	Group   string
	Passed  bool
	Message string
	Elapsed time.Duration
}

func pass(testName, message string) TestResult {
	return TestResult{Name: testName, Passed: true, Message: message}
}

func fail(testName, format string, args ...any) TestResult {
	return TestResult{Name: testName, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

// =============================================================================
// Request Helpers
// =============================================================================

// mustOK sends req and turns a failed response into an error
func mustOK(client *testclient.TestClient, req server.Request) (testclient.Message, error) {
	msg, err := client.Send(req)
	if err != nil {
		return msg, err
	}
	if !msg.OK {
		return msg, fmt.Errorf("%s %s failed: %s", req.Op, req.Quest, testclient.ErrorText(msg))
	}
	return msg, nil
}

// getQuest fetches one quest with its current objectives
func getQuest(client *testclient.TestClient, id string) (*quest.Quest, error) {
	msg, err := mustOK(client, server.Request{Op: server.OpGet, Quest: id})
	if err != nil {
		return nil, err
	}
	var view server.QuestView
	if err := msg.Decode(&view); err != nil {
		return nil, err
	}
	return view.Quest, nil
}

// idsWithStatus lists the quest IDs in one status index
func idsWithStatus(client *testclient.TestClient, status quest.Status) ([]string, error) {
	msg, err := mustOK(client, server.Request{Op: server.OpList, Status: string(status)})
	if err != nil {
		return nil, err
	}
	var quests []quest.Quest
	if err := msg.Decode(&quests); err != nil {
		return nil, err
	}
	ids := make([]string, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	return ids, nil
}

func hasID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// sendEvent feeds one game event and returns the quests it advanced
func sendEvent(client *testclient.TestClient, ev quest.EventEnvelope) ([]string, error) {
	msg, err := mustOK(client, server.Request{Op: server.OpEvent, Event: &ev})
	if err != nil {
		return nil, err
	}
	var result server.EventResult
	if err := msg.Decode(&result); err != nil {
		return nil, err
	}
	return result.Changed, nil
}

func status(client *testclient.TestClient) (server.StatusView, error) {
	var view server.StatusView
	msg, err := mustOK(client, server.Request{Op: server.OpStatus})
	if err != nil {
		return view, err
	}
	err = msg.Decode(&view)
	return view, err
}

// =============================================================================
// Test Runner
// =============================================================================

type testEntry struct {
	Name string
	Func func(string) TestResult
}

// testGroup is a named set of tests run in order
type testGroup struct {
	Name  string
	Tests []testEntry
}

var groups = []testGroup{
	{"connection", []testEntry{
		{"Basic Connection", TestBasicConnection},
		{"Duplicate Player Rejected", TestDuplicatePlayerRejected},
		{"Bad Request Rejected", TestBadRequestRejected},
		{"Session Persistence", TestSessionPersistence},
	}},
	{"scenarios", []testEntry{
		{"Scenario A Kill Progress", TestScenarioKillProgress},
		{"Scenario B Early Complete", TestScenarioEarlyComplete},
		{"Scenario C Level Gate", TestScenarioLevelGate},
		{"Scenario D Daily Quest", TestScenarioDailyQuest},
		{"Scenario E Unlock Chain", TestScenarioUnlockChain},
	}},
	{"journal", []testEntry{
		{"Quest List", TestQuestList},
		{"Abandon Quest", TestAbandonQuest},
		{"Story Abandon Rejected", TestStoryAbandonRejected},
		{"Track Quest", TestTrackQuest},
		{"Quest Log", TestQuestLog},
	}},
	{"progression", []testEntry{
		{"Quest Rewards", TestQuestRewards},
		{"Quest Items", TestQuestItems},
		{"Level Up", TestLevelUp},
	}},
}

// Selection narrows which tests run. Empty fields match everything.
type Selection struct {
	Group  string // exact group name
	Filter string // case-insensitive substring of the test name
}

func (s Selection) matches(group, name string) bool {
	if s.Group != "" && !strings.EqualFold(s.Group, group) {
		return false
	}
	return s.Filter == "" || strings.Contains(strings.ToLower(name), strings.ToLower(s.Filter))
}

// GroupNames lists the test groups in run order
func GroupNames() []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

// TestNames lists "group/name" for every selected test
func TestNames(sel Selection) []string {
	var names []string
	for _, g := range groups {
		for _, t := range g.Tests {
			if sel.matches(g.Name, t.Name) {
				names = append(names, g.Name+"/"+t.Name)
			}
		}
	}
	return names
}

// Run runs every selected test against serverAddr in order
func Run(serverAddr string, sel Selection) []TestResult {
	var results []TestResult
	for _, g := range groups {
		for _, t := range g.Tests {
			if !sel.matches(g.Name, t.Name) {
				continue
			}
			start := time.Now()
			r := t.Func(serverAddr)
			r.Name = t.Name
			r.Group = g.Name
			r.Elapsed = time.Since(start)
			results = append(results, r)
		}
	}
	return results
}

// Summary totals a set of results
type Summary struct {
	Passed  int
	Failed  int
	Elapsed time.Duration
}

// OK reports whether anything ran and nothing failed
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Passed > 0
}

// Summarize totals results
func Summarize(results []TestResult) Summary {
	var s Summary
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Elapsed += r.Elapsed
	}
	return s
}

// PrintResults prints each result grouped, then the totals
func PrintResults(results []TestResult) Summary {
	rule := strings.Repeat("=", 60)
	fmt.Println(rule)
	fmt.Println("Integration Test Results")
	fmt.Println(rule)

	group := ""
	for _, r := range results {
		if r.Group != group {
			group = r.Group
			fmt.Printf("\n%s\n", group)
		}
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %s (%s): %s\n", mark, r.Name, r.Elapsed.Round(time.Millisecond), r.Message)
	}

	sum := Summarize(results)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Total: %d | Passed: %d | Failed: %d | Time: %s\n",
		sum.Passed+sum.Failed, sum.Passed, sum.Failed, sum.Elapsed.Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 60))
	return sum
}
