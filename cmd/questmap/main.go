// questmap checks a quest catalog and prints its unlock graph.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lawnchairsociety/questengine/internal/logger"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

func main() {
	inputDir := flag.String("quests", "data/quests", "Path to quest definitions directory")
	outputFile := flag.String("output", "", "Output file (empty for stdout)")
	showLegend := flag.Bool("legend", true, "Show legend")
	strict := flag.Bool("strict", false, "Exit non-zero if any problem is found")
	flag.Parse()

	// Keep loader chatter out of the report
	logConfig := logger.DefaultConfig()
	logConfig.Level = "WARNING"
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	catalog := quest.NewCatalog()
	if err := catalog.LoadFromDirectory(*inputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading quests: %v\n", err)
		os.Exit(1)
	}

	var output strings.Builder

	output.WriteString(fmt.Sprintf("Quest Catalog (%s, %d quests)\n", *inputDir, catalog.Count()))
	output.WriteString(strings.Repeat("=", 60) + "\n\n")

	problems := catalog.Validate()
	unreachable := renderGraph(&output, catalog.All())
	for _, id := range unreachable {
		problems = append(problems, fmt.Sprintf("%s: hidden and never unlocked", id))
	}

	if len(problems) > 0 {
		output.WriteString(fmt.Sprintf("\nWARNING: %d problems detected!\n", len(problems)))
		for _, p := range problems {
			output.WriteString("  - " + p + "\n")
		}
	} else {
		output.WriteString("\nNo problems found.\n")
	}

	if *showLegend {
		output.WriteString(getLegend())
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(output.String()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Report written to %s\n", *outputFile)
	} else {
		fmt.Print(output.String())
	}

	if *strict && len(problems) > 0 {
		os.Exit(1)
	}
}

// renderGraph writes one line per quest and returns the hidden quests no
// visible quest can unlock
func renderGraph(output *strings.Builder, quests []*quest.Quest) []string {
	byID := make(map[string]*quest.Quest, len(quests))
	for _, q := range quests {
		byID[q.ID] = q
	}

	// BFS along unlock edges from every visible quest
	visited := make(map[string]bool)
	var queue []string
	for _, q := range quests {
		if !q.Hidden {
			visited[q.ID] = true
			queue = append(queue, q.ID)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		q, ok := byID[current]
		if !ok {
			continue
		}
		for _, target := range q.Unlocks {
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}

	var unreachable []string
	output.WriteString("Quests:\n")
	for _, q := range quests {
		if !visited[q.ID] {
			unreachable = append(unreachable, q.ID)
		}

		details := fmt.Sprintf("  [%s] %-24s %-28s", getQuestSymbol(q), truncate(q.ID, 24), truncate(q.Title, 28))
		if len(q.Requirements) > 0 {
			var reqs []string
			for _, req := range q.Requirements {
				reqs = append(reqs, req.Describe())
			}
			details += " needs: " + strings.Join(reqs, ", ")
		}
		if len(q.Unlocks) > 0 {
			unlocks := append([]string{}, q.Unlocks...)
			sort.Strings(unlocks)
			details += " -> " + strings.Join(unlocks, ", ")
		}
		output.WriteString(details + "\n")
	}
	return unreachable
}

func getQuestSymbol(q *quest.Quest) string {
	switch {
	case q.Story:
		return "S"
	case q.Hidden:
		return "H"
	case q.Category == quest.CategoryDaily:
		return "D"
	case q.Category == quest.CategoryWeekly:
		return "W"
	case q.IsRepeatable():
		return "R"
	case q.HasTimeLimit():
		return "T"
	default:
		return "#"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func getLegend() string {
	return `
Legend:
  [S] Story quest (cannot be abandoned)
  [H] Hidden until unlocked
  [D] Daily reset
  [W] Weekly reset
  [R] Repeatable
  [T] Timed
  [#] Regular quest

  Connections:
  ->  Completing this quest unlocks the listed quests
`
}
