// Command testrunner drives a live quest server through the integration
// scenarios in the test package.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/questengine/test"
)

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "Quest server address (host:port)")
	verbose := flag.Bool("v", false, "Show each action as tests run")
	group := flag.String("group", "", "Only run one group ("+strings.Join(test.GroupNames(), ", ")+")")
	filter := flag.String("filter", "", "Only run tests whose names contain this text")
	list := flag.Bool("list", false, "List selected test names and exit")
	flag.Parse()

	sel := test.Selection{Group: *group, Filter: *filter}

	if *list {
		for _, name := range test.TestNames(sel) {
			fmt.Println(name)
		}
		return
	}

	if len(test.TestNames(sel)) == 0 {
		fmt.Fprintf(os.Stderr, "No tests match group %q filter %q\n", *group, *filter)
		os.Exit(2)
	}

	test.Verbose = *verbose
	fmt.Printf("Running integration tests against %s\n", *serverAddr)
	fmt.Println("The server must be loaded with the bundled data/quests catalog.")
	fmt.Println()

	summary := test.PrintResults(test.Run(*serverAddr, sel))
	if !summary.OK() {
		os.Exit(1)
	}
}
