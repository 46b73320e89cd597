// Command agentcore drives a single AgentController session from the
// command line: read a task, run the step loop until the AgentState is
// terminal, paused, or awaiting user input, print the outcome.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "Run an Agent Execution Core session",
}

func init() {
	rootCmd.AddCommand(runCmd)
}
