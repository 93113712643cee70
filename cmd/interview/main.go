// Package main is the interview command: it presents a question file as a
// browser form and prints the answers for the calling agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "interview",
	Short:         "Ask questions through a local browser form",
	Long:          "interview serves a one-shot form on localhost, waits for the user to submit, cancel or time out, and prints the result.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
