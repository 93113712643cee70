package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"interview-go/internal/questions"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a question file and print its draft key",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	set, err := questions.Load(args[0], cwd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d questions OK\n", len(set.Questions))
	fmt.Fprintf(out, "draft key: %s\n", set.DraftKey())
	return nil
}
