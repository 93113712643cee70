package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"interview-go/internal/browser"
	"interview-go/internal/config"
	"interview-go/internal/interview"
	"interview-go/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one interview and print the outcome",
	Long:  "Loads a question file, opens the form in a browser and blocks until the user submits, cancels, the deadline passes or the process is interrupted.",
	RunE:  runInterview,
}

var (
	runQuestions     string
	runTimeout       int
	runVerbose       bool
	runSettings      string
	runNoOpen        bool
	runFixedDeadline bool
	runJSON          bool
	runTheme         string
	runBrowser       string
)

func init() {
	runCmd.Flags().StringVarP(&runQuestions, "questions", "q", "", "Path to the question file (JSON or YAML)")
	runCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "Seconds of inactivity before the form closes (0 disables)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log server activity to stderr")
	runCmd.Flags().StringVar(&runSettings, "settings", "", "Settings file (default ~/.pi/agent/settings.json)")
	runCmd.Flags().BoolVar(&runNoOpen, "no-open", false, "Print the form URL instead of opening a browser")
	runCmd.Flags().BoolVar(&runFixedDeadline, "fixed-deadline", false, "Do not extend the deadline on activity")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
	runCmd.Flags().StringVar(&runTheme, "theme", "", "Form theme: auto, light or dark")
	runCmd.Flags().StringVar(&runBrowser, "browser", "", "Browser application to open the form with")
	_ = runCmd.MarkFlagRequired("questions")

	rootCmd.AddCommand(runCmd)
}

func runInterview(cmd *cobra.Command, _ []string) error {
	logger := logging.New("interview", logging.Options{Verbose: runVerbose, Writer: cmd.ErrOrStderr()})
	cfg, err := resolveConfig(cmd, logger)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	var opener browser.Opener
	if runNoOpen {
		opener = browser.Print{W: cmd.ErrOrStderr()}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := interview.Run(ctx, interview.Options{
		QuestionsPath: runQuestions,
		Cwd:           cwd,
		Config:        cfg,
		Opener:        opener,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return err
}

func resolveConfig(cmd *cobra.Command, logger *slog.Logger) (config.Config, error) {
	path := runSettings
	if path == "" {
		path = config.DefaultSettingsPath()
	}
	settings, err := config.ApplyEnv(config.LoadSettings(path, logger), os.Getenv)
	if err != nil {
		return config.Config{}, err
	}

	flags := config.Flags{
		Browser:       runBrowser,
		Theme:         runTheme,
		FixedDeadline: runFixedDeadline,
	}
	if cmd.Flags().Changed("timeout") {
		timeout := runTimeout
		flags.Timeout = &timeout
	}
	return config.Resolve(settings, flags)
}
