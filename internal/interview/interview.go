// Package interview runs one interview end to end: load the questions, serve
// the form, open it in a browser and wait for a single outcome.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"interview-go/internal/browser"
	"interview-go/internal/config"
	"interview-go/internal/logging"
	"interview-go/internal/outcome"
	"interview-go/internal/questions"
	"interview-go/internal/server"
	"interview-go/internal/session"
	"interview-go/internal/submission"
)

type Options struct {
	// QuestionsPath is read when Questions is nil. Relative paths are
	// resolved against Cwd.
	QuestionsPath string
	Questions     *questions.Set
	Cwd           string

	Config config.Config
	// Opener presents the form URL. Defaults to the system browser.
	Opener browser.Opener
	Logger *slog.Logger
}

// Result is what the calling agent receives.
type Result struct {
	Status    outcome.Status            `json:"status"`
	URL       string                    `json:"url"`
	Responses []submission.ResponseItem `json:"responses"`
	Text      string                    `json:"text"`
}

// Run blocks until the interview resolves. Cancelling ctx aborts it. Errors
// are returned only when no interview could be presented.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := logging.Subsystem(opts.Logger, "interview")

	set := opts.Questions
	if set == nil {
		loaded, err := questions.Load(opts.QuestionsPath, opts.Cwd)
		if err != nil {
			return nil, err
		}
		set = loaded
	} else if err := set.Validate(); err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return newResult(outcome.StatusAborted, "", nil, opts.Config.Timeout.Seconds()), nil
	}

	var (
		mu        sync.Mutex
		responses []submission.ResponseItem
	)
	sess := session.New(opts.Config.Timeout)
	handle, err := server.Start(ctx, server.Options{
		Questions:     set,
		Session:       sess,
		Theme:         opts.Config.Theme,
		FixedDeadline: opts.Config.FixedDeadline,
		Logger:        opts.Logger,
	}, server.Callbacks{
		OnSubmit: func(items []submission.ResponseItem) {
			mu.Lock()
			responses = items
			mu.Unlock()
		},
	})
	if err != nil {
		return nil, err
	}

	opener := opts.Opener
	if opener == nil {
		opener = browser.System{App: opts.Config.Browser}
	}
	if err := opener.Open(ctx, handle.URL); err != nil {
		handle.Close()
		return nil, fmt.Errorf("Failed to open browser: %w", err)
	}
	log.Debug("form opened", slog.String("session_id", sess.ID), slog.String("url", handle.URL))

	<-handle.Done()
	status := handle.Status()
	log.Debug("interview finished", slog.String("session_id", sess.ID), slog.String("status", status.String()))

	mu.Lock()
	defer mu.Unlock()
	return newResult(status, handle.URL, responses, opts.Config.Timeout.Seconds()), nil
}

func newResult(status outcome.Status, url string, responses []submission.ResponseItem, timeoutSeconds float64) *Result {
	if responses == nil {
		responses = []submission.ResponseItem{}
	}
	return &Result{
		Status:    status,
		URL:       url,
		Responses: responses,
		Text:      Summary(status, responses, int(math.Round(timeoutSeconds))),
	}
}

// Summary is the text handed back to the agent for an outcome.
func Summary(status outcome.Status, responses []submission.ResponseItem, timeoutSeconds int) string {
	switch status {
	case outcome.StatusCompleted:
		return "User completed the interview form.\n\nResponses:\n" + FormatResponses(responses)
	case outcome.StatusCancelled:
		return "User cancelled the interview form."
	case outcome.StatusTimeout:
		return fmt.Sprintf("Interview form timed out after %d seconds.", timeoutSeconds)
	default:
		return "Interview was aborted."
	}
}

// FormatResponses renders one "- id: value" line per response.
func FormatResponses(responses []submission.ResponseItem) string {
	if len(responses) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(responses))
	for _, item := range responses {
		lines = append(lines, fmt.Sprintf("- %s: %s", item.ID, item.Value.Display()))
	}
	return strings.Join(lines, "\n")
}
