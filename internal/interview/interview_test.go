package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-go/internal/browser"
	"interview-go/internal/config"
	"interview-go/internal/outcome"
	"interview-go/internal/submission"
)

const questionFile = `{
  "title": "Release",
  "questions": [
    {"id": "ship", "type": "single", "question": "Ship it?", "options": ["Yes", "No"]},
    {"id": "areas", "type": "multi", "question": "Areas?", "options": ["api", "ui"]}
  ]
}`

func requireLoopback(t *testing.T) {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skip("loopback sockets are not available in this environment")
	}
	_ = listener.Close()
}

func writeQuestions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "questions.json"), []byte(questionFile), 0o644))
	return dir
}

func baseOptions(t *testing.T, opener browser.Opener) Options {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	return Options{
		QuestionsPath: "questions.json",
		Cwd:           writeQuestions(t),
		Config:        config.Config{Timeout: time.Minute, Theme: config.ThemeAuto},
		Opener:        opener,
	}
}

type openerFunc func(ctx context.Context, url string) error

func (f openerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// formClient talks to the form server the way the page does.
type formClient struct {
	base  string
	token string
}

func newFormClient(t *testing.T, formURL string) formClient {
	t.Helper()
	u, err := url.Parse(formURL)
	require.NoError(t, err)
	return formClient{
		base:  "http://127.0.0.1:" + u.Port(),
		token: u.Query().Get("session"),
	}
}

func (c formClient) post(path string, payload map[string]any) error {
	payload["token"] = c.token
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(c.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return nil
}

// answering returns an Opener that acts like a user answering the form in
// the background.
func answering(t *testing.T, act func(formClient) error) browser.Opener {
	return openerFunc(func(_ context.Context, formURL string) error {
		client := newFormClient(t, formURL)
		go func() {
			if err := act(client); err != nil {
				t.Errorf("form client: %v", err)
			}
		}()
		return nil
	})
}

func TestRun_Completed(t *testing.T) {
	requireLoopback(t)
	opts := baseOptions(t, answering(t, func(c formClient) error {
		return c.post("/submit", map[string]any{
			"responses": []any{
				map[string]any{"id": "ship", "value": "No"},
				map[string]any{"id": "areas", "value": []string{"api", "ui"}},
			},
		})
	}))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, outcome.StatusCompleted, res.Status)
	assert.Contains(t, res.URL, "http://localhost:")
	require.Len(t, res.Responses, 2)
	assert.Equal(t, "ship", res.Responses[0].ID)
	assert.Equal(t, "No", res.Responses[0].Value.String())
	assert.Equal(t, "User completed the interview form.\n\nResponses:\n- ship: No\n- areas: api, ui", res.Text)
}

func TestRun_Cancelled(t *testing.T) {
	requireLoopback(t)
	opts := baseOptions(t, answering(t, func(c formClient) error {
		return c.post("/cancel", map[string]any{})
	}))

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusCancelled, res.Status)
	assert.Empty(t, res.Responses)
	assert.Equal(t, "User cancelled the interview form.", res.Text)
}

func TestRun_TimesOutAndRejectsLateSubmit(t *testing.T) {
	requireLoopback(t)
	var client formClient
	opts := baseOptions(t, openerFunc(func(_ context.Context, formURL string) error {
		client = newFormClient(t, formURL)
		return nil
	}))
	opts.Config.Timeout = 150 * time.Millisecond

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusTimeout, res.Status)
	assert.Equal(t, "Interview form timed out after 0 seconds.", res.Text)

	err = client.post("/submit", map[string]any{"responses": []any{map[string]any{"id": "ship", "value": "Yes"}}})
	assert.Error(t, err, "a stale tab must not be able to submit")
}

func TestRun_AbortedBeforeStart(t *testing.T) {
	opened := false
	opts := baseOptions(t, openerFunc(func(context.Context, string) error {
		opened = true
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusAborted, res.Status)
	assert.Empty(t, res.URL)
	assert.Equal(t, "Interview was aborted.", res.Text)
	assert.False(t, opened, "no form should be opened after an abort")
}

func TestRun_AbortedWhileWaiting(t *testing.T) {
	requireLoopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := baseOptions(t, openerFunc(func(context.Context, string) error {
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
		return nil
	}))

	res, err := Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusAborted, res.Status)
	assert.NotEmpty(t, res.URL)
}

func TestRun_BrowserFailureTearsDownServer(t *testing.T) {
	requireLoopback(t)
	var formURL string
	opts := baseOptions(t, openerFunc(func(_ context.Context, u string) error {
		formURL = u
		return errors.New("no display")
	}))

	res, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "Failed to open browser: no display", err.Error())

	client := newFormClient(t, formURL)
	_, getErr := http.Get(client.base + "/health?session=" + client.token)
	assert.Error(t, getErr, "server should be down after a browser failure")
}

func TestRun_MissingQuestionsFile(t *testing.T) {
	opts := baseOptions(t, nil)
	opts.QuestionsPath = "missing.json"

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Questions file not found: ")
}

func TestSummary(t *testing.T) {
	items := []submission.ResponseItem{
		{ID: "a", Value: submission.Text("one")},
		{ID: "b", Value: submission.List("x", "y")},
	}
	tests := []struct {
		status outcome.Status
		items  []submission.ResponseItem
		want   string
	}{
		{outcome.StatusCompleted, items, "User completed the interview form.\n\nResponses:\n- a: one\n- b: x, y"},
		{outcome.StatusCompleted, nil, "User completed the interview form.\n\nResponses:\n(none)"},
		{outcome.StatusCancelled, nil, "User cancelled the interview form."},
		{outcome.StatusTimeout, nil, "Interview form timed out after 300 seconds."},
		{outcome.StatusAborted, nil, "Interview was aborted."},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.status, tt.items, 300))
		})
	}
}
