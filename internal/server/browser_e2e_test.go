package server

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"interview-go/internal/questions"
)

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// TestBrowserSubmitsForm drives the real page in headless Chrome. Set
// INTERVIEW_E2E=1 to run it.
func TestBrowserSubmitsForm(t *testing.T) {
	if testing.Short() || os.Getenv("INTERVIEW_E2E") != "1" {
		t.Skip("set INTERVIEW_E2E=1 to run browser tests")
	}
	if !chromeAvailable() {
		t.Skip("chrome is not installed")
	}

	ts := startTestServer(t, time.Minute, func(opts *Options) {
		opts.Questions = &questions.Set{
			Title: "Deploy",
			Questions: []questions.Question{
				{ID: "go", Type: questions.TypeSingle, Prompt: "Deploy now?", Options: []string{"Yes", "No"}},
			},
		}
	})

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	var title string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(ts.handle.URL),
		chromedp.WaitVisible(`.question-card`, chromedp.ByQuery),
		chromedp.Text(`#form-title`, &title, chromedp.ByQuery),
		chromedp.Click(`input[name="go"][value="No"]`, chromedp.ByQuery),
		chromedp.Click(`#submit-btn`, chromedp.ByQuery),
		chromedp.WaitVisible(`#success-overlay.visible`, chromedp.ByQuery),
	)
	if err != nil {
		t.Fatalf("browser run failed: %v", err)
	}
	if title != "Deploy" {
		t.Fatalf("title = %q", title)
	}

	select {
	case items := <-ts.submitted:
		encoded, _ := json.Marshal(items)
		if string(encoded) != `[{"id":"go","value":"No"}]` {
			t.Fatalf("unexpected responses %s", encoded)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("form submission never reached the server")
	}
	ts.waitDone()
}
