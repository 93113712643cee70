// Package browser opens the interview form for the user.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Opener shows url to the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// System launches the platform's URL handler, or App when set.
type System struct {
	App  string
	GOOS string
}

func (s System) Open(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("empty url")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Not bound to ctx: a browser started directly must outlive the interview.
	name, args := s.command(url)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// The launcher exits quickly; reap it without blocking the caller.
	go func() { _ = cmd.Wait() }()
	return nil
}

func (s System) command(url string) (string, []string) {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		if s.App != "" {
			return "open", []string{"-a", s.App, url}
		}
		return "open", []string{url}
	case "windows":
		if s.App != "" {
			return "cmd", []string{"/c", "start", "", s.App, url}
		}
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		if s.App != "" {
			return s.App, []string{url}
		}
		return "xdg-open", []string{url}
	}
}

// Print writes the URL instead of launching anything, for headless hosts.
type Print struct {
	W io.Writer
}

func (p Print) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintf(p.W, "Open this URL to answer the interview:\n%s\n", url)
	return err
}
