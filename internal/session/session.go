// Package session holds the identity and bearer secret of one interview.
package session

import (
	"crypto/subtle"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TempDirPrefix names the per-session upload directory under os.TempDir.
const TempDirPrefix = "pi-interview-"

// Session is created before the server starts and never mutated afterwards.
type Session struct {
	ID        string
	Token     string
	Timeout   time.Duration
	CreatedAt time.Time
}

// New mints a session with a random id and token. A zero timeout disables the
// deadline.
func New(timeout time.Duration) Session {
	return Session{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}
}

// Authorize reports whether token is exactly the session token. An empty
// token never matches.
func (s Session) Authorize(token string) bool {
	if token == "" || s.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) == 1
}

// UploadDir is where files uploaded during this session are written.
func (s Session) UploadDir() string {
	return filepath.Join(os.TempDir(), TempDirPrefix+s.ID)
}
