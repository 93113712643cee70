// Package upload validates base64 images posted by the form and writes them
// to the session's temporary directory.
package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageBytes = 5 * 1024 * 1024
	MaxDimension  = 4096
)

var allowedTypes = []struct {
	mime string
	ext  string
}{
	{"image/png", ".png"},
	{"image/jpeg", ".jpg"},
	{"image/gif", ".gif"},
	{"image/webp", ".webp"},
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Image is one entry of the submit payload's "images" array.
type Image struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Data         string `json:"data"`
	IsAttachment bool   `json:"isAttachment,omitempty"`
}

// Decoded is an Image whose content passed every check and is ready to be
// written.
type Decoded struct {
	QuestionID   string
	Filename     string
	Bytes        []byte
	IsAttachment bool
}

// Error is an upload failure attributed to the question the image belongs to.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AllowedTypes lists the accepted MIME types in display order.
func AllowedTypes() []string {
	out := make([]string, 0, len(allowedTypes))
	for _, t := range allowedTypes {
		out = append(out, t.mime)
	}
	return out
}

// IsAllowedType reports whether mimeType is on the allow-list.
func IsAllowedType(mimeType string) bool {
	_, ok := extensionFor(mimeType)
	return ok
}

func extensionFor(mimeType string) (string, bool) {
	for _, t := range allowedTypes {
		if t.mime == mimeType {
			return t.ext, true
		}
	}
	return "", false
}

// Decode checks the declared type, the decoded size, the sniffed content type
// and the pixel dimensions. Nothing is written.
func Decode(img Image) (*Decoded, error) {
	fail := func(err error, format string, args ...any) (*Decoded, error) {
		return nil, &Error{Field: img.ID, Message: fmt.Sprintf(format, args...), Err: err}
	}

	if !IsAllowedType(img.MimeType) {
		return fail(nil, "Invalid image type: %s", img.MimeType)
	}

	data, err := decodeBase64(img.Data)
	if err != nil {
		return fail(err, "Invalid image data")
	}
	if len(data) > MaxImageBytes {
		return fail(nil, "Image exceeds 5MB limit")
	}
	if len(data) == 0 {
		return fail(nil, "Invalid image data")
	}

	detected := mimetype.Detect(data)
	if !IsAllowedType(detected.String()) {
		return fail(nil, "Image content is %s, expected one of %s", detected.String(), strings.Join(AllowedTypes(), ", "))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fail(err, "Invalid image data")
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return fail(nil, "Image exceeds %dx%d limit", MaxDimension, MaxDimension)
	}

	return &Decoded{
		QuestionID:   img.ID,
		Filename:     SanitizeFilename(img.Filename, img.MimeType),
		Bytes:        data,
		IsAttachment: img.IsAttachment,
	}, nil
}

func decodeBase64(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if idx := strings.Index(data, ","); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	out, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}

// SanitizeFilename restricts name to [a-zA-Z0-9._-] and appends the canonical
// extension for mimeType when the name has none.
func SanitizeFilename(name, mimeType string) string {
	base := filenameSanitizer.ReplaceAllString(name, "_")
	if strings.Trim(base, ".") == "" {
		base = "image_" + ulid.Make().String()
	}
	if !strings.Contains(base, ".") {
		ext, _ := extensionFor(mimeType)
		base += ext
	}
	return base
}
