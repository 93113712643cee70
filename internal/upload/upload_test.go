package upload

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encoded(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestDecode_AcceptsAllowedImages(t *testing.T) {
	tests := []struct {
		name string
		img  Image
		file string
	}{
		{
			name: "png keeps its name",
			img:  Image{ID: "shot", Filename: "bug.png", MimeType: "image/png", Data: encoded(pngBytes(t, 4, 4))},
			file: "bug.png",
		},
		{
			name: "gif gains an extension",
			img:  Image{ID: "shot", Filename: "anim", MimeType: "image/gif", Data: encoded(gifBytes(t))},
			file: "anim.gif",
		},
		{
			name: "data url prefix is tolerated",
			img:  Image{ID: "shot", Filename: "x.png", MimeType: "image/png", Data: "data:image/png;base64," + encoded(pngBytes(t, 1, 1))},
			file: "x.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(tt.img)
			require.NoError(t, err)
			assert.Equal(t, tt.file, decoded.Filename)
			assert.Equal(t, "shot", decoded.QuestionID)
			assert.NotEmpty(t, decoded.Bytes)
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	oversized := make([]byte, 6*1024*1024)
	copy(oversized, pngBytes(t, 1, 1))

	tests := []struct {
		name    string
		img     Image
		message string
	}{
		{
			name:    "disallowed type",
			img:     Image{ID: "q", Filename: "a.svg", MimeType: "image/svg+xml", Data: encoded([]byte("<svg/>"))},
			message: "Invalid image type: image/svg+xml",
		},
		{
			name:    "too large",
			img:     Image{ID: "q", Filename: "big.png", MimeType: "image/png", Data: encoded(oversized)},
			message: "Image exceeds 5MB limit",
		},
		{
			name:    "not base64",
			img:     Image{ID: "q", Filename: "a.png", MimeType: "image/png", Data: "%%%"},
			message: "Invalid image data",
		},
		{
			name:    "content is not an image",
			img:     Image{ID: "q", Filename: "a.png", MimeType: "image/png", Data: encoded([]byte("plain text pretending"))},
			message: "Image content is text/plain",
		},
		{
			name:    "too many pixels",
			img:     Image{ID: "q", Filename: "wide.png", MimeType: "image/png", Data: encoded(pngBytes(t, MaxDimension+1, 1))},
			message: "Image exceeds 4096x4096 limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.img)
			require.Error(t, err)
			var upErr *Error
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, "q", upErr.Field)
			assert.Contains(t, upErr.Message, tt.message)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		name, mime, want string
	}{
		{"screen shot.png", "image/png", "screen_shot.png"},
		{"../../etc/passwd", "image/png", ".._.._etc_passwd"},
		{"photo", "image/jpeg", "photo.jpg"},
		{"ünïcode.webp", "image/webp", "_n_code.webp"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.name, tc.mime), tc.name)
	}

	generated := SanitizeFilename("", "image/png")
	assert.True(t, strings.HasPrefix(generated, "image_"), generated)
	assert.True(t, strings.HasSuffix(generated, ".png"), generated)

	dots := SanitizeFilename("..", "image/gif")
	assert.True(t, strings.HasPrefix(dots, "image_"), dots)
}

func TestStore_SaveCreatesDirectoryLazily(t *testing.T) {
	root := filepath.Join(t.TempDir(), "session")
	store := NewStore(root)

	_, err := os.Stat(root)
	require.True(t, os.IsNotExist(err), "directory should not exist before the first upload")

	path, err := store.Save("a.png", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestStore_SaveNeverOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.Save("a.png", []byte("one"))
	require.NoError(t, err)
	second, err := store.Save("a.png", []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, ".png"))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestStore_ConcurrentSaves(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "uploads"))

	var wg sync.WaitGroup
	paths := make([]string, 20)
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = store.Save("same.png", []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range paths {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]], "duplicate path %s", paths[i])
		seen[paths[i]] = true
	}

	entries, err := os.ReadDir(store.RootDir)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
