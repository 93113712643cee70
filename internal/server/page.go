package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"interview-go/internal/config"
	"interview-go/internal/questions"
	"interview-go/internal/submission"
	"interview-go/internal/upload"
)

//go:embed webdist/*
var webDist embed.FS

var embeddedWebRoot = func() fs.FS {
	root, err := fs.Sub(webDist, "webdist")
	if err != nil {
		return nil
	}
	return root
}()

var indexTemplate = template.Must(template.ParseFS(webDist, "webdist/index.html"))

// HeartbeatIntervalMs is the minimum gap between heartbeats sent by the form.
const HeartbeatIntervalMs = 5000

type pageLimits struct {
	MaxImages           int      `json:"maxImages"`
	MaxImageBytes       int      `json:"maxImageBytes"`
	MaxDimension        int      `json:"maxDimension"`
	AllowedTypes        []string `json:"allowedTypes"`
	HeartbeatIntervalMs int      `json:"heartbeatIntervalMs"`
}

// pageData is inlined into the form as JSON.
type pageData struct {
	Questions     []questions.Question `json:"questions"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	SessionToken  string               `json:"sessionToken"`
	SessionID     string               `json:"sessionId"`
	Timeout       int                  `json:"timeout"`
	RemainingMs   int64                `json:"remainingMs"`
	FixedDeadline bool                 `json:"fixedDeadline"`
	StorageKey    string               `json:"storageKey"`
	Theme         config.Theme         `json:"theme"`
	Limits        pageLimits           `json:"limits"`
}

type themeLink struct {
	Href  string
	Media string
}

type pageView struct {
	Title      string
	Token      string
	Theme      config.Theme
	ThemeLinks []themeLink
	Data       template.JS
}

// inlineJSON encodes v for a <script type="application/json"> block.
// json.Marshal already escapes <, > and & as well as U+2028 and U+2029, so
// the data cannot close the element or break a JavaScript parser.
func inlineJSON(v any) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(data), nil
}

func themeLinks(theme config.Theme, token string) []themeLink {
	href := func(name string) string {
		return "/theme-" + name + ".css?session=" + token
	}
	switch theme {
	case config.ThemeLight:
		return []themeLink{{Href: href("light")}}
	case config.ThemeDark:
		return []themeLink{{Href: href("dark")}}
	default:
		return []themeLink{
			{Href: href("light"), Media: "(prefers-color-scheme: light)"},
			{Href: href("dark"), Media: "(prefers-color-scheme: dark)"},
		}
	}
}

func (s *Server) pageData() pageData {
	set := s.opts.Questions
	return pageData{
		Questions:     set.Questions,
		Title:         set.Title,
		Description:   set.Description,
		SessionToken:  s.session.Token,
		SessionID:     s.session.ID,
		Timeout:       int(s.session.Timeout.Seconds()),
		RemainingMs:   s.resolver.Remaining().Milliseconds(),
		FixedDeadline: s.opts.FixedDeadline,
		StorageKey:    set.DraftKey(),
		Theme:         s.opts.Theme,
		Limits: pageLimits{
			MaxImages:           submission.MaxImages,
			MaxImageBytes:       upload.MaxImageBytes,
			MaxDimension:        upload.MaxDimension,
			AllowedTypes:        upload.AllowedTypes(),
			HeartbeatIntervalMs: HeartbeatIntervalMs,
		},
	}
}

func (s *Server) renderIndex() ([]byte, error) {
	data, err := inlineJSON(s.pageData())
	if err != nil {
		return nil, err
	}
	title := s.opts.Questions.Title
	if strings.TrimSpace(title) == "" {
		title = "Interview"
	}
	view := pageView{
		Title:      title,
		Token:      s.session.Token,
		Theme:      s.opts.Theme,
		ThemeLinks: themeLinks(s.opts.Theme, s.session.Token),
		Data:       data,
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// assetHandler serves one embedded file verbatim.
func assetHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if embeddedWebRoot == nil {
			writeText(w, http.StatusNotFound, "Not found")
			return
		}
		data, err := fs.ReadFile(embeddedWebRoot, name)
		if err != nil {
			writeText(w, http.StatusNotFound, "Not found")
			return
		}
		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if strings.HasPrefix(contentType, "text/") || strings.Contains(contentType, "javascript") {
			if !strings.Contains(contentType, "charset") {
				contentType += "; charset=utf-8"
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	}
}
