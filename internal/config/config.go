package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"interview-go/internal/logging"
	"interview-go/internal/paths"
)

const (
	DefaultTimeout = 300 * time.Second

	EnvBrowser = "INTERVIEW_BROWSER"
	EnvTimeout = "INTERVIEW_TIMEOUT"
	EnvTheme   = "INTERVIEW_THEME"
)

// Theme selects the form's color scheme.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case "", ThemeAuto:
		return ThemeAuto, nil
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("theme must be one of auto, light, dark (got %q)", s)
	}
}

// Settings is the "interview" object of the host settings file. Unset fields
// stay nil so that an explicit zero can be told apart from a missing value.
type Settings struct {
	Browser       string `json:"browser,omitempty" yaml:"browser,omitempty"`
	Timeout       *int   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Theme         string `json:"theme,omitempty" yaml:"theme,omitempty"`
	FixedDeadline bool   `json:"fixedDeadline,omitempty" yaml:"fixedDeadline,omitempty"`
}

type settingsFile struct {
	Interview *Settings `json:"interview" yaml:"interview"`
}

// Flags carries command-line values. A nil Timeout means the flag was not
// given.
type Flags struct {
	Browser       string
	Timeout       *int
	Theme         string
	FixedDeadline bool
}

// Config is the resolved configuration of one interview run.
type Config struct {
	Browser       string
	Timeout       time.Duration
	Theme         Theme
	FixedDeadline bool
}

// DefaultSettingsPath is ~/.pi/agent/settings.json.
func DefaultSettingsPath() string {
	return paths.Expand(filepath.Join("~", ".pi", "agent", "settings.json"))
}

// LoadSettings reads the interview settings from path. The file is shared
// with the host, so a missing, unreadable or malformed file yields empty
// settings; failures other than a missing file are logged at warn level.
// JSON is assumed unless the file ends in .yaml or .yml.
func LoadSettings(path string, log *slog.Logger) Settings {
	log = logging.Subsystem(log, "config")

	data, err := os.ReadFile(paths.Expand(path))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}
	}
	if err != nil {
		log.Warn("ignoring unreadable settings", slog.String("path", path), slog.Any("err", err))
		return Settings{}
	}

	var file settingsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		log.Warn("ignoring malformed settings", slog.String("path", path), slog.Any("err", err))
		return Settings{}
	}
	if file.Interview == nil {
		return Settings{}
	}
	return *file.Interview
}

// ApplyEnv overlays INTERVIEW_* variables read through getenv onto s.
func ApplyEnv(s Settings, getenv func(string) string) (Settings, error) {
	if v := strings.TrimSpace(getenv(EnvBrowser)); v != "" {
		s.Browser = v
	}
	if v := strings.TrimSpace(getenv(EnvTheme)); v != "" {
		s.Theme = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%s must be an integer number of seconds", EnvTimeout)
		}
		s.Timeout = &secs
	}
	return s, nil
}

// Resolve merges flags over settings. The timeout comes from the flag, then
// the settings (already overlaid with the environment), then DefaultTimeout.
// Zero disables the deadline.
func Resolve(s Settings, flags Flags) (Config, error) {
	cfg := Config{
		Browser:       s.Browser,
		Timeout:       DefaultTimeout,
		FixedDeadline: s.FixedDeadline || flags.FixedDeadline,
	}
	if flags.Browser != "" {
		cfg.Browser = flags.Browser
	}

	secs := s.Timeout
	if flags.Timeout != nil {
		secs = flags.Timeout
	}
	if secs != nil {
		if *secs < 0 {
			return Config{}, errors.New("timeout must not be negative")
		}
		cfg.Timeout = time.Duration(*secs) * time.Second
	}

	themeName := s.Theme
	if flags.Theme != "" {
		themeName = flags.Theme
	}
	theme, err := ParseTheme(themeName)
	if err != nil {
		return Config{}, err
	}
	cfg.Theme = theme
	return cfg, nil
}

// ClientIP extracts the IP from a request's remote address.
func ClientIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(strings.Trim(host, "[]"))
}

// IsAllowedClient admits loopback peers only.
func IsAllowedClient(ip net.IP) bool {
	return ip != nil && ip.IsLoopback()
}
