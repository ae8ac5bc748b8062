package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Site holds the fixed endpoints of the booking site deployment plus the
// account to log in as. All values come from the environment; the site has
// no discovery mechanism.
type Site struct {
	AuthURL      string
	HomepageHost string
	HomepagePath string
	CommandPath  string
	Username     string

	MaxRedirects int
}

// SiteFromEnv reads the site configuration, failing on any missing
// required variable.
func SiteFromEnv() (Site, error) {
	cfg := Site{
		AuthURL:      strings.TrimSpace(os.Getenv("AUTH_URL")),
		HomepageHost: strings.TrimSpace(os.Getenv("HOMEPAGE_HOST")),
		HomepagePath: strings.TrimSpace(os.Getenv("HOMEPAGE_PATH")),
		CommandPath:  strings.TrimSpace(os.Getenv("COMMAND_PATH")),
		Username:     strings.TrimSpace(os.Getenv("USERNAME")),
		MaxRedirects: 5,
	}
	for _, req := range []struct {
		key, val string
	}{
		{"AUTH_URL", cfg.AuthURL},
		{"HOMEPAGE_HOST", cfg.HomepageHost},
		{"HOMEPAGE_PATH", cfg.HomepagePath},
		{"COMMAND_PATH", cfg.CommandPath},
		{"USERNAME", cfg.Username},
	} {
		if req.val == "" {
			return Site{}, fmt.Errorf("%s env var not provided", req.key)
		}
	}

	if v := strings.TrimSpace(os.Getenv("MAX_REDIRECTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Site{}, fmt.Errorf("invalid MAX_REDIRECTS: %w", err)
		}
		if n < 0 {
			n = -n
		}
		cfg.MaxRedirects = n
	}
	return cfg, nil
}

// Server extends Site with everything the server command needs: database,
// web listener, cookie keys, watcher cadence.
type Server struct {
	Site Site

	ListenAddr  string
	BaseURL     string
	DatabaseURL string

	CookieHashKey  []byte
	CookieBlockKey []byte

	PollInterval time.Duration
	WatchWeeks   int
}

func ServerFromEnv() (Server, error) {
	site, err := SiteFromEnv()
	if err != nil {
		return Server{}, err
	}
	cfg := Server{
		Site:        site,
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		BaseURL:     getenv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		WatchWeeks:  2,
	}
	if cfg.DatabaseURL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL env var not provided")
	}

	pollSec, err := strconv.Atoi(getenv("POLL_SECONDS", "300"))
	if err != nil || pollSec < 1 {
		return Server{}, fmt.Errorf("invalid POLL_SECONDS")
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	if v := strings.TrimSpace(os.Getenv("WATCH_WEEKS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Server{}, fmt.Errorf("invalid WATCH_WEEKS")
		}
		cfg.WatchWeeks = n
	}

	cfg.CookieHashKey, err = mustB64("COOKIE_HASH_KEY")
	if err != nil {
		return Server{}, err
	}
	cfg.CookieBlockKey, err = mustB64("COOKIE_BLOCK_KEY")
	if err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func mustB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s env var not provided (base64)", k)
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
