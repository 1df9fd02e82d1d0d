// Package config loads process configuration from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
)

type Config struct {
	ConfluenceBaseURL string        `env:"CONFLUENCE_BASE_URL"`
	ConfluenceRestURL string        `env:"CONFLUENCE_REST_API_URL"`
	Username          string        `env:"ATLASSIAN_USERNAME"`
	Token             string        `env:"ATLASSIAN_TOKEN"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	StorageBackend          uploader.Backend `env:"STORAGE_BACKEND" envDefault:"azure"`
	StorageConnectionString string           `env:"STORAGE_CONNECTION_STRING"`
	S3BucketPrefix          string           `env:"S3_BUCKET_PREFIX"`
	DriveProjectID          string           `env:"DRIVE_PROJECT_ID"`
	FSRoot                  string           `env:"FS_ROOT" envDefault:"./out"`

	PublicSpace      string `env:"PUBLIC_SPACE" envDefault:"SIA"`
	PublicContainer  string `env:"PUBLIC_CONTAINER" envDefault:"public"`
	PrivateContainer string `env:"PRIVATE_CONTAINER" envDefault:"private"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`

	MarkdownRendition     bool `env:"MARKDOWN_RENDITION"`
	ManifestEnabled       bool `env:"MANIFEST_ENABLED"`
	MCPEnabled            bool `env:"MCP_ENABLED"`
	EscapeTitleSeparators bool `env:"ESCAPE_TITLE_SEPARATORS"`
}

// Load reads the given .env files (".env" when none are given), then parses
// and validates the environment. Variables already set take precedence over
// the files, and a missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ConfluenceBaseURL = strings.TrimRight(c.ConfluenceBaseURL, "/")
	if c.ConfluenceRestURL == "" && c.ConfluenceBaseURL != "" {
		c.ConfluenceRestURL = c.ConfluenceBaseURL + "/rest/api/content"
	}
	c.ConfluenceRestURL = strings.TrimRight(c.ConfluenceRestURL, "/")
	c.StorageBackend = uploader.Backend(strings.ToLower(string(c.StorageBackend)))
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	required := []struct{ name, value string }{
		{"CONFLUENCE_BASE_URL", c.ConfluenceBaseURL},
		{"ATLASSIAN_USERNAME", c.Username},
		{"ATLASSIAN_TOKEN", c.Token},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	switch c.StorageBackend {
	case uploader.BackendAzure, "":
		if c.StorageConnectionString == "" {
			errs = append(errs, errors.New("STORAGE_CONNECTION_STRING is required for the azure backend"))
		}
	case uploader.BackendFS:
		if c.FSRoot == "" {
			errs = append(errs, errors.New("FS_ROOT is required for the fs backend"))
		}
	case uploader.BackendS3, uploader.BackendDrive:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.PublicContainer == "" || c.PrivateContainer == "" {
		errs = append(errs, errors.New("PUBLIC_CONTAINER and PRIVATE_CONTAINER must not be empty"))
	}
	return errors.Join(errs...)
}

// Container returns the container pages of space are written to.
func (c Config) Container(space string) string {
	return uploader.ContainerFor(space, c.PublicSpace, c.PublicContainer, c.PrivateContainer)
}

// Storage returns the sink settings.
func (c Config) Storage() uploader.Config {
	return uploader.Config{
		Backend:          c.StorageBackend,
		ConnectionString: c.StorageConnectionString,
		S3BucketPrefix:   c.S3BucketPrefix,
		DriveProjectID:   c.DriveProjectID,
		FSRoot:           c.FSRoot,
	}
}
