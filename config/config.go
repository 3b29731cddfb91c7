package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel      int    `yaml:"log_level"`
	FileExtension string `yaml:"file_extension"`
	ContentType   string `yaml:"content_type"`

	Server   ServerConfig   `yaml:"server"`
	Site     SiteConfig     `yaml:"site"`
	Storage  StorageConfig  `yaml:"storage"`
	Registry RegistryConfig `yaml:"registry"`
	Stream   StreamConfig   `yaml:"stream"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// SiteConfig describes the website driven by the automated browser.
type SiteConfig struct {
	BaseURL   string    `yaml:"base_url"`
	Headless  *bool     `yaml:"headless"`
	UserAgent string    `yaml:"user_agent"`
	Selectors Selectors `yaml:"selectors"`

	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SearchTimeout     time.Duration `yaml:"search_timeout"`
	RenderWait        time.Duration `yaml:"render_wait"`
	DownloadTimeout   time.Duration `yaml:"download_timeout"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
}

// Selectors are CSS selectors for the parts of the site's search UI.
type Selectors struct {
	SearchInput string `yaml:"search_input"`
	// SearchSubmit is optional; Enter is pressed in the input when empty.
	SearchSubmit string `yaml:"search_submit"`
	ResultItem   string `yaml:"result_item"`
	Title        string `yaml:"title"`
	Artist       string `yaml:"artist"`
	// DownloadButton is looked up inside a result item; the item itself is clicked when empty.
	DownloadButton string `yaml:"download_button"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options. For gcs this is the staging directory downloads land in.
	OutputDir string `yaml:"output_dir"`

	// GCS options
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type RegistryConfig struct {
	// MaxEntries bounds the in-memory registry; 0 keeps every record.
	MaxEntries int `yaml:"max_entries"`
}

type StreamConfig struct {
	// DisableFallback stops unknown ids from being served an arbitrary stored file.
	DisableFallback bool `yaml:"disable_fallback"`
}

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// IsHeadless reports whether the browser runs without a window. Defaults to true.
func (s SiteConfig) IsHeadless() bool {
	if s.Headless == nil {
		return true
	}
	return *s.Headless
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyDefaults fills every unset option with its default value.
func (c *Config) ApplyDefaults() {
	if c.FileExtension == "" {
		c.FileExtension = "flac"
	}
	c.FileExtension = strings.TrimPrefix(c.FileExtension, ".")

	if c.ContentType == "" {
		c.ContentType = "audio/flac"
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	if c.Server.Port == "" {
		c.Server.Port = "3001"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageLocal
	}

	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "songs"
	}

	s := &c.Site
	if s.NavigationTimeout == 0 {
		s.NavigationTimeout = 60 * time.Second
	}
	if s.SearchTimeout == 0 {
		s.SearchTimeout = 30 * time.Second
	}
	if s.RenderWait == 0 {
		s.RenderWait = 2 * time.Second
	}
	if s.DownloadTimeout == 0 {
		s.DownloadTimeout = 5 * time.Minute
	}
	if s.ProbeTimeout == 0 {
		s.ProbeTimeout = 10 * time.Second
	}
	if s.UserAgent == "" {
		s.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	sel := &s.Selectors
	if sel.SearchInput == "" {
		sel.SearchInput = `input[type="search"]`
	}
	if sel.ResultItem == "" {
		sel.ResultItem = ".song-item"
	}
	if sel.Title == "" {
		sel.Title = ".song-title"
	}
	if sel.Artist == "" {
		sel.Artist = ".song-artist"
	}
}

// Validate reports configuration that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url is required")
	}

	switch c.Storage.Type {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	if c.Registry.MaxEntries < 0 {
		return fmt.Errorf("registry.max_entries must not be negative")
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
