package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds every runtime setting of the media server
type Config struct {
	Bind          string        `toml:"bind"`
	Port          int           `toml:"port"`
	APIKey        string        `toml:"api_key"`
	DBPath        string        `toml:"db_path"`
	DownloadDir   string        `toml:"download_dir"`
	GalleryDLBin  string        `toml:"gallery_dl_bin"`
	ScrapeTimeout time.Duration `toml:"-"`
	CORSOrigins   []string      `toml:"cors_origins"`
	LogLevel      string        `toml:"log_level"`
	GinMode       string        `toml:"gin_mode"`
	SettingsPath  string        `toml:"settings_path"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Bind:          "127.0.0.1",
		Port:          5000,
		DBPath:        filepath.Join(dataHome(), "mediaserver", "downloads.db"),
		DownloadDir:   defaultDownloadDir(),
		GalleryDLBin:  "gallery-dl",
		ScrapeTimeout: 10 * time.Second,
		CORSOrigins:   []string{"*"},
		LogLevel:      "info",
		GinMode:       "release",
		SettingsPath:  defaultSettingsPath(),
	}
}

// Load builds the configuration from defaults, an optional TOML file, .env
// files and the process environment, in increasing priority.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := cfg.applyFileDurations(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads .env.local then .env; neither has to exist.
// godotenv never overrides variables that are already set.
func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// fileDurations holds the duration keys of the TOML file as text, e.g.
// scrape_timeout = "3s"
type fileDurations struct {
	ScrapeTimeout string `toml:"scrape_timeout"`
}

func (c *Config) applyFileDurations(data []byte) error {
	var raw fileDurations
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ScrapeTimeout != "" {
		d, err := time.ParseDuration(raw.ScrapeTimeout)
		if err != nil {
			return fmt.Errorf("scrape_timeout: %w", err)
		}
		c.ScrapeTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MEDIA_SERVER_BIND"); v != "" {
		c.Bind = v
	}
	if v := os.Getenv("MEDIA_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDIA_SERVER_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := os.LookupEnv("MEDIA_SERVER_KEY"); ok {
		c.APIKey = v
	}
	if v := os.Getenv("MEDIA_SERVER_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("GALLERY_DL_BIN"); v != "" {
		c.GalleryDLBin = v
	}
	if v := os.Getenv("SCRAPE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCRAPE_TIMEOUT: %w", err)
		}
		c.ScrapeTimeout = d
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.GinMode = v
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if strings.TrimSpace(c.GalleryDLBin) == "" {
		errs = append(errs, errors.New("gallery-dl binary is required"))
	}
	if c.ScrapeTimeout <= 0 {
		errs = append(errs, errors.New("scrape timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share")
}

func defaultDownloadDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "Downloads")
	}
	return filepath.Join(homeDir, "Downloads")
}
