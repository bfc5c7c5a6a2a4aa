// Package config loads the pipeline configuration: the commodity series to
// track and the Kaggle dataset targets to publish. A single Config value is
// built at process start and passed explicitly to every component; nothing
// reads configuration ambiently after that.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Series struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"`
	SeriesID    string `yaml:"series_id,omitempty"`
	SourceURL   string `yaml:"source_url,omitempty"`
	TrackerFile string `yaml:"tracker_file"`
	ExportDir   string `yaml:"export_dir"`
}

type Dataset struct {
	ID      string   `yaml:"id"`
	Owner   string   `yaml:"owner"`
	Slug    string   `yaml:"slug"`
	Title   string   `yaml:"title"`
	License string   `yaml:"license,omitempty"`
	Private bool     `yaml:"private,omitempty"`
	Enabled bool     `yaml:"enabled"`
	Files   []string `yaml:"files"`
}

// Duration decodes YAML strings like "2s" or "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Kaggle struct {
	Username       string    `yaml:"-"`
	Key            string    `yaml:"-"`
	MaxAttempts    int       `yaml:"max_attempts"`
	InitialBackoff Duration  `yaml:"initial_backoff"`
	MaxBackoff     Duration  `yaml:"max_backoff"`
	Datasets       []Dataset `yaml:"datasets"`
}

type Database struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type Config struct {
	Database Database `yaml:"database"`
	Series   []Series `yaml:"series"`
	Kaggle   Kaggle   `yaml:"kaggle"`
}

// Load reads the YAML config file, then applies environment overrides.
// Kaggle credentials come exclusively from the environment (optionally via a
// .env file) so they never live in the config file.
func Load(path string) (*Config, error) {
	// Best effort: a .env file is a development convenience.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "runs.db"
	}
	if cfg.Kaggle.MaxAttempts == 0 {
		cfg.Kaggle.MaxAttempts = 4
	}
	if cfg.Kaggle.InitialBackoff == 0 {
		cfg.Kaggle.InitialBackoff = Duration(2 * time.Second)
	}
	if cfg.Kaggle.MaxBackoff == 0 {
		cfg.Kaggle.MaxBackoff = Duration(30 * time.Second)
	}

	cfg.Kaggle.Username = os.Getenv("KAGGLE_USERNAME")
	cfg.Kaggle.Key = os.Getenv("KAGGLE_KEY")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	names := make(map[string]bool, len(c.Series))
	providers := make(map[string]bool, len(c.Series))
	for i, s := range c.Series {
		if s.Name == "" {
			return fmt.Errorf("series %d: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("series %q: duplicate name", s.Name)
		}
		names[s.Name] = true
		if s.Provider == "" {
			return fmt.Errorf("series %q: provider is required", s.Name)
		}
		// Each provider encodes a single upstream series, so a provider can
		// back at most one configured series.
		if providers[s.Provider] {
			return fmt.Errorf("series %q: provider %q already used by another series", s.Name, s.Provider)
		}
		providers[s.Provider] = true
		if s.TrackerFile == "" {
			return fmt.Errorf("series %q: tracker_file is required", s.Name)
		}
		if s.ExportDir == "" {
			return fmt.Errorf("series %q: export_dir is required", s.Name)
		}
	}

	ids := make(map[string]bool, len(c.Kaggle.Datasets))
	for i, d := range c.Kaggle.Datasets {
		if d.ID == "" {
			return fmt.Errorf("dataset %d: id is required", i)
		}
		if ids[d.ID] {
			return fmt.Errorf("dataset %q: duplicate id", d.ID)
		}
		ids[d.ID] = true
	}
	return nil
}

// SeriesByName returns the configured series with the given name.
func (c *Config) SeriesByName(name string) (Series, error) {
	for _, s := range c.Series {
		if s.Name == name {
			return s, nil
		}
	}
	return Series{}, fmt.Errorf("series not configured: %s", name)
}

// DatasetByID returns the configured dataset target with the given id.
func (c *Config) DatasetByID(id string) (Dataset, error) {
	for _, d := range c.Kaggle.Datasets {
		if d.ID == id {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("dataset not configured: %s", id)
}
