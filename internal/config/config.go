// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/catalog-crawler/internal/extract"
)

// DefaultUserAgent identifies the crawler to storefronts.
const DefaultUserAgent = "Mozilla/5.0 (compatible; CatalogCrawler/1.0; +https://github.com/JakeFAU/catalog-crawler)"

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Catalog   CatalogConfig     `mapstructure:"catalog"`
	Output    OutputConfig      `mapstructure:"output"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Detail    PoolConfig        `mapstructure:"detail"`
	Images    ImagesConfig      `mapstructure:"images"`
	Discovery DiscoveryConfig   `mapstructure:"discovery"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// CatalogConfig points at the listing page.
type CatalogConfig struct {
	URL string `mapstructure:"url"`
}

// OutputConfig sets where the artifact and image tree are written.
type OutputConfig struct {
	ArtifactPath   string `mapstructure:"artifact_path"`
	ImagesDir      string `mapstructure:"images_dir"`
	CleanBeforeRun bool   `mapstructure:"clean_before_run"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// PoolConfig sizes a bounded worker pool.
type PoolConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ImagesConfig sizes the image pool and toggles skip-if-exists.
type ImagesConfig struct {
	Concurrency  int  `mapstructure:"concurrency"`
	SkipExisting bool `mapstructure:"skip_existing"`
}

// DiscoveryConfig controls link ordering.
type DiscoveryConfig struct {
	PreserveOrder bool `mapstructure:"preserve_order"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the end-of-run metrics export.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// Load builds a Config from .env, disk, environment and flags, in rising
// precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("catalog.url", "CATALOG_CATALOG_URL", "CATALOG_URL", "DOMAIN"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"url":                "catalog.url",
	"output":             "output.artifact_path",
	"images-dir":         "output.images_dir",
	"clean":              "output.clean_before_run",
	"timeout":            "http.timeout",
	"user-agent":         "http.user_agent",
	"detail-concurrency": "detail.concurrency",
	"image-concurrency":  "images.concurrency",
	"skip-existing":      "images.skip_existing",
	"preserve-order":     "discovery.preserve_order",
	"dev":                "logging.development",
	"log-level":          "logging.level",
	"metrics-textfile":   "metrics.textfile_path",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	sel := extract.DefaultSelectors()
	v.SetDefault("catalog.url", "")
	v.SetDefault("output.artifact_path", "products.json")
	v.SetDefault("output.images_dir", "product_images")
	v.SetDefault("output.clean_before_run", true)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.max_body_bytes", 32<<20)
	v.SetDefault("detail.concurrency", 8)
	v.SetDefault("images.concurrency", 10)
	v.SetDefault("images.skip_existing", true)
	v.SetDefault("discovery.preserve_order", false)
	v.SetDefault("selectors.product_card", sel.ProductCard)
	v.SetDefault("selectors.product_link", sel.ProductLink)
	v.SetDefault("selectors.title", sel.Title)
	v.SetDefault("selectors.price", sel.Price)
	v.SetDefault("selectors.description", sel.Description)
	v.SetDefault("selectors.gallery_item", sel.GalleryItem)
	v.SetDefault("selectors.gallery_link", sel.GalleryLink)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.textfile_path", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Catalog.URL) == "" {
		return fmt.Errorf("catalog.url is required")
	}
	u, err := url.Parse(c.Catalog.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog.url must be an absolute http(s) URL")
	}
	if c.Output.ArtifactPath == "" {
		return fmt.Errorf("output.artifact_path is required")
	}
	if c.Output.ImagesDir == "" {
		return fmt.Errorf("output.images_dir is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.Detail.Concurrency <= 0 {
		return fmt.Errorf("detail.concurrency must be > 0")
	}
	if c.Images.Concurrency <= 0 {
		return fmt.Errorf("images.concurrency must be > 0")
	}
	required := []struct{ key, val string }{
		{"selectors.product_card", c.Selectors.ProductCard},
		{"selectors.product_link", c.Selectors.ProductLink},
		{"selectors.title", c.Selectors.Title},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	return nil
}
