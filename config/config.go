package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds scraper configuration.
type Config struct {
	APIRoot      string            `validate:"required,url"`
	ImageRoot    string
	DetailRoot   string            `validate:"required,url"`
	UserKey      string
	UserAgent    string            `validate:"required"`
	ExtraHeaders map[string]string

	PageSize           int `validate:"min=1"`
	AlwaysScrapDetails bool

	ListDelayMax    time.Duration `validate:"min=0"`
	DetailDelayMax  time.Duration `validate:"min=0"`
	SiblingDelayMax time.Duration `validate:"min=0"`
	Timeout         time.Duration `validate:"gt=0"`

	RequestsPerSecond float64 `validate:"min=0"` // 0 disables the ceiling
	DetailCacheSize   int     `validate:"min=0"` // 0 disables the detail memo

	OutputDir    string `validate:"required"`
	WebDataDir   string `validate:"required"`
	ManifestFile string `validate:"required"`
	ErrorLogFile string `validate:"required"`

	MetricsAddr string
	DatabaseURL string
}

// DefaultConfig returns conservative defaults for the public AmiAmi API.
func DefaultConfig() *Config {
	return &Config{
		APIRoot:         "https://api.amiami.com/api/v1.0",
		ImageRoot:       "https://img.amiami.com",
		DetailRoot:      "https://www.amiami.com/eng/detail/",
		UserKey:         "amiami_dev",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PageSize:        30,
		ListDelayMax:    2 * time.Second,
		DetailDelayMax:  2 * time.Second,
		SiblingDelayMax: 1 * time.Second,
		Timeout:         30 * time.Second,
		DetailCacheSize: 512,
		OutputDir:       "output",
		WebDataDir:      "web/data",
		ManifestFile:    "_data_files.txt",
		ErrorLogFile:    "_errors.txt",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q constraint", first.Field(), first.Tag())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	parsedURL, err := url.Parse(c.APIRoot)
	if err != nil {
		return fmt.Errorf("invalid API root: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("API root must include a host")
	}
	for name := range c.ExtraHeaders {
		if name == "" {
			return fmt.Errorf("extra header names cannot be empty")
		}
	}
	return nil
}
