package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a time.Duration ("1500ms", "2s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overlays environment variables on cfg.
func ApplyEnv(cfg *Config) error {
	stringVars := map[string]*string{
		"AMIAMI_API_ROOT":      &cfg.APIRoot,
		"AMIAMI_IMG_ROOT":      &cfg.ImageRoot,
		"AMIAMI_DETAIL_ROOT":   &cfg.DetailRoot,
		"AMIAMI_USER_KEY":      &cfg.UserKey,
		"AMIAMI_USER_AGENT":    &cfg.UserAgent,
		"SCRAPER_OUTPUT_DIR":   &cfg.OutputDir,
		"SCRAPER_WEB_DATA_DIR": &cfg.WebDataDir,
		"SCRAPER_METRICS_ADDR": &cfg.MetricsAddr,
		"DATABASE_URL":         &cfg.DatabaseURL,
	}
	for key, dst := range stringVars {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"ITEMS_PER_PAGE":       &cfg.PageSize,
		"SCRAPER_DETAIL_CACHE": &cfg.DetailCacheSize,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"SCRAPER_LIST_DELAY":    &cfg.ListDelayMax,
		"SCRAPER_DETAIL_DELAY":  &cfg.DetailDelayMax,
		"SCRAPER_SIBLING_DELAY": &cfg.SiblingDelayMax,
		"SCRAPER_TIMEOUT":       &cfg.Timeout,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvFloat("SCRAPER_RPS"); err != nil {
		return err
	} else if ok {
		cfg.RequestsPerSecond = value
	}
	if value, ok, err := EnvBool("SCRAPER_ALWAYS_DETAILS"); err != nil {
		return err
	} else if ok {
		cfg.AlwaysScrapDetails = value
	}
	return nil
}
