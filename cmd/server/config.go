package main

import (
	"fmt"
	"github.com/beldeveloper/release-promoter/internal/app/objectstore"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"time"
)

const envPrefix = "PROMOTER_"

// defaultWatchInterval is used when PROMOTER_WATCH_INTERVAL is not set.
const defaultWatchInterval = 5 * time.Second

func envString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s%s: must be positive, got %s", envPrefix, key, v)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

func postgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envString("DB_HOST", "localhost"),
		envString("DB_PORT", "5432"),
		envString("DB_USER", ""),
		envString("DB_PASSWORD", ""),
		envString("DB_NAME", ""),
	)
}

func archiveConfig() (objectstore.Config, error) {
	useSSL, err := envBool("ARCHIVE_USE_SSL", false)
	if err != nil {
		return objectstore.Config{}, err
	}
	cfg := objectstore.Config{
		Endpoint:  envString("ARCHIVE_ENDPOINT", ""),
		AccessKey: envString("ARCHIVE_ACCESS_KEY", ""),
		SecretKey: envString("ARCHIVE_SECRET_KEY", ""),
		Bucket:    envString("ARCHIVE_BUCKET", "promotions"),
		Region:    envString("ARCHIVE_REGION", ""),
		UseSSL:    useSSL,
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	return cfg, cfg.Validate()
}

// loadPolicy reads the YAML file over the default thresholds; keys absent from the file keep their defaults.
func loadPolicy(path string) (pipeline.Policy, error) {
	p := pipeline.DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Policy{}, errors.Wrapf(err, "main.loadPolicy: read: path=%s", path)
	}
	err = yaml.Unmarshal(data, &p)
	if err != nil {
		return pipeline.Policy{}, errors.Wrapf(err, "main.loadPolicy: decode: path=%s", path)
	}
	err = p.Validate()
	if err != nil {
		return pipeline.Policy{}, errors.Wrapf(err, "main.loadPolicy: path=%s", path)
	}
	return p, nil
}
