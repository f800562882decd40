package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingRegion      = errors.New("storage region is required")
	ErrMissingBucket      = errors.New("storage bucket is required")
	ErrPartialCredentials = errors.New("storage access key id and secret access key must be set together")
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		// Path of the upload journal; empty disables it.
		Path string
	}
	Upload struct {
		StagingDir string
	}
	Storage struct {
		// Driver is one of "s3", "minio" or "memory".
		Driver            string
		Region            string
		Bucket            string
		Endpoint          string
		AccessKeyID       string
		SecretAccessKey   string
		PartSizeMB        int
		UploadConcurrency int
	}
	Gallery struct {
		// SignConcurrency bounds parallel signing per reload; 0 is unbounded.
		SignConcurrency int
	}
	Environment struct {
		Label string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// .env is optional and never overrides the real environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/gallery.db")
	v.SetDefault("upload.stagingdir", "data/staging")
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskeyid", "")
	v.SetDefault("storage.secretaccesskey", "")
	v.SetDefault("storage.partsizemb", 0)
	v.SetDefault("storage.uploadconcurrency", 0)
	v.SetDefault("gallery.signconcurrency", 0)
	v.SetDefault("environment.label", "")
	v.SetDefault("log.level", "info")

	// the usual AWS variable works for the region too
	_ = v.BindEnv("storage.region", "GALLERY_STORAGE_REGION", "AWS_REGION")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	return cfg, nil
}

// Validate checks the settings every storage driver depends on.
func (c Config) Validate() error {
	var errs []error
	if c.Storage.Driver != "memory" {
		if strings.TrimSpace(c.Storage.Region) == "" {
			errs = append(errs, ErrMissingRegion)
		}
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		errs = append(errs, ErrMissingBucket)
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		errs = append(errs, ErrPartialCredentials)
	}
	switch c.Storage.Driver {
	case "s3", "minio", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == "minio" && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("minio driver requires storage endpoint"))
	}
	if c.Storage.PartSizeMB < 0 || c.Storage.UploadConcurrency < 0 || c.Gallery.SignConcurrency < 0 {
		errs = append(errs, errors.New("sizes and concurrency limits must not be negative"))
	}
	return errors.Join(errs...)
}
