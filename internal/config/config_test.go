package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray config or .env is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	t.Setenv("AWS_REGION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "data/gallery.db", cfg.Database.Path)
	assert.Equal(t, "data/staging", cfg.Upload.StagingDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.Gallery.SignConcurrency)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t)
	t.Setenv("GALLERY_STORAGE_REGION", "eu-central-1")
	t.Setenv("GALLERY_STORAGE_BUCKET", "photos")
	t.Setenv("GALLERY_STORAGE_ACCESSKEYID", "AKID")
	t.Setenv("GALLERY_STORAGE_SECRETACCESSKEY", "SECRET")
	t.Setenv("GALLERY_STORAGE_DRIVER", " MinIO ")
	t.Setenv("GALLERY_STORAGE_PARTSIZEMB", "8")
	t.Setenv("GALLERY_GALLERY_SIGNCONCURRENCY", "16")
	t.Setenv("GALLERY_ENVIRONMENT_LABEL", "staging")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.Storage.Region)
	assert.Equal(t, "photos", cfg.Storage.Bucket)
	assert.Equal(t, "AKID", cfg.Storage.AccessKeyID)
	assert.Equal(t, "SECRET", cfg.Storage.SecretAccessKey)
	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.Equal(t, 8, cfg.Storage.PartSizeMB)
	assert.Equal(t, 16, cfg.Gallery.SignConcurrency)
	assert.Equal(t, "staging", cfg.Environment.Label)
}

func TestLoad_AWSRegionFallback(t *testing.T) {
	chdir(t)
	t.Setenv("GALLERY_STORAGE_REGION", "")
	os.Unsetenv("GALLERY_STORAGE_REGION")
	t.Setenv("AWS_REGION", "ap-south-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Storage.Region)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("GALLERY_STORAGE_BUCKET=from-dotenv\nGALLERY_ENVIRONMENT_LABEL=dev\n"), 0o644))
	t.Setenv("GALLERY_STORAGE_BUCKET", "from-env")
	t.Cleanup(func() { os.Unsetenv("GALLERY_ENVIRONMENT_LABEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, "dev", cfg.Environment.Label)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("storage:\n  bucket: from-file\n  region: us-west-2\nserver:\n  addr: 127.0.0.1:9999\n"), 0o644))
	t.Setenv("AWS_REGION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Storage.Bucket)
	assert.Equal(t, "us-west-2", cfg.Storage.Region)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func validConfig() Config {
	var c Config
	c.Storage.Driver = "s3"
	c.Storage.Region = "us-east-1"
	c.Storage.Bucket = "photos"
	return c
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.Storage.Region = ""
	assert.ErrorIs(t, c.Validate(), ErrMissingRegion)

	c = validConfig()
	c.Storage.Bucket = " "
	assert.ErrorIs(t, c.Validate(), ErrMissingBucket)

	c = validConfig()
	c.Storage.AccessKeyID = "AKID"
	assert.ErrorIs(t, c.Validate(), ErrPartialCredentials)

	c = validConfig()
	c.Storage.AccessKeyID = "AKID"
	c.Storage.SecretAccessKey = "SECRET"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.Storage.Driver = "gcs"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Storage.Driver = "minio"
	assert.Error(t, c.Validate(), "minio needs an endpoint")

	c = validConfig()
	c.Storage.Driver = "memory"
	c.Storage.Region = ""
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.Gallery.SignConcurrency = -1
	assert.Error(t, c.Validate())
}
