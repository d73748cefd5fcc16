package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
[PROD]
host = https://udn.example.org/
udn_token = prod-token
fileservice_token = fs-prod
bucket = udn-prod
permissions = read, write ,

[TEST]
host = https://test.udn.example.org/
udn_token = test-token
fileservice_token = fs-test
bucket = udn-test
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "minio", cfg.Storage.Provider)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("UDN_CONFIG", "/etc/udn/config")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "s3", cfg.Storage.Provider)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	path, err := cfg.ProfilePath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/udn/config", path)
}

func TestLoadProfileSections(t *testing.T) {
	path := writeProfile(t, sampleProfile)

	prod, err := LoadProfile(path, SectionFor(false))
	require.NoError(t, err)
	assert.Equal(t, "https://udn.example.org/", prod.Host)
	assert.Equal(t, "prod-token", prod.UDNToken)
	assert.Equal(t, "fs-prod", prod.FileServiceToken)
	assert.Equal(t, "udn-prod", prod.Bucket)
	assert.Equal(t, []string{"read", "write"}, prod.Permissions)

	test, err := LoadProfile(path, SectionFor(true))
	require.NoError(t, err)
	assert.Equal(t, "udn-test", test.Bucket)
	assert.Empty(t, test.Permissions)
}

func TestLoadProfileMissingKeys(t *testing.T) {
	path := writeProfile(t, "[PROD]\nhost = https://udn.example.org/\n")

	_, err := LoadProfile(path, SectionProd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udn_token")
	assert.Contains(t, err.Error(), "bucket")
}

func TestLoadProfileMissingSection(t *testing.T) {
	path := writeProfile(t, sampleProfile)

	_, err := LoadProfile(path, "STAGING")
	require.Error(t, err)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent"), SectionProd)
	require.Error(t, err)
}
