package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-ini/ini"
)

const (
	SectionProd = "PROD"
	SectionTest = "TEST"
)

// Config captures the runtime configuration of the udn client that comes
// from the environment. Credentials live in the profile file.
type Config struct {
	App     AppConfig
	Storage StorageConfig
	Tracing TracingConfig
	Kafka   KafkaConfig
	HTTP    HTTPConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"udn-cli"`
	Version     string `env:"APP_VERSION" envDefault:"0.2.1"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogDir      string `env:"APP_LOG_DIR" envDefault:"."`
	ProfilePath string `env:"UDN_CONFIG"`
}

type StorageConfig struct {
	Provider string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint string `env:"STORAGE_ENDPOINT" envDefault:"s3.amazonaws.com"`
	Region   string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	UseSSL   bool   `env:"STORAGE_USE_SSL" envDefault:"true"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=udn"`
}

// KafkaConfig enables report publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	ReportsTopic     string        `env:"KAFKA_REPORTS_TOPIC" envDefault:"udn.upload.reports"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
}

type HTTPConfig struct {
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
}

// Profile holds the metadata-service credentials for one environment.
type Profile struct {
	Host             string
	UDNToken         string
	FileServiceToken string
	Bucket           string
	Permissions      []string
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultProfilePath returns ~/.udn/config.
func DefaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".udn", "config"), nil
}

// ProfilePath returns the configured profile location, falling back to the
// default one.
func (c *Config) ProfilePath() (string, error) {
	if c.App.ProfilePath != "" {
		return c.App.ProfilePath, nil
	}
	return DefaultProfilePath()
}

// SectionFor maps the --test flag to a profile section name.
func SectionFor(test bool) string {
	if test {
		return SectionTest
	}
	return SectionProd
}

// LoadProfile reads the named section of an INI profile file.
func LoadProfile(path, section string) (*Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}

	sec, err := file.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("profile section %s: %w", section, err)
	}

	p := &Profile{
		Host:             sec.Key("host").String(),
		UDNToken:         sec.Key("udn_token").String(),
		FileServiceToken: sec.Key("fileservice_token").String(),
		Bucket:           sec.Key("bucket").String(),
	}
	for _, perm := range sec.Key("permissions").Strings(",") {
		if perm = strings.TrimSpace(perm); perm != "" {
			p.Permissions = append(p.Permissions, perm)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile section %s: %w", section, err)
	}
	return p, nil
}

// Validate lists every required key that is missing.
func (p *Profile) Validate() error {
	var missing []string
	if p.Host == "" {
		missing = append(missing, "host")
	}
	if p.UDNToken == "" {
		missing = append(missing, "udn_token")
	}
	if p.FileServiceToken == "" {
		missing = append(missing, "fileservice_token")
	}
	if p.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return errors.New("missing keys: " + strings.Join(missing, ", "))
	}
	return nil
}
