package rabbittest

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/bigchange/busharness/address"
)

// EnvPrefix of environment variables read by ConfigFromEnv, e.g. RABBITMQ_HOST_ADDRESS.
const EnvPrefix = "RABBITMQ"

// Config of a harness and integration tests, read from environment.
type Config struct {
	HostAddress    string        `split_words:"true" default:"rabbitmq://localhost/"`
	Username       string        `default:"guest"`
	Password       string        `default:"guest"`
	NodeHostName   string        `split_words:"true"`
	InputQueueName string        `split_words:"true" default:"input_queue"`
	TestTimeout    time.Duration `split_words:"true" default:"30s"`
	ManagementURL  string        `split_words:"true" default:"http://localhost:15672"`
	// Docker starts a throwaway broker container instead of using HostAddress.
	Docker bool `default:"false"`

	// Host is the parsed HostAddress.
	Host address.Host `ignored:"true"`
}

// ConfigFromEnv reads Config from RABBITMQ_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	host, err := address.Parse(cfg.HostAddress)
	if err != nil {
		return Config{}, fmt.Errorf("parse host address: %w", err)
	}
	cfg.Host = host

	return cfg, nil
}

// IntegrationEnabled reports whether a broker is available for integration tests:
// either RABBITMQ_HOST_ADDRESS is set or RABBITMQ_DOCKER asks for a container.
func IntegrationEnabled() bool {
	if _, ok := os.LookupEnv(EnvPrefix + "_HOST_ADDRESS"); ok {
		return true
	}

	v, _ := os.LookupEnv(EnvPrefix + "_DOCKER")

	return v == "true" || v == "1"
}
