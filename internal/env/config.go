package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/luma/squeeze/client"
)

// DotEnvFile is loaded, if present, before the environment is processed.
const DotEnvFile = ".env.local"

type Config struct {
	Host     string `env:"SQUEEZE_HOST,default=localhost"`
	Port     int    `env:"SQUEEZE_PORT,default=9090"`
	WebPort  int    `env:"SQUEEZE_WEB_PORT,default=9000"`
	Username string `env:"SQUEEZE_USERNAME"`
	Password string `env:"SQUEEZE_PASSWORD"`

	LogLevel  string `env:"SQUEEZE_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"SQUEEZE_DEBUG_HTTP"`

	// RetryDelay is how long the subscriber waits between attempts to
	// reach the server.
	RetryDelay time.Duration `env:"SQUEEZE_RETRY_DELAY,default=5s"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(DotEnvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Endpoint is the server the config points at. Credentials are only set
// when a username is configured.
func (c *Config) Endpoint() client.Endpoint {
	endpoint := client.Endpoint{Host: c.Host, Port: c.Port}

	if c.Username != "" {
		endpoint.Credentials = &client.Credentials{
			Username: c.Username,
			Password: c.Password,
		}
	}

	return endpoint
}
