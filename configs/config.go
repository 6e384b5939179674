package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	MagicSecretKey   string        `env:"MAGIC_SECRET_KEY,required,notEmpty"`
	MagicAPIBaseURL  string        `env:"MAGIC_API_BASE_URL" envDefault:"https://api.magic.link"`
	MagicHTTPTimeout time.Duration `env:"MAGIC_HTTP_TIMEOUT" envDefault:"10s"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the given .env files (".env" when none are given) and then
// parses the process environment. Missing .env files are ignored.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s file: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
