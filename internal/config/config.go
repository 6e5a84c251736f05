package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	Production         bool   `env:"PRODUCTION,default=false"`
	ChromeBin          string `env:"CHROME_BIN"`
	ChromeDriverPath   string `env:"CHROMEDRIVER_PATH"`
	ResultsDir         string `env:"RESULTS_DIR,default=temp_results"`
	MaxConcurrentTasks int    `env:"MAX_CONCURRENT_TASKS,default=2"`
	AffiliatorCountry  string `env:"AFFILIATOR_COUNTRY,default=MX"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.MaxConcurrentTasks < 1 {
		cfg.MaxConcurrentTasks = 1
	}
	return &cfg, nil
}
