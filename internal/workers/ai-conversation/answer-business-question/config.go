package answerbusinessquestion

import (
	"time"

	"bi-agent/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig applies the worker's configured timeout, falling back to 60s.
func LoadConfig(wcfg config.WorkerConfig) *Config {
	cfg := &Config{
		Timeout: 60 * time.Second,
	}
	if wcfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return cfg
}
