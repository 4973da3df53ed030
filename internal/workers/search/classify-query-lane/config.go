// internal/workers/search/classify-query-lane/config.go
package classifyquerylane

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
