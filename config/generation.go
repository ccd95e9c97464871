package config

import (
	"strings"
	"time"
)

// GenerationConfig contains configuration for the generation API client.
// The endpoint speaks the OpenAI-compatible chat completions protocol, so it
// can point at a hosted provider or a local inference server.
type GenerationConfig struct {
	// BaseURL is the API root, up to but not including /chat/completions.
	BaseURL string `env:"GENERATION_BASE_URL" envDefault:"http://localhost:8000/v1"`

	// APIKey authenticates requests. Empty is accepted for keyless local
	// endpoints.
	APIKey string `env:"GENERATION_API_KEY" envDefault:""`

	// Model is the model name sent with every request.
	Model string `env:"GENERATION_MODEL" envDefault:"gpt-4o-mini"`

	// Temperature is the sampling temperature sent with every request.
	Temperature float64 `env:"GENERATION_TEMPERATURE" envDefault:"0.2"`

	// Timeout bounds a single generation call end to end.
	Timeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to generation configuration values.
func (g *GenerationConfig) Sanitize() {
	g.BaseURL = strings.TrimSpace(g.BaseURL)
	g.Model = strings.TrimSpace(g.Model)
	g.APIKey = strings.TrimSpace(g.APIKey)

	if g.Temperature < 0 {
		g.Temperature = 0
	}
	if g.Temperature > 2 {
		g.Temperature = 2
	}
	if g.Timeout < time.Second {
		g.Timeout = 60 * time.Second
	}
}
