// Package config loads the service configuration from environment
// variables. The core packages never read the environment themselves;
// everything they need is passed in at construction.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full configuration surface of the service.
type Config struct {
	// HTTPAddr is the listen address of the gateway callback server.
	HTTPAddr string `env:"EDUBOT_HTTP_ADDR" envDefault:":8000"`
	// Debug relaxes CORS and enables verbose endpoints for local work
	// against gateway simulators.
	Debug    bool   `env:"EDUBOT_DEBUG" envDefault:"false"`
	LogLevel string `env:"EDUBOT_LOG_LEVEL" envDefault:"info"`

	// RequestTimeout bounds one gateway round trip end to end. Gateways
	// abandon callbacks that take longer, so everything inside a request
	// must finish within it.
	RequestTimeout time.Duration `env:"EDUBOT_REQUEST_TIMEOUT" envDefault:"15s"`

	RedisAddr     string `env:"EDUBOT_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"EDUBOT_REDIS_PASSWORD"`
	RedisDB       int    `env:"EDUBOT_REDIS_DB" envDefault:"0"`

	// SessionTTL is the sliding expiry of dialog state. Every save
	// refreshes it.
	SessionTTL time.Duration `env:"EDUBOT_SESSION_TTL" envDefault:"300s"`
	// SessionLockTTL bounds how long a crashed replica can hold a
	// distributed session lock.
	SessionLockTTL time.Duration `env:"EDUBOT_SESSION_LOCK_TTL" envDefault:"30s"`

	// GenerationEnabled turns LLM quiz generation on. Without it, or
	// without an API key, every quiz draws from the static bank.
	GenerationEnabled bool          `env:"EDUBOT_GENERATION_ENABLED" envDefault:"true"`
	GroqAPIKey        string        `env:"EDUBOT_GROQ_API_KEY"`
	GroqModel         string        `env:"EDUBOT_GROQ_MODEL" envDefault:"llama-3.1-8b-instant"`
	GroqMaxTokens     int           `env:"EDUBOT_GROQ_MAX_TOKENS" envDefault:"1024"`
	GenerationTimeout time.Duration `env:"EDUBOT_GENERATION_TIMEOUT" envDefault:"10s"`
	QuizDifficulty    string        `env:"EDUBOT_QUIZ_DIFFICULTY" envDefault:"easy"`

	// AllowedCounts are the quiz lengths a user may pick. Any other
	// input falls back to DefaultCount.
	AllowedCounts []int `env:"EDUBOT_ALLOWED_COUNTS" envDefault:"3,5,10"`
	DefaultCount  int   `env:"EDUBOT_DEFAULT_COUNT" envDefault:"5"`

	// Africa's Talking credentials. An empty API key puts the SMS client
	// in debug mode: messages are logged, not sent.
	ATUsername  string `env:"EDUBOT_AT_USERNAME" envDefault:"sandbox"`
	ATAPIKey    string `env:"EDUBOT_AT_API_KEY"`
	SMSSenderID string `env:"EDUBOT_SMS_SENDER_ID" envDefault:"EduBot"`

	// ServiceCode is the USSD code users dial, for logs and the simulator.
	ServiceCode string `env:"EDUBOT_USSD_SERVICE_CODE" envDefault:"*384*123#"`

	DeliveryWorkers   int `env:"EDUBOT_DELIVERY_WORKERS" envDefault:"4"`
	DeliveryQueueSize int `env:"EDUBOT_DELIVERY_QUEUE_SIZE" envDefault:"64"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.GenerationTimeout <= 0 || c.GenerationTimeout >= c.RequestTimeout {
		return fmt.Errorf("generation timeout %s must be positive and below the request timeout %s",
			c.GenerationTimeout, c.RequestTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	if len(c.AllowedCounts) == 0 {
		return fmt.Errorf("allowed counts must not be empty")
	}
	for _, n := range c.AllowedCounts {
		if n <= 0 {
			return fmt.Errorf("allowed counts must be positive, got %d", n)
		}
	}
	if !c.CountAllowed(c.DefaultCount) {
		return fmt.Errorf("default count %d is not in the allowed set %v", c.DefaultCount, c.AllowedCounts)
	}
	if c.DeliveryWorkers <= 0 {
		return fmt.Errorf("delivery workers must be positive, got %d", c.DeliveryWorkers)
	}
	if c.DeliveryQueueSize <= 0 {
		return fmt.Errorf("delivery queue size must be positive, got %d", c.DeliveryQueueSize)
	}
	return nil
}

// CountAllowed reports whether n is one of the selectable quiz lengths.
func (c Config) CountAllowed(n int) bool {
	for _, allowed := range c.AllowedCounts {
		if n == allowed {
			return true
		}
	}
	return false
}

// MaxCount returns the largest selectable quiz length. Startup validation
// checks the static banks can serve it.
func (c Config) MaxCount() int {
	max := 0
	for _, n := range c.AllowedCounts {
		if n > max {
			max = n
		}
	}
	return max
}
