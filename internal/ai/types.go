package ai

import (
	"time"

	"github.com/strrl/meetscope/internal/analysis"
)

const (
	DefaultModel        = "gemini-2.5-pro"
	DefaultTemperature  = 1.0
	DefaultLanguage     = "English"
	DefaultTimeout      = 10 * time.Minute
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
	DefaultCacheTTL     = 46 * time.Hour
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	Language    string
	Timeout     time.Duration

	// PollInterval and PollTimeout bound the wait for uploaded files to
	// leave the PROCESSING state.
	PollInterval time.Duration
	PollTimeout  time.Duration

	CacheTTL time.Duration

	// BreakerFailures consecutive generation failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = time.Minute
	}
	return c
}

// DefaultOptions are the analysis options implied by the config.
func (c Config) DefaultOptions() analysis.Options {
	c = c.withDefaults()
	temperature := c.Temperature
	return analysis.Options{
		Model:       c.Model,
		Temperature: &temperature,
		Language:    c.Language,
	}
}

// UploadedFile is a recording that the model can reference by URI.
type UploadedFile struct {
	Name        string
	DisplayName string
	URI         string
	MIMEType    string
	Cached      bool
}

type UploadedParticipant struct {
	Name string
	File *UploadedFile
}
