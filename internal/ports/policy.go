package ports

import "time"

// Policy controls queue capacity and the retry schedule.
type Policy struct {
	MaxQueueLen        int           `yaml:"max_queue_len"`
	MaxAttempts        int           `yaml:"max_attempts"`
	BaseBackoff        time.Duration `yaml:"base_backoff"`
	MaxBackoffExponent int           `yaml:"max_backoff_exponent"`
	RetryWindow        time.Duration `yaml:"retry_window"`

	OnQueueFull string `yaml:"on_queue_full"` // "reject", "drop_oldest_routine"
}
