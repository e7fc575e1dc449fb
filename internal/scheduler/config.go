package scheduler

import (
	"os"
	"time"
)

// Config controls how the billing jobs are driven.
type Config struct {
	// RunInterval is how often RunForever wakes up to run due jobs.
	RunInterval time.Duration
	// JobTimeout bounds a single job run across all accounts.
	JobTimeout time.Duration
}

func NewConfig() Config {
	return Config{
		RunInterval: getduration("SCHEDULER_RUN_INTERVAL", 24*time.Hour),
		JobTimeout:  getduration("SCHEDULER_JOB_TIMEOUT", 30*time.Minute),
	}
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
