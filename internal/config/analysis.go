package config

import (
	"os"
	"strconv"
	"time"
)

// AnalysisConfig holds settings for the remote analysis service.
//
// The service runs multi-step agent reasoning on answer submission, so long
// calls get a much larger budget than administrative ones.
type AnalysisConfig struct {
	BaseURL      string
	ShortTimeout time.Duration
	LongTimeout  time.Duration
}

// DefaultAnalysisConfig returns analysis-service config from the environment
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		BaseURL:      getEnv("ANALYSIS_BASE_URL", "http://localhost:9090"),
		ShortTimeout: getEnvDuration("ANALYSIS_SHORT_TIMEOUT_MS", 30*time.Second),
		LongTimeout:  getEnvDuration("ANALYSIS_LONG_TIMEOUT_MS", 5*time.Minute),
	}
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
