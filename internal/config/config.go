package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"gesturelab/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data    DataConfig
	Sampler SamplerConfig
	Output  OutputConfig
}

// DataConfig holds dataset input settings
type DataConfig struct {
	File string // delimited input file (csv or xlsx)
}

// SamplerConfig holds defaults for the fitting engine
type SamplerConfig struct {
	Cores int    // worker count for parallel chains; defaults to all cores
	Seed  uint64 // base seed for reproducible runs
}

// OutputConfig holds artifact output settings
type OutputConfig struct {
	Dir string // directory chart and report files are written to
}

// Load reads configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cores := getEnvIntOrDefault("GESTURELAB_CORES", runtime.NumCPU())
	if cores < 1 {
		return nil, errors.ConfigInvalid("GESTURELAB_CORES must be at least 1")
	}

	seed, err := getEnvUintOrDefault("GESTURELAB_SEED", 1041)
	if err != nil {
		return nil, errors.ConfigInvalid("GESTURELAB_SEED must be an unsigned integer")
	}

	return &Config{
		Data: DataConfig{
			File: getEnvOrDefault("GESTURELAB_DATA_FILE", "dutch_gestures.csv"),
		},
		Sampler: SamplerConfig{
			Cores: cores,
			Seed:  seed,
		},
		Output: OutputConfig{
			Dir: getEnvOrDefault("GESTURELAB_OUTPUT_DIR", "."),
		},
	}, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseUint(value, 10, 64)
}
