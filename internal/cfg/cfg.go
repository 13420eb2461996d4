// Package cfg loads service configuration from a YAML file, environment
// variables, or both. Environment variables always win over file values.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"leadscore/internal/common"
)

type Settings struct {
	Port           int
	ClassifierPath string
	RegressorPath  string
	DataPath       string
	ACVMin         float64
	ACVMax         float64
	DefaultRevenue float64
	DefaultB2B     int
	BatchMaxSize   int
	BatchWorkers   int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       string
}

type ConfigFile struct {
	Server struct {
		Port         int    `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
		LogLevel     string `yaml:"logLevel"`
	} `yaml:"server"`

	Models struct {
		ClassifierPath string `yaml:"classifierPath"`
		RegressorPath  string `yaml:"regressorPath"`
	} `yaml:"models"`

	Scoring struct {
		ACVMin         float64 `yaml:"acvMin"`
		ACVMax         float64 `yaml:"acvMax"`
		DefaultRevenue float64 `yaml:"defaultRevenue"`
		DefaultB2B     *int    `yaml:"defaultB2B"`
	} `yaml:"scoring"`

	Batch struct {
		MaxSize int `yaml:"maxSize"`
		Workers int `yaml:"workers"`
	} `yaml:"batch"`

	System struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// A local .env is convenient in development; missing is fine.
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = 10 * time.Second
	}
	writeTimeout, err := time.ParseDuration(config.Server.WriteTimeout)
	if err != nil {
		writeTimeout = 30 * time.Second
	}

	defaultB2B := common.DefaultB2B
	if config.Scoring.DefaultB2B != nil {
		defaultB2B = *config.Scoring.DefaultB2B
	}

	settings := Settings{
		Port:           getIntFromEnvOrConfig(common.EnvPort, config.Server.Port),
		ClassifierPath: getEnvOrDefault(common.EnvClassifierPath, config.Models.ClassifierPath),
		RegressorPath:  getEnvOrDefault(common.EnvRegressorPath, config.Models.RegressorPath),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ACVMin:         getFloatFromEnvOrConfig(common.EnvACVMin, config.Scoring.ACVMin),
		ACVMax:         getFloatFromEnvOrConfig(common.EnvACVMax, config.Scoring.ACVMax),
		DefaultRevenue: getFloatFromEnvOrConfig(common.EnvDefaultRevenue, config.Scoring.DefaultRevenue),
		DefaultB2B:     getIntOrDefault(common.EnvDefaultB2B, defaultB2B),
		BatchMaxSize:   getIntFromEnvOrConfig(common.EnvBatchMaxSize, config.Batch.MaxSize),
		BatchWorkers:   getIntFromEnvOrConfig(common.EnvBatchWorkers, config.Batch.Workers),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, config.Server.LogLevel),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:           getIntOrDefault(common.EnvPort, common.DefaultPort),
		ClassifierPath: getEnvOrDefault(common.EnvClassifierPath, common.DefaultClassifierPath),
		RegressorPath:  getEnvOrDefault(common.EnvRegressorPath, common.DefaultRegressorPath),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		ACVMin:         getFloatOrDefault(common.EnvACVMin, common.DefaultACVMin),
		ACVMax:         getFloatOrDefault(common.EnvACVMax, common.DefaultACVMax),
		DefaultRevenue: getFloatOrDefault(common.EnvDefaultRevenue, common.DefaultRevenue),
		DefaultB2B:     getIntOrDefault(common.EnvDefaultB2B, common.DefaultB2B),
		BatchMaxSize:   getIntOrDefault(common.EnvBatchMaxSize, common.DefaultBatchMaxSize),
		BatchWorkers:   getIntOrDefault(common.EnvBatchWorkers, common.DefaultBatchWorkers),
		ReadTimeout:    getDurationOrDefault(common.EnvReadTimeout, 10*time.Second),
		WriteTimeout:   getDurationOrDefault(common.EnvWriteTimeout, 30*time.Second),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, "info"),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// applyDefaults fills zero values left by an incomplete YAML file.
func applyDefaults(s *Settings) {
	if s.Port == 0 {
		s.Port = common.DefaultPort
	}
	if s.ClassifierPath == "" {
		s.ClassifierPath = common.DefaultClassifierPath
	}
	if s.RegressorPath == "" {
		s.RegressorPath = common.DefaultRegressorPath
	}
	if s.ACVMin == 0 {
		s.ACVMin = common.DefaultACVMin
	}
	if s.ACVMax == 0 {
		s.ACVMax = common.DefaultACVMax
	}
	if s.DefaultRevenue == 0 {
		s.DefaultRevenue = common.DefaultRevenue
	}
	if s.BatchMaxSize == 0 {
		s.BatchMaxSize = common.DefaultBatchMaxSize
	}
	if s.BatchWorkers == 0 {
		s.BatchWorkers = common.DefaultBatchWorkers
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings rejects configurations that would make the service score
// nonsense or fail to serve.
func validateSettings(s *Settings) error {
	if s.Port < common.MinPort || s.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, s.Port)
	}
	if s.ClassifierPath == "" {
		return fmt.Errorf("classifier artifact path is required")
	}
	if s.RegressorPath == "" {
		return fmt.Errorf("regressor artifact path is required")
	}
	if s.ACVMin < 0 {
		return fmt.Errorf("ACV minimum must be non-negative, got %f", s.ACVMin)
	}
	if s.ACVMax <= s.ACVMin {
		return fmt.Errorf("ACV maximum must exceed minimum, got [%f, %f]", s.ACVMin, s.ACVMax)
	}
	if s.DefaultRevenue < 0 {
		return fmt.Errorf("default revenue must be non-negative, got %f", s.DefaultRevenue)
	}
	if s.DefaultB2B != 0 && s.DefaultB2B != 1 {
		return fmt.Errorf("default B2B flag must be 0 or 1, got %d", s.DefaultB2B)
	}
	if s.BatchMaxSize <= 0 || s.BatchMaxSize > common.MaxBatchSize {
		return fmt.Errorf("batch max size must be between 1 and %d, got %d", common.MaxBatchSize, s.BatchMaxSize)
	}
	if s.BatchWorkers <= 0 || s.BatchWorkers > common.MaxBatchWorkers {
		return fmt.Errorf("batch workers must be between 1 and %d, got %d", common.MaxBatchWorkers, s.BatchWorkers)
	}
	if s.ReadTimeout < time.Second || s.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", s.ReadTimeout)
	}
	if s.WriteTimeout < time.Second || s.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 5m, got %v", s.WriteTimeout)
	}
	return nil
}
