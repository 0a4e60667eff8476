package keytoolconfig

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	OutputDir string `yaml:"outputDir"`

	Verification VerificationConfig `yaml:"verification"`
}

type VerificationConfig struct {
	AttemptBurst    int           `yaml:"attemptBurst"`
	AttemptInterval time.Duration `yaml:"attemptInterval"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		OutputDir: ".",
		Verification: VerificationConfig{
			AttemptBurst:    5,
			AttemptInterval: 30 * time.Second,
		},
	}
}

func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-backend/configs/keytool.yaml",
			"configs/keytool.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.Verification.AttemptBurst != 0 {
		dst.Verification.AttemptBurst = src.Verification.AttemptBurst
	}
	if src.Verification.AttemptInterval != 0 {
		dst.Verification.AttemptInterval = src.Verification.AttemptInterval
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if level := strings.TrimSpace(os.Getenv("NONMSG_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv("NONMSG_LOG_FORMAT")); format != "" {
		cfg.LogFormat = format
	}
	if dir := strings.TrimSpace(os.Getenv("NONMSG_OUTPUT_DIR")); dir != "" {
		cfg.OutputDir = dir
	}
}
