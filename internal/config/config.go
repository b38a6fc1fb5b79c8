package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPython       = "python3"
	defaultRequirements = "requirements.txt"
	defaultEnvFile      = ".env"
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
)

// Environment variables read by applyEnvConfig.
const (
	envPython        = "DOMISAFE_PYTHON"
	envRequirements  = "DOMISAFE_REQUIREMENTS"
	envSkipInstall   = "DOMISAFE_SKIP_INSTALL"
	envStrictInstall = "DOMISAFE_STRICT_INSTALL"
	envEnvFile       = "DOMISAFE_ENV_FILE"
	envApp           = "DOMISAFE_APP"
	envAppDir        = "DOMISAFE_APP_DIR"
	envRestartPerMin = "DOMISAFE_RESTART_PER_MINUTE"
	envLogLevel      = "DOMISAFE_LOG_LEVEL"
	envLogFormat     = "DOMISAFE_LOG_FORMAT"
)

// EnvVars lists every environment variable the configuration reads.
var EnvVars = []string{
	envPython,
	envRequirements,
	envSkipInstall,
	envStrictInstall,
	envEnvFile,
	envApp,
	envAppDir,
	envRestartPerMin,
	envLogLevel,
	envLogFormat,
}

// DefaultAppCommand launches the DomiSafe application from the working directory.
var DefaultAppCommand = []string{"python3", "domisafe_app.py"}

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Python         string
	Requirements   string
	SkipInstall    bool
	StrictInstall  bool
	PlaceholderKey string
	EnvFile        string
	AppCommand     []string
	AppDir         string
	ExtraEnv       map[string]string
	RestartPerMin  int
	LogLevel       string
	LogFormat      string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Python         string            `yaml:"python"`
	Requirements   string            `yaml:"requirements"`
	SkipInstall    *bool             `yaml:"skip_install"`
	StrictInstall  *bool             `yaml:"strict_install"`
	PlaceholderKey string            `yaml:"placeholder_key"`
	EnvFile        string            `yaml:"env_file"`
	App            yamlApp           `yaml:"app"`
	Env            map[string]string `yaml:"env"`
	Restart        yamlRestart       `yaml:"restart"`
	Log            yamlLog           `yaml:"log"`
}

// yamlApp represents the downstream application section in YAML.
type yamlApp struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
}

type yamlRestart struct {
	MaxPerMinute *int `yaml:"max_per_minute"`
}

type yamlLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Python         *string
	Requirements   *string
	SkipInstall    *bool
	StrictInstall  *bool
	PlaceholderKey *string
	EnvFile        *string
	AppCommand     []string
	AppDir         *string
	RestartPerMin  *int
	LogLevel       *string
	LogFormat      *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the YAML file can override them
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// EnvFilePath returns the env file location. A relative path is resolved
// against AppDir, the same directory the requirements file is read from.
func (c Config) EnvFilePath() string {
	if c.EnvFile == "" || c.AppDir == "" || filepath.IsAbs(c.EnvFile) {
		return c.EnvFile
	}
	return filepath.Join(c.AppDir, c.EnvFile)
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Python:       defaultPython,
		Requirements: defaultRequirements,
		EnvFile:      defaultEnvFile,
		AppCommand:   append([]string(nil), DefaultAppCommand...),
		ExtraEnv:     map[string]string{},
		LogLevel:     defaultLogLevel,
		LogFormat:    defaultLogFormat,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Python != "" {
		cfg.Python = yamlCfg.Python
	}

	if yamlCfg.Requirements != "" {
		cfg.Requirements = yamlCfg.Requirements
	}

	if yamlCfg.SkipInstall != nil {
		cfg.SkipInstall = *yamlCfg.SkipInstall
	}

	if yamlCfg.StrictInstall != nil {
		cfg.StrictInstall = *yamlCfg.StrictInstall
	}

	if yamlCfg.PlaceholderKey != "" {
		cfg.PlaceholderKey = yamlCfg.PlaceholderKey
	}

	if yamlCfg.EnvFile != "" {
		cfg.EnvFile = yamlCfg.EnvFile
	}

	if yamlCfg.App.Command != "" {
		cfg.AppCommand = append([]string{yamlCfg.App.Command}, yamlCfg.App.Args...)
	}

	if yamlCfg.App.Dir != "" {
		cfg.AppDir = yamlCfg.App.Dir
	}

	for name, value := range yamlCfg.Env {
		cfg.ExtraEnv[name] = value
	}

	if yamlCfg.Restart.MaxPerMinute != nil {
		cfg.RestartPerMin = *yamlCfg.Restart.MaxPerMinute
	}

	if yamlCfg.Log.Level != "" {
		cfg.LogLevel = yamlCfg.Log.Level
	}

	if yamlCfg.Log.Format != "" {
		cfg.LogFormat = yamlCfg.Log.Format
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if python := strings.TrimSpace(os.Getenv(envPython)); python != "" {
		cfg.Python = python
	}

	if reqs := strings.TrimSpace(os.Getenv(envRequirements)); reqs != "" {
		cfg.Requirements = reqs
	}

	if raw := strings.TrimSpace(os.Getenv(envSkipInstall)); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", envSkipInstall, err)
		}
		cfg.SkipInstall = value
	}

	if raw := strings.TrimSpace(os.Getenv(envStrictInstall)); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", envStrictInstall, err)
		}
		cfg.StrictInstall = value
	}

	if envFile := strings.TrimSpace(os.Getenv(envEnvFile)); envFile != "" {
		cfg.EnvFile = envFile
	}

	if app := strings.TrimSpace(os.Getenv(envApp)); app != "" {
		cfg.AppCommand = strings.Fields(app)
	}

	if dir := strings.TrimSpace(os.Getenv(envAppDir)); dir != "" {
		cfg.AppDir = dir
	}

	if raw := strings.TrimSpace(os.Getenv(envRestartPerMin)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", envRestartPerMin, raw)
		}
		cfg.RestartPerMin = value
	}

	if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
		cfg.LogLevel = level
	}

	if format := strings.TrimSpace(os.Getenv(envLogFormat)); format != "" {
		cfg.LogFormat = format
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Python != nil && *overrides.Python != "" {
		cfg.Python = *overrides.Python
	}

	if overrides.Requirements != nil && *overrides.Requirements != "" {
		cfg.Requirements = *overrides.Requirements
	}

	if overrides.SkipInstall != nil {
		cfg.SkipInstall = *overrides.SkipInstall
	}

	if overrides.StrictInstall != nil {
		cfg.StrictInstall = *overrides.StrictInstall
	}

	if overrides.PlaceholderKey != nil && *overrides.PlaceholderKey != "" {
		cfg.PlaceholderKey = *overrides.PlaceholderKey
	}

	if overrides.EnvFile != nil && *overrides.EnvFile != "" {
		cfg.EnvFile = *overrides.EnvFile
	}

	if len(overrides.AppCommand) > 0 {
		cfg.AppCommand = append([]string(nil), overrides.AppCommand...)
	}

	if overrides.AppDir != nil && *overrides.AppDir != "" {
		cfg.AppDir = *overrides.AppDir
	}

	if overrides.RestartPerMin != nil {
		cfg.RestartPerMin = *overrides.RestartPerMin
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.LogFormat != nil && *overrides.LogFormat != "" {
		cfg.LogFormat = *overrides.LogFormat
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if len(cfg.AppCommand) == 0 || strings.TrimSpace(cfg.AppCommand[0]) == "" {
		return fmt.Errorf("application command cannot be empty")
	}
	if !cfg.SkipInstall && cfg.Python == "" {
		return fmt.Errorf("python interpreter cannot be empty")
	}
	if !cfg.SkipInstall && cfg.Requirements == "" {
		return fmt.Errorf("requirements file cannot be empty")
	}
	if cfg.RestartPerMin < 0 {
		return fmt.Errorf("restart budget must be >= 0")
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return nil
}
