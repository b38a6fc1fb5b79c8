package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/bootstrap"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/config"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/logging"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, newBootstrapper))
}

type runner interface {
	Run(ctx context.Context) (int, error)
}

type runnerFactory func(cfg config.Config, logger *zap.Logger) runner

func newBootstrapper(cfg config.Config, logger *zap.Logger) runner {
	return bootstrap.New(cfg, logger)
}

func run(args []string, stderr io.Writer, factory runnerFactory) int {
	overrides, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "domisafe-bootstrap: %v\n", err)
		return bootstrap.ExitInvalidConfig
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return bootstrap.ExitInvalidConfig
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return bootstrap.ExitInvalidConfig
	}
	defer func() {
		_ = logger.Sync()
	}()

	code, err := factory(cfg, logger).Run(context.Background())
	if err != nil {
		logger.Error("bootstrap failed", zap.Int("exit_code", code), zap.Error(err))
	}
	return code
}

func parseFlags(args []string, stderr io.Writer) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("domisafe-bootstrap", "DomiSafe bootstrapper - installs dependencies, checks ADAFRUIT_IO_KEY and launches the application")
	kingpinApp.Version(Version)
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)

	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	python := kingpinApp.Flag("python", "Python interpreter used to run pip").String()
	requirements := kingpinApp.Flag("requirements", "Dependency manifest passed to pip install -r").String()
	skipInstall := kingpinApp.Flag("skip-install", "Skip the pip upgrade and requirements install").Bool()
	strictInstall := kingpinApp.Flag("strict-install", "Abort with exit code 2 when a pip step fails").Bool()
	key := kingpinApp.Flag("key", "Placeholder API key; when empty ADAFRUIT_IO_KEY is taken from the environment").String()
	envFile := kingpinApp.Flag("env-file", "Dotenv file consulted when ADAFRUIT_IO_KEY is not set").String()
	appDir := kingpinApp.Flag("app-dir", "Working directory for pip and the application").String()
	restartPerMin := kingpinApp.Flag("restart-per-minute", "Relaunch a failing application up to N times per minute (0 disables)").Default("-1").Int()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	logFormat := kingpinApp.Flag("log-format", "Log encoding (console, json)").String()
	command := kingpinApp.Arg("command", "Application command line (default: python3 domisafe_app.py)").Strings()

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		AppCommand: *command,
	}

	if *python != "" {
		overrides.Python = python
	}

	if *requirements != "" {
		overrides.Requirements = requirements
	}

	if *skipInstall {
		overrides.SkipInstall = skipInstall
	}

	if *strictInstall {
		overrides.StrictInstall = strictInstall
	}

	if *key != "" {
		overrides.PlaceholderKey = key
	}

	if *envFile != "" {
		overrides.EnvFile = envFile
	}

	if *appDir != "" {
		overrides.AppDir = appDir
	}

	// -1 is the unset default; any other value, negative included, reaches
	// config validation.
	if *restartPerMin != -1 {
		overrides.RestartPerMin = restartPerMin
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *logFormat != "" {
		overrides.LogFormat = logFormat
	}

	return overrides, nil
}
