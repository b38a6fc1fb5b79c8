package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvName is the variable the downstream application authenticates with.
const EnvName = "ADAFRUIT_IO_KEY"

// Guidance is printed when no credential could be resolved.
const Guidance = "ADAFRUIT_IO_KEY is not set. Edit the placeholder key, export ADAFRUIT_IO_KEY, or add it to the env file before starting DomiSafe."

var (
	// ErrMissingCredential is returned when every source resolves to an empty value.
	ErrMissingCredential = errors.New("missing required credential " + EnvName)
)

// Source names where a credential value came from.
type Source string

const (
	SourcePlaceholder Source = "placeholder"
	SourceEnvironment Source = "environment"
	SourceDotenv      Source = "dotenv"
)

// Credential is a resolved API key together with its origin.
type Credential struct {
	Value  string
	Source Source
}

// Resolver looks up the API key from the configured sources in order:
// the placeholder constant, the inherited environment, then the env file.
type Resolver struct {
	Placeholder string
	EnvFile     string
	LookupEnv   func(string) (string, bool)
}

// NewResolver returns a Resolver reading the current process environment.
func NewResolver(placeholder, envFile string) *Resolver {
	return &Resolver{
		Placeholder: placeholder,
		EnvFile:     envFile,
		LookupEnv:   os.LookupEnv,
	}
}

// Resolve returns the first non-empty credential or ErrMissingCredential. An
// env file that exists but cannot be read or parsed leaves the key unresolved;
// the read error is wrapped alongside ErrMissingCredential.
func (r *Resolver) Resolve() (Credential, error) {
	if r.Placeholder != "" {
		return Credential{Value: r.Placeholder, Source: SourcePlaceholder}, nil
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(EnvName); ok && value != "" {
		return Credential{Value: value, Source: SourceEnvironment}, nil
	}

	if r.EnvFile != "" {
		value, err := readEnvFile(r.EnvFile)
		if err != nil {
			return Credential{}, fmt.Errorf("%w: %w", ErrMissingCredential, err)
		}
		if value != "" {
			return Credential{Value: value, Source: SourceDotenv}, nil
		}
	}

	return Credential{}, ErrMissingCredential
}

// readEnvFile reads the key from a dotenv file without touching the process
// environment. A missing file yields an empty value.
func readEnvFile(path string) (string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read env file %s: %w", path, err)
	}
	return values[EnvName], nil
}
