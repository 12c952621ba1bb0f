// Package cli holds the flag helpers shared by every subcommand.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envFileVar overrides the -env flag when set, so deploys can point every
// command at one file without touching argv.
const envFileVar = "CURRENTS_ENV_FILE"

// EnvLoader resolves and loads a dotenv file after flag parsing.
type EnvLoader struct {
	path        *string
	defaultPath string
}

// AddEnvFlag registers the -env flag on fs and returns the loader to run
// once flags are parsed.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}
	return &EnvLoader{
		path:        fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load applies the first env file that resolves: the override variable, the
// flag value, then the default path. Values in the file override the
// inherited environment.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	candidates := make([]string, 0, 3)
	if override := strings.TrimSpace(os.Getenv(envFileVar)); override != "" {
		candidates = append(candidates, override)
	}
	if l.path != nil {
		if requested := strings.TrimSpace(*l.path); requested != "" {
			candidates = append(candidates, requested)
		}
	}
	candidates = append(candidates, l.defaultPath)

	var lastErr error
	for _, candidate := range candidates {
		if err := godotenv.Overload(candidate); err == nil {
			return candidate, nil
		} else {
			lastErr = err
		}
	}
	return "", fmt.Errorf("load env file: %w", lastErr)
}
