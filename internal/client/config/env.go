package config

import (
	"errors"
	"os"

	"github.com/dmitrijs2005/shiftdesk/internal/flagx"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// defaultEnvFile is loaded when present and no -e/-env flag is given.
const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (if any) into the process environment and
// then decodes SHIFTDESK_* variables into cfg. Variables that are not set
// leave cfg untouched. Panics on malformed files or values, including a
// variable that does not parse as its field's type.
func parseEnv(cfg *Config) {
	envFile := flagx.EnvFileFlag()
	if envFile == "" {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			envFile = defaultEnvFile
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	// StrictDecode reports ErrInvalidTarget when no variable is set; cfg is
	// always a valid target, so that case only means "nothing to apply".
	if err := envdecode.StrictDecode(cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		panic(err)
	}
}
