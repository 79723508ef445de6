package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvWithDefaults replaces ${VAR} and ${VAR:-default} references.
// An unset or empty variable without a default expands to "".
func ExpandEnvWithDefaults(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[3]
	})
}

// EnvFileCandidates lists the .env files read by LoadEnvFiles, in order.
func EnvFileCandidates() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		files = append(files, filepath.Join(home, ".config", "erp-gateway", ".env"))
	}
	return files
}

// LoadEnvFiles loads .env files without overriding variables that are
// already set. Missing files are skipped.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = EnvFileCandidates()
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("failed to load env file")
			continue
		}
		log.Debug().Str("file", f).Msg("loaded env file")
	}
}
