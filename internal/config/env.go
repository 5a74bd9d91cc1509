package config

import (
	"os"
	"strings"
)

// Environment keys for the live-mode exchange credentials. They are the
// only values this process ever takes from a .env file.
const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvAPISecret = "BINANCE_API_SECRET"
)

var credentialKeys = [...]string{EnvAPIKey, EnvAPISecret}

// LoadEnv applies live-mode credentials from a .env file. Keys other
// than the credential ones are ignored, values already in the
// environment win, and a missing file is fine since mock mode needs no
// credentials.
func LoadEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !isCredentialKey(key) {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, unquote(strings.TrimSpace(val)))
	}
	return nil
}

func isCredentialKey(key string) bool {
	for _, k := range credentialKeys {
		if key == k {
			return true
		}
	}
	return false
}

func unquote(val string) string {
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}
	return val
}
