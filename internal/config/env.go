package config

import (
	"os"

	"github.com/joho/godotenv"
)

// EnvFiles are tried in order by LoadEnvFiles.
var EnvFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads the first existing .env file from dir without overriding
// variables already set in the process environment. It returns the loaded
// file path, or "" when none exists.
func LoadEnvFiles(dir string) (string, error) {
	for _, name := range EnvFiles {
		p := name
		if dir != "" {
			p = dir + string(os.PathSeparator) + name
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return "", nil
}
