package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file. If path is empty,
// ".env" in the current directory is used. A missing file is not an error.
// Variables already present in the environment are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load loads the optional .env file and then the environment.
func Load(envPath string) (Config, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return Config{}, err
	}
	return LoadFromEnv()
}
