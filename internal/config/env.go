package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	envOnce   sync.Once
	envPath   string
	envErr    error
	lookupDir = os.Getwd
)

// LoadDotEnv loads the nearest .env file from the working directory up to
// the filesystem root. Values already set in the environment win. Only the
// first call does any work.
func LoadDotEnv() (string, error) {
	envOnce.Do(func() {
		path, err := findDotEnv()
		if err != nil {
			envErr = err
			log.Debug().Err(err).Msg("search .env failed")
			return
		}
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			envErr = err
			log.Warn().Err(err).Str("dotenv", path).Msg("load .env failed")
			return
		}
		envPath = path
		log.Debug().Str("dotenv", path).Msg("loaded .env")
	})
	return envPath, envErr
}

func findDotEnv() (string, error) {
	wd, err := lookupDir()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(wd, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			return "", nil
		}
		wd = parent
	}
}
