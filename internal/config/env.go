package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvGlobalEnv overrides the location of the global .env file.
const EnvGlobalEnv = "CODERUN_GLOBAL_ENV"

// GlobalDir is where per-user state such as the .env file and task history
// lives. It is empty when the user config dir cannot be determined.
func GlobalDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "coderun")
}

// GlobalEnvPath returns the .env file loaded at startup.
func GlobalEnvPath() string {
	if p := os.Getenv(EnvGlobalEnv); p != "" {
		return p
	}
	dir := GlobalDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ".env")
}

// LoadDotEnv loads variables from path into the process environment without
// replacing variables that are already set. A missing file is not an error.
// It reports whether the file was found.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	return true, nil
}
