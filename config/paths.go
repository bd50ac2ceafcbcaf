package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const appName = "wikichat"

// GetConfigDir is $XDG_CONFIG_HOME/wikichat, or ~/.config/wikichat.
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); filepath.IsAbs(dir) {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(GetHomeDir(), ".config", appName)
}

func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// GetHomeDir falls back to the working directory when no home is set, so
// the data directory still ends up somewhere writable.
func GetHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	path = os.ExpandEnv(path)
	switch {
	case path == "~":
		path = GetHomeDir()
	case strings.HasPrefix(path, "~/"):
		path = filepath.Join(GetHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

// EnsureDir creates path with user-only access.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions creates dataDir or tightens an existing one to
// 0700. Drafts and the admin-visible thread titles live there.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if errors.Is(err, fs.ErrNotExist) {
		return EnsureDir(dataDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: dataDir, Err: fs.ErrExist}
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
