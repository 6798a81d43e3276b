package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath names an explicit config file
const EnvConfigPath = EnvPrefix + "CONFIG"

const (
	configFileName = "crawlscope.yaml"
	configDirName  = "crawlscope"
)

// SearchPaths lists the config file candidates in priority order: the
// explicit $CRAWLSCOPE_CONFIG, ./crawlscope.yaml, then crawlscope/config.yaml
// under $XDG_CONFIG_HOME, ~/.config and /etc.
func SearchPaths(lookup LookupFunc) []string {
	var paths []string
	if p, ok := lookup(EnvConfigPath); ok && p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, configFileName)

	for _, dir := range []struct{ env, sub string }{
		{"XDG_CONFIG_HOME", ""},
		{"HOME", ".config"},
	} {
		if base, ok := lookup(dir.env); ok && base != "" {
			paths = append(paths, filepath.Join(base, dir.sub, configDirName, "config.yaml"))
		}
	}
	return append(paths, filepath.Join("/etc", configDirName, "config.yaml"))
}

// FindConfigPath returns the first candidate of SearchPaths that is a
// regular file, made absolute. Empty when none exists.
func FindConfigPath(lookup LookupFunc) string {
	for _, p := range SearchPaths(lookup) {
		if !fileExists(p) {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
