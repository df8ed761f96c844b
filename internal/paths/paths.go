package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	StateDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("SEQRELAY_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "seqrelay"),
		DataDir:   getDir("SEQRELAY_DATA_HOME", "XDG_DATA_HOME", ".local/share", "seqrelay"),
		CacheDir:  getDir("SEQRELAY_CACHE_HOME", "XDG_CACHE_HOME", ".cache", "seqrelay"),
		StateDir:  getDir("SEQRELAY_STATE_HOME", "XDG_STATE_HOME", ".local/state", "seqrelay"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase, appName string) string {
	// 1. Check seqrelay-specific env
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	// 2. Check XDG env
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	// 3. Use default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetDatabasePath returns the path to the submission log database
func GetDatabasePath() string {
	if path := os.Getenv("SEQRELAY_DB_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "seqrelay.db")
}

// GetSchemaDir returns the directory searched for schema overrides.
// Schemas found here shadow the embedded defaults of the same name.
func GetSchemaDir() string {
	if path := os.Getenv("SEQRELAY_SCHEMA_DIR"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().ConfigDir, "schemas")
}

// GetRegistryDir returns the directory searched for lookup registry
// overrides (geographic locations, laboratory addresses).
func GetRegistryDir() string {
	if path := os.Getenv("SEQRELAY_REGISTRY_DIR"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().ConfigDir, "registries")
}

// EnsureDirectories creates all necessary directories
func EnsureDirectories() error {
	paths := GetPaths()
	dirs := []string{
		paths.ConfigDir,
		filepath.Join(paths.ConfigDir, "schemas"),
		filepath.Join(paths.ConfigDir, "registries"),
		paths.DataDir,
		paths.CacheDir,
		paths.StateDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
