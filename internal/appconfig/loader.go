package appconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileReader abstracts reading the config file so tests can inject an
// in-memory reader instead of touching disk.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader implements FileReader using os.ReadFile.
type OSFileReader struct{}

func (OSFileReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Loader loads and merges the auditor's TOML configuration with defaults.
type Loader struct {
	fileReader FileReader
}

// NewLoader creates a Loader backed by the real filesystem.
func NewLoader() *Loader {
	return &Loader{fileReader: OSFileReader{}}
}

// NewLoaderWithReader creates a Loader backed by a custom FileReader, for tests.
func NewLoaderWithReader(r FileReader) *Loader {
	return &Loader{fileReader: r}
}

// Load reads the TOML file at path and overlays it onto Default(). A missing
// file is not an error: the defaults are returned as-is, matching the
// specification's "recognized options, exhaustive for the core" table where
// every option has a stated default.
func (l *Loader) Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if !strings.HasSuffix(path, ".toml") {
		return Config{}, fmt.Errorf("config file must be a .toml file: %s", path)
	}

	body, err := l.fileReader.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
