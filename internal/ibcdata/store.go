package ibcdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store reads and writes ChannelPair bundles under a root data directory's
// ibc/ subdirectory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at <dataDir>/ibc.
func NewStore(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "ibc")}
}

// Load reads the bundle for a chain pair. A missing file is reported as an
// empty bundle with ok=false rather than an error, since a missing
// channel-pair file is expected the first time an audit runs against a
// chain pair and must never be fatal.
func (s *Store) Load(chainA, chainB string) (Bundle, bool, error) {
	path := filepath.Join(s.dir, BundleFileName(chainA, chainB))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Bundle{}, false, nil
		}
		return Bundle{}, false, fmt.Errorf("failed to read channel pair bundle %s: %w", path, err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		// Treat a corrupt cache file as a miss rather than a hard failure.
		return Bundle{}, false, nil
	}
	return bundle, true, nil
}

// Save writes the bundle for a chain pair, creating the ibc/ directory if
// it does not yet exist.
func (s *Store) Save(chainA, chainB string, bundle Bundle) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ibc data directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal channel pair bundle: %w", err)
	}

	path := filepath.Join(s.dir, BundleFileName(chainA, chainB))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write channel pair bundle %s: %w", path, err)
	}
	return nil
}
