package chainreg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Loader loads ChainInfo records from a directory of <chain_id>.toml files.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadOne loads and validates a single chain record from a TOML file.
func (l *Loader) LoadOne(path string) (*ChainInfo, error) {
	if !strings.HasSuffix(path, ".toml") {
		return nil, fmt.Errorf("chain config file must be a .toml file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config %s: %w", path, err)
	}

	var info ChainInfo
	if err := toml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse chain config %s: %w", path, err)
	}

	if err := info.validate(); err != nil {
		return nil, err
	}

	return &info, nil
}

// Registry is an in-memory index of loaded ChainInfo records, keyed by both
// chain_id and chain_name so callers (notably the topology resolver) can
// look a chain up either way.
type Registry struct {
	byID   map[string]*ChainInfo
	byName map[string]*ChainInfo
}

// LoadAll loads every *.toml file in dir. Individual bad files are
// collected as warnings rather than aborting the whole load, matching the
// teacher loader's partial-success behavior; a directory with zero valid
// records is still an error.
func (l *Loader) LoadAll(dir string) (*Registry, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read chain config directory %s: %w", dir, err)
	}

	reg := &Registry{byID: map[string]*ChainInfo{}, byName: map[string]*ChainInfo{}}
	var warnings []error

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := l.LoadOne(path)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		if _, exists := reg.byID[info.ChainID]; exists {
			warnings = append(warnings, fmt.Errorf("%s: duplicate chain_id %s", entry.Name(), info.ChainID))
			continue
		}
		reg.byID[info.ChainID] = info
		reg.byName[info.ChainName] = info
	}

	if len(reg.byID) == 0 {
		return nil, warnings, fmt.Errorf("no valid chain configurations found in %s", dir)
	}

	return reg, warnings, nil
}

// ByID looks a chain up by chain_id.
func (r *Registry) ByID(chainID string) (*ChainInfo, error) {
	if info, ok := r.byID[chainID]; ok {
		return info, nil
	}
	return nil, &ErrChainUnknown{ChainID: chainID}
}

// ByName looks a chain up by chain_name.
func (r *Registry) ByName(chainName string) (*ChainInfo, error) {
	if info, ok := r.byName[chainName]; ok {
		return info, nil
	}
	// Fallback: linear scan, per the topology resolver's documented
	// fallback when the index misses (e.g. a registry loaded after a
	// chain's display name changed upstream).
	for _, info := range r.byID {
		if info.ChainName == chainName {
			return info, nil
		}
	}
	return nil, &ErrChainUnknown{ChainID: chainName}
}

// All returns every loaded chain, unordered.
func (r *Registry) All() []*ChainInfo {
	out := make([]*ChainInfo, 0, len(r.byID))
	for _, info := range r.byID {
		out = append(out, info)
	}
	return out
}

// NewRegistryForTest builds a Registry directly from a chain_id-keyed map,
// bypassing file loading, for use by other packages' tests that need a
// populated registry without writing TOML fixtures to disk.
func NewRegistryForTest(chains map[string]*ChainInfo) *Registry {
	reg := &Registry{byID: map[string]*ChainInfo{}, byName: map[string]*ChainInfo{}}
	for id, info := range chains {
		reg.byID[id] = info
		reg.byName[info.ChainName] = info
	}
	return reg
}
