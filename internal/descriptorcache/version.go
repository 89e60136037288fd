package descriptorcache

import (
	"context"
	"time"
)

// VersionProbe is the result of a live abci_info query, as performed by
// the binary or text transport's C2 Client.
type VersionProbe struct {
	AppVersion string
	AppName    string
}

// versionVerdict is CheckNeedsUpdate's internal result shape, carried
// through the singleflight call since it returns more than one value.
type versionVerdict struct {
	needsUpdate    bool
	currentVersion string
	cachedVersion  string
}

// CheckNeedsUpdate implements the decision table from the specification:
//
//   - a cached verdict younger than interval is returned as-is, with no
//     network call;
//   - otherwise probe is invoked; a successful probe's app_version is
//     compared against the cached baseline to decide the verdict;
//   - no cached baseline at all is the pessimistic case: treat the chain
//     as needing an update;
//   - a probe failure with a cached baseline present reports needs_update
//     as false, using the stale baseline rather than failing the caller or
//     replaying whatever verdict was last computed.
//
// It returns needsUpdate alongside the live current_version (empty when no
// probe was made) and the previously cached_version (empty when there was
// no baseline), matching check_needs_update's documented contract.
func (c *Cache) CheckNeedsUpdate(ctx context.Context, chainID string, interval time.Duration, probe func(context.Context) (VersionProbe, error)) (needsUpdate bool, currentVersion string, cachedVersion string, err error) {
	cached, hasCache := c.getVersion(chainID)
	if hasCache {
		cachedVersion = cached.AppVersion
	}
	if hasCache && time.Since(cached.CheckedAt) < interval {
		return cached.NeedsUpdate, "", cachedVersion, nil
	}

	result, sfErr, _ := c.sfVersion.Do(chainID, func() (any, error) {
		probed, probeErr := probe(ctx)
		if probeErr != nil {
			if hasCache {
				return versionVerdict{needsUpdate: false, cachedVersion: cachedVersion}, nil
			}
			return versionVerdict{needsUpdate: true}, probeErr
		}

		update := !hasCache || cached.AppVersion != probed.AppVersion
		entry := VersionEntry{
			ChainID:     chainID,
			AppVersion:  probed.AppVersion,
			AppName:     probed.AppName,
			CheckedAt:   time.Now(),
			NeedsUpdate: update,
		}
		c.putVersion(entry)
		return versionVerdict{needsUpdate: update, currentVersion: probed.AppVersion, cachedVersion: cachedVersion}, nil
	})

	verdict := result.(versionVerdict)
	return verdict.needsUpdate, verdict.currentVersion, verdict.cachedVersion, sfErr
}

func (c *Cache) getVersion(chainID string) (VersionEntry, bool) {
	if entry, ok := c.versions.Get(chainID); ok {
		return entry, true
	}
	if entry, ok := c.disk.LoadVersion(chainID); ok {
		c.versions.Add(chainID, entry)
		return entry, true
	}
	return VersionEntry{}, false
}

func (c *Cache) putVersion(entry VersionEntry) {
	c.versions.Add(entry.ChainID, entry)
	_ = c.disk.SaveVersion(entry)
}
