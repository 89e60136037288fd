// Package registrysync is the thin collaborator interface onto the
// GitHub-hosted chain-registry mirror. The mirror itself, its indexing, and
// its presentation are out of scope for this audit tool (see spec.md §1);
// this package exists only because some concrete way of getting ChainInfo
// records onto disk is unavoidable to drive the CLI end to end.
package registrysync

import (
	"context"
	"fmt"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// DefaultRegistrySource is the canonical upstream chain-registry path this
// tool downloads from. The download itself carries no credentials: the
// update-chains command only checks that GITHUB_PAT is set before calling
// Sync.
const DefaultRegistrySource = "github.com/cosmos/chain-registry"

// Downloader fetches the chain-registry mirror into a local directory.
type Downloader struct {
	Source  string
	Timeout time.Duration
}

// NewDownloader creates a Downloader pointed at the default upstream
// registry with a 120s deadline, matching the teacher's RegistryGitDownload.
func NewDownloader() *Downloader {
	return &Downloader{Source: DefaultRegistrySource, Timeout: 120 * time.Second}
}

// Sync downloads the registry into dst.
func (d *Downloader) Sync(ctx context.Context, dst string) error {
	deadline := time.Now().Add(d.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	client := getter.Client{
		Ctx:  ctx,
		Src:  d.Source,
		Dst:  dst,
		Mode: getter.ClientModeDir,
		Detectors: []getter.Detector{
			&getter.GitHubDetector{},
		},
		Getters: map[string]getter.Getter{
			"git": &getter.GitGetter{},
		},
	}

	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to sync registry from %s to %s: %w", d.Source, dst, err)
	}
	return nil
}
