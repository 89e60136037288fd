// Command auditor drives the escrow-conservation audit: it loads a chain
// registry and the auditor's own configuration, then dispatches one of
// three subcommands.
//
// Usage:
//
//	auditor audit --mode quick osmosis cosmoshub [channel-id]
//	auditor update-chains --dest ./chains
//	auditor status --listen localhost:8090
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibc-tools/escrow-auditor/internal/appconfig"
	"github.com/ibc-tools/escrow-auditor/internal/audit"
	"github.com/ibc-tools/escrow-auditor/internal/chainreg"
	"github.com/ibc-tools/escrow-auditor/internal/denom"
	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
	"github.com/ibc-tools/escrow-auditor/internal/ibcdata"
	"github.com/ibc-tools/escrow-auditor/internal/logging"
	"github.com/ibc-tools/escrow-auditor/internal/registrysync"
	"github.com/ibc-tools/escrow-auditor/internal/statusserver"
	"github.com/ibc-tools/escrow-auditor/internal/topology"
	"github.com/ibc-tools/escrow-auditor/internal/transport"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: auditor <audit|update-chains|status> [flags]")
		os.Exit(1)
	}

	var exitCode int
	switch os.Args[1] {
	case "audit":
		exitCode = runAudit(os.Args[2:])
	case "update-chains":
		exitCode = runUpdateChains(os.Args[2:])
	case "status":
		exitCode = runStatus(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		exitCode = 1
	}
	os.Exit(exitCode)
}

// resolveTransportPreference maps the --transport flag onto the query
// client's PreferBinary ordering. "binary"/"text" pin the ordering;
// "auto" (or unset) defers to the config file's use_binary_transport key,
// which is read from the [api] table (api.use_binary_transport), not from
// [audit]. The client retries by rotating across both transports
// regardless of preference (see DESIGN.md), so this governs which
// transport is tried first, not an exclusive choice of one.
func resolveTransportPreference(flagValue string, cfg appconfig.APIConfig) (bool, error) {
	switch flagValue {
	case "binary":
		return true, nil
	case "text":
		return false, nil
	case "", "auto":
		return cfg.BinaryTransportPreferred(), nil
	default:
		return false, fmt.Errorf("invalid --transport %q: want binary, text, or auto", flagValue)
	}
}

func runAudit(args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	chainsDir := fs.String("chains", "./chains", "directory of per-chain TOML records")
	configPath := fs.String("config", "", "path to the auditor's TOML config file")
	dataDir := fs.String("data", "./data", "directory for cached channel bundles (the descriptor/version cache lives in the config file's cache.dir)")
	mode := fs.String("mode", "", "audit mode: quick, comprehensive, or manual (defaults to the config file's audit.default_mode)")
	reverse := fs.Bool("reverse", false, "also audit the reverse direction (secondary -> primary)")
	transportFlag := fs.String("transport", "auto", "transport preference: binary, text, or auto")
	fs.Parse(args)

	positional := fs.Args()
	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "usage: auditor audit [flags] <primary> <secondary> [channel-id]")
		return 1
	}
	primaryChain, secondaryChain := positional[0], positional[1]
	var channelID string
	if len(positional) >= 3 {
		channelID = positional[2]
	}

	cfg, err := appconfig.NewLoader().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: loading config: %v\n", err)
		return 3
	}

	registry, warnings, err := chainreg.NewLoader().LoadAll(*chainsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: loading chain registry: %v\n", err)
		return 3
	}
	for _, w := range warnings {
		logging.Logger.Warn().Err(w).Msg("skipped malformed chain record")
	}

	resolvedMode := *mode
	if resolvedMode == "" {
		resolvedMode = cfg.Audit.DefaultMode
	}

	preferBinary, err := resolveTransportPreference(*transportFlag, cfg.API)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		return 1
	}

	schemaCache := descriptorcache.NewCache(cfg.Cache.Dir, cfg.Cache.SchemaTTL())
	client := transport.NewClient(
		transport.NewTextTransport(transport.DefaultHTTPClient(cfg.API.Timeout()), cfg.API.SeiFamilyHosts),
		transport.NewBinaryTransport().WithSchemaCache(schemaCache),
		cfg.API.Retries, cfg.API.Delay(), cfg.API.Timeout(), preferBinary,
	).WithDescriptorCache(schemaCache, cfg.Cache.VersionCheckInterval())
	topo := topology.NewResolver(client, registry)
	resolver := denom.NewResolver(client, registry, topo, 0)
	store := ibcdata.NewStore(*dataDir)
	orch := audit.NewOrchestrator(client, registry, topo, resolver, store)

	escrowPort := cfg.Audit.EscrowPort
	if escrowPort == "" {
		escrowPort = "transfer"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := orch.Run(ctx, audit.Request{
		PrimaryChain:   primaryChain,
		SecondaryChain: secondaryChain,
		Mode:           audit.Mode(resolvedMode),
		ChannelID:      channelID,
		Reverse:        *reverse,
		EscrowPort:     escrowPort,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		return 3
	}

	for _, result := range report.Results {
		fmt.Printf("%-8s %-24s escrow=%-16s supply=%-16s discrepancy=%-16s complete=%v\n",
			result.Status, result.Denom, result.EscrowBalance, result.CounterpartySupply, result.Discrepancy, result.Complete)
		for _, e := range result.Errors {
			fmt.Printf("           error: %s\n", e)
		}
	}

	return audit.WorstStatus(report.Results)
}

func runUpdateChains(args []string) int {
	fs := flag.NewFlagSet("update-chains", flag.ExitOnError)
	dest := fs.String("dest", "./chains", "destination directory for the downloaded chain-registry mirror")
	timeout := fs.Duration("timeout", 120*time.Second, "download deadline")
	fs.Parse(args)

	if os.Getenv("GITHUB_PAT") == "" {
		fmt.Fprintln(os.Stderr, "update-chains: GITHUB_PAT is not set; refusing to hit the registry mirror unauthenticated")
		return 1
	}

	downloader := registrysync.NewDownloader()
	downloader.Timeout = *timeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := downloader.Sync(ctx, *dest); err != nil {
		fmt.Fprintf(os.Stderr, "update-chains: %v\n", err)
		return 1
	}
	fmt.Printf("update-chains: synced registry mirror into %s\n", *dest)
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	listen := fs.String("listen", "localhost:8090", "address the status server listens on")
	dataDir := fs.String("data", "./data", "directory holding the descriptor/version cache")
	schemaTTL := fs.Duration("schema-ttl", 24*time.Hour, "memory-tier TTL for cached reflected schemas")
	fs.Parse(args)

	cache := descriptorcache.NewCache(*dataDir, *schemaTTL)

	cfg := statusserver.DefaultConfig()
	cfg.Address = *listen
	srv := statusserver.NewServer(cfg, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "status: shutdown: %v\n", err)
			return 1
		}
	}
	return 0
}
