// Command wavsd runs the WAVS off-chain execution daemon: it wires the
// content-addressed store, the WASM execution engine, the trigger
// subsystem, the dispatcher, the submission manager, the aggregator and
// the HTTP surface together and serves until killed, following the
// teacher's root main.go shape (flag parsing, env config load, signal-
// triggered graceful shutdown) rather than a cobra/cli-framework command
// tree the teacher never reaches for.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/certen/wavs/internal/config"
	"github.com/certen/wavs/internal/wavslog"
	"github.com/certen/wavs/pkg/aggregator"
	"github.com/certen/wavs/pkg/dispatcher"
	"github.com/certen/wavs/pkg/engine"
	"github.com/certen/wavs/pkg/httpapi"
	"github.com/certen/wavs/pkg/store"
	"github.com/certen/wavs/pkg/submission"
	"github.com/certen/wavs/pkg/trigger"
	"github.com/certen/wavs/pkg/types"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a normal signal-triggered
// shutdown, non-zero on any fatal startup failure (spec §6: bad config,
// port in use, corrupt DB).
func run() int {
	var showHelp = flag.Bool("help", false, "show help message")
	flag.Parse()
	if *showHelp {
		printHelp()
		return 0
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wavsd: failed to load configuration: %v\n", err)
		return 1
	}

	wavslog.Init(wavslog.Config{
		Level:      wavslog.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	log := wavslog.WithComponent("main")

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to open store")
		return 1
	}
	defer db.Close()

	services := store.NewServiceStore(db)
	blobs := store.NewBlobStore(db)
	queues := store.NewQueueStore(db)
	kv := store.NewKVStore(db)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(rootCtx, engine.Config{
		Blobs:         blobs,
		CacheCapacity: cfg.EngineCacheSize,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start engine")
		return 1
	}
	defer eng.Close(context.Background())

	chainRPC := make(map[types.ChainKey]string, len(cfg.Chains))
	var chainEndpoints []trigger.ChainEndpoints
	for _, cc := range cfg.Chains {
		chainKey, err := types.ParseChainKey(cc.Key)
		if err != nil {
			log.Error().Err(err).Str("chain", cc.Key).Msg("invalid chain config")
			return 1
		}
		if cc.RPCURL != "" {
			chainRPC[chainKey] = cc.RPCURL
		}
		if cc.WSURL != "" {
			chainEndpoints = append(chainEndpoints, trigger.ChainEndpoints{Chain: chainKey, URL: cc.WSURL})
		}
	}
	chains := engine.NewEVMChainQuerier(chainRPC)
	defer chains.Close()

	triggers := trigger.New(cfg.TriggerChannelSize, chainEndpoints)

	submitMgr, err := submission.New(submission.Config{
		Mnemonic: cfg.Mnemonic,
		ChainRPC: chainRPC,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start submission manager")
		return 1
	}

	disp := dispatcher.New(dispatcher.Config{
		Store:     services,
		KV:        kv,
		Engine:    eng,
		Submitter: submitMgr,
		Trigger:   triggers,
		Chains:    chains,
		TriggerIn: triggers.Out(),
	})

	agg := aggregator.New(aggregator.Config{
		Queues:     queues,
		Services:   services,
		OnChain:    submitMgr,
		Dispatcher: disp,
	})

	if err := restoreServices(rootCtx, services, triggers, submitMgr); err != nil {
		log.Error().Err(err).Msg("failed to restore services from store")
		return 1
	}

	server := httpapi.New(httpapi.Config{
		Services:   services,
		Blobs:      blobs,
		Dispatcher: disp,
		Aggregator: agg,
		Signers:    submitMgr,
		Chains:     chains,
		AdminMode:  cfg.AdminEnabled,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	var wg sync.WaitGroup
	for _, fn := range []func(context.Context){
		triggers.Run,
		disp.Run,
		agg.Run,
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(rootCtx)
		}(fn)
	}

	serveErrs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http listener starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serveErrs:
		log.Error().Err(err).Msg("http listener failed")
		cancel()
		return 1
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("wavsd stopped")
	return 0
}

// restoreServices re-registers every persisted service's workflows with
// the trigger subsystem and submission manager on startup: the service
// store survives a restart, but pkg/trigger's Lookup and a signer pool's
// assignments are in-memory and must be rebuilt from it.
func restoreServices(ctx context.Context, services *store.ServiceStore, triggers *trigger.Subsystem, submitMgr *submission.Manager) error {
	all, err := services.List()
	if err != nil {
		return err
	}
	for id, svc := range all {
		if err := submitMgr.AddService(ctx, id); err != nil {
			return fmt.Errorf("restore service %s: %w", id, err)
		}
		for _, entry := range svc.Workflows {
			triggers.AddWorkflow(id, entry.ID, entry.Workflow, nil)
		}
	}
	return nil
}

func printHelp() {
	fmt.Println("wavsd: the WAVS off-chain execution daemon")
	fmt.Println()
	fmt.Println("Configuration is environment-driven; see internal/config for the full list.")
	fmt.Println("Key variables: WAVS_DATA_DIR, WAVS_LISTEN_ADDR, WAVS_ADMIN_ENABLED,")
	fmt.Println("WAVS_MNEMONIC, WAVS_CHAINS, WAVS_CHAIN_<KEY>_RPC_URL, WAVS_CHAIN_<KEY>_WS_URL.")
}
