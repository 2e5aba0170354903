package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/bitcoin"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/classify"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/coordinator"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/lock"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
	badgerstore "github.com/5G-Cash/bulwark-explorer/internal/carver/store/badger"
	clickhousestore "github.com/5G-Cash/bulwark-explorer/internal/carver/store/clickhouse"
	"github.com/5G-Cash/bulwark-explorer/internal/metrics"
)

type config struct {
	RPCURL      string        `long:"rpc-url" env:"CARVER_RPC_URL" description:"node JSON-RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser     string        `long:"rpc-user" env:"CARVER_RPC_USER" description:"node RPC username"`
	RPCPassword string        `long:"rpc-password" env:"CARVER_RPC_PASSWORD" description:"node RPC password"`
	HTTPTimeout time.Duration `long:"http-timeout" env:"CARVER_HTTP_TIMEOUT" description:"HTTP timeout for RPC requests; accepted but not applied, RPC requests run without a timeout" default:"30s"`
	Network     string        `long:"network" env:"CARVER_NETWORK" description:"chain params to decode addresses under (mainnet, testnet, regtest, signet)" default:"mainnet"`

	StoreBackend  string `long:"store-backend" env:"CARVER_STORE_BACKEND" description:"document store backend (badger, clickhouse)" default:"badger"`
	StorePath     string `long:"store-path" env:"CARVER_STORE_PATH" description:"on-disk path for the badger store" default:"./carver-data"`
	ClickhouseDSN string `long:"clickhouse-dsn" env:"CARVER_CLICKHOUSE_DSN" description:"ClickHouse DSN, when store-backend is clickhouse"`

	LockDir string `long:"lock-dir" env:"CARVER_LOCK_DIR" description:"directory the engine's exclusive lockfile lives in" default:"./carver-data"`

	BlockConfirmations         int64 `long:"block-confirmations" env:"BLOCK_CONFIRMATIONS" description:"node confirmation count before a block is considered final" default:"21"`
	BlockSyncAddressCacheLimit int64 `long:"block-sync-address-cache-limit" env:"BLOCK_SYNC_ADDRESS_CACHE_LIMIT" description:"capacity of the address cache's normal tier, which is dropped whole once exceeded" default:"50000"`
	UnwindBatchSize            int   `long:"unwind-batch-size" env:"CARVER_UNWIND_BATCH_SIZE" description:"page size the Unwinder reads and reverses movements in" default:"1000"`

	RewardSubsidy         float64 `long:"reward-subsidy" env:"CARVER_REWARD_SUBSIDY" description:"fixed block reward in whole coins, before any halving" default:"50"`
	RewardHalvingInterval uint64  `long:"reward-halving-interval" env:"CARVER_REWARD_HALVING_INTERVAL" description:"blocks between reward halvings (0 disables halving)" default:"0"`

	VerboseCron   bool `long:"verbose-cron" env:"VERBOSE_CRON" description:"log each synced height at Info rather than Debug"`
	VerboseCronTx bool `long:"verbose-cron-tx" env:"VERBOSE_CRON_TX" description:"log each movement built at Info rather than Debug"`

	MetricsAddr string `long:"metrics-addr" env:"CARVER_METRICS_ADDR" description:"address for the metrics server" default:":2112"`

	DebugChaos float64 `long:"debug-chaos" env:"CARVER_DEBUG_CHAOS" description:"probability [0,1] of rolling back and re-syncing each height, to exercise the unwinder under live traffic; never set outside manual testing" default:"0"`

	HeightPause time.Duration `long:"height-pause" env:"CARVER_HEIGHT_PAUSE" description:"pause between synced heights, to throttle load on the node" default:"0s"`

	Args struct {
		UndoHeight     string `positional-arg-name:"undo_height"`
		ForceRPCHeight string `positional-arg-name:"force_rpc_height"`
	} `positional-args:"yes"`
}

// parseOptionalHeight parses a positional height argument, treating an
// empty string (the argument wasn't given) as "not set" rather than an
// error.
func parseOptionalHeight(s string) (*uint64, error) {
	if s == "" {
		return nil, nil
	}
	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse height %q: %w", s, err)
	}
	return &h, nil
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("carver sync failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	undoHeight, err := parseOptionalHeight(cfg.Args.UndoHeight)
	if err != nil {
		return err
	}
	forceHeight, err := parseOptionalHeight(cfg.Args.ForceRPCHeight)
	if err != nil {
		return err
	}

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()

	rawClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword, cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("init node rpc client: %w", err)
	}
	defer func() {
		rawClient.Shutdown()
		rawClient.WaitForShutdown()
	}()
	node := bitcoin.NewRPCClient(rawClient, metrics.NewRPCClient())

	decoder, err := bitcoin.NewScriptDecoder(cfg.Network)
	if err != nil {
		return fmt.Errorf("init script decoder: %w", err)
	}

	locker := lock.New(cfg.LockDir)

	subsidyBase, err := model.NewAmountFromSatoshis(satoshisFromCoins(cfg.RewardSubsidy))
	if err != nil {
		return fmt.Errorf("parse reward subsidy: %w", err)
	}
	subsidy := classify.FixedSubsidy(subsidyBase)
	if cfg.RewardHalvingInterval > 0 {
		subsidy = classify.HalvingSubsidy(subsidyBase, cfg.RewardHalvingInterval)
	}

	opts := []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithVerboseCron(cfg.VerboseCron),
		coordinator.WithVerboseCronTx(cfg.VerboseCronTx),
		coordinator.WithHeightPause(cfg.HeightPause),
	}
	if cfg.DebugChaos > 0 {
		logger.Warn("debug chaos rollback enabled, do not run this in production", zap.Float64("rate", cfg.DebugChaos))
		opts = append(opts, coordinator.WithDebugRandomRollback(cfg.DebugChaos))
	}

	c, err := coordinator.New(coordinator.Config{
		Node:                  node,
		Store:                 store,
		Locker:                locker,
		Decoder:               decoder,
		Subsidy:               subsidy,
		AddressCacheLimit:     cfg.BlockSyncAddressCacheLimit,
		UnwindBatchSize:       cfg.UnwindBatchSize,
		RequiredConfirmations: cfg.BlockConfirmations,
		Metrics:               metrics.NewSync(),
	}, opts...)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	logger.Info("starting carver sync",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Int64("block_confirmations", cfg.BlockConfirmations),
		zap.Any("undo_height", undoHeight),
		zap.Any("force_rpc_height", forceHeight),
	)
	return c.Run(ctx, undoHeight, forceHeight)
}

// closableStore is the subset of chain.Store plus Close that both
// concrete store backends satisfy; coordinator.Config only wants the
// former, main wants the latter too so it can shut the store down
// cleanly on exit.
type closableStore interface {
	chain.Store
	Close() error
}

func newStore(cfg config) (closableStore, error) {
	switch cfg.StoreBackend {
	case "", "badger":
		return badgerstore.Open(cfg.StorePath)
	case "clickhouse":
		return clickhousestore.New(cfg.ClickhouseDSN, metrics.NewStore())
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func satoshisFromCoins(coins float64) int64 {
	return int64(coins*1e8 + 0.5)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string, timeout time.Duration) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	cfg := &rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	// timeout is accepted for parity with the other cmd/ binaries' flag
	// sets but rpcclient.ConnConfig has no per-request timeout knob.
	_ = timeout

	return rpcclient.New(cfg, nil)
}
