package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapLedger/internal/amm"
	"swapLedger/internal/api"
	"swapLedger/internal/config"
	"swapLedger/internal/ledger"
	"swapLedger/internal/storage"
	"swapLedger/internal/storage/postgres"
	"swapLedger/internal/watch"
)

func main() {
	root := &cobra.Command{
		Use:          "ammd",
		Short:        "Two-asset AMM pool service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pool service",
		RunE:  runService,
	}

	runCmd.Flags().String("rpc", "", "ledger RPC URL")
	runCmd.Flags().String("private-key", "", "hex private key of the pool account")
	runCmd.Flags().String("owner", "", "liquidity owner address")
	runCmd.Flags().String("token-a", "", "token A contract address")
	runCmd.Flags().String("token-b", "", "token B contract address")
	runCmd.Flags().Uint64("gas-limit", 100_000, "gas budget per outbound transfer")
	runCmd.Flags().Duration("transfer-timeout", 30*time.Second, "outbound transfer budget")
	runCmd.Flags().Duration("metadata-timeout", 10*time.Second, "metadata query budget")
	runCmd.Flags().Uint64("from", 0, "start block for the transfer watcher")
	runCmd.Flags().Uint64("batch-size", 500, "blocks per watch batch")
	runCmd.Flags().Duration("poll-interval", 3*time.Second, "idle poll interval")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the journal (JSONL fallback when empty)")
	runCmd.Flags().String("swap-journal", "./data/swaps.jsonl", "swap journal JSONL path")
	runCmd.Flags().String("state-journal", "./data/pool_state.jsonl", "pool state JSONL path")
	runCmd.Flags().String("listen", ":8080", "query API listen address")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "input-side reserve")
	quoteCmd.Flags().String("reserve-out", "", "output-side reserve")
	quoteCmd.Flags().String("amount-in", "", "amount offered")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runService(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	owner, err := parseAddress(cfg.Owner, "owner")
	if err != nil {
		return err
	}
	tokenA, err := parseAddress(cfg.TokenA, "token-a")
	if err != nil {
		return err
	}
	tokenB, err := parseAddress(cfg.TokenB, "token-b")
	if err != nil {
		return err
	}
	if tokenA == tokenB {
		return fmt.Errorf("token-a and token-b must differ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ledger.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	tokenLedger, err := ledger.NewEthLedger(ctx, client, cfg.PrivateKey, cfg.GasLimit, logger)
	if err != nil {
		return err
	}

	var journal storage.Journal
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		journal = store
	} else {
		journal = storage.NewJsonlJournal(cfg.SwapJournal, cfg.StateJournal)
	}

	pool := amm.NewPool(amm.Config{
		Owner:           owner,
		TokenA:          tokenA,
		TokenB:          tokenB,
		TransferTimeout: cfg.TransferTimeout,
		MetadataTimeout: cfg.MetadataTimeout,
	}, tokenLedger, journal, logger)

	watcher := watch.NewWatcher(watch.RunConfig{
		FromBlock:         cfg.FromBlock,
		BatchSize:         cfg.BatchSize,
		PollInterval:      cfg.PollInterval,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, client, tokenLedger, pool, tokenLedger.Account(), logger)

	server := api.NewServer(pool, logger)

	logger.Info("pool service start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("account", tokenLedger.Account().Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("token_a", tokenA.Hex()),
		zap.String("token_b", tokenB.Hex()),
		zap.String("listen", cfg.ListenAddr),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.ListenAddr)
	}()

	watchErr := watcher.Run(ctx)
	_ = server.Shutdown()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	default:
	}

	if watchErr != nil && ctx.Err() == nil {
		return watchErr
	}
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	reserveIn, err := parseAmountFlag(cmd, "reserve-in")
	if err != nil {
		return err
	}
	reserveOut, err := parseAmountFlag(cmd, "reserve-out")
	if err != nil {
		return err
	}
	amountIn, err := parseAmountFlag(cmd, "amount-in")
	if err != nil {
		return err
	}
	if amountIn.IsZero() {
		return amm.ErrZeroAmount
	}

	out := amm.Quote(reserveIn, reserveOut, amountIn)
	if out.IsZero() {
		return amm.ErrZeroOutput
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.Dec())
	return nil
}

func parseAmountFlag(cmd *cobra.Command, name string) (*uint256.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	value, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if value.BitLen() > 128 {
		return nil, amm.ErrAmountOverflow
	}
	return value, nil
}

func parseAddress(raw, name string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, fmt.Errorf("%s address is required", name)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, raw)
	}
	return common.HexToAddress(raw), nil
}
