package main

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority/contractAuthority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority/inMemoryAuthority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/committer"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/config"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource/directoryLeafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/logger"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence/badger"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence/memory"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence/redis"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// loadConfig starts from defaults or the --config file, then applies explicitly set flags
func loadConfig(c *cli.Context) (*config.CheckpointerConfig, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("source-dir") {
		cfg.SourceDir = c.String("source-dir")
	}
	if c.IsSet("include-hidden") {
		cfg.IncludeHidden = c.Bool("include-hidden")
	}
	if c.IsSet("hash-algorithm") {
		cfg.HashAlgorithm = c.String("hash-algorithm")
	}
	if c.IsSet("persistence-type") {
		cfg.PersistenceType = config.PersistenceType(c.String("persistence-type"))
	}
	if c.IsSet("data-path") {
		cfg.DataPath = c.String("data-path")
	}
	if c.IsSet("redis-address") {
		cfg.Redis.Address = c.String("redis-address")
	}
	if c.IsSet("redis-password") {
		cfg.Redis.Password = c.String("redis-password")
	}
	if c.IsSet("redis-db") {
		cfg.Redis.DB = c.Int("redis-db")
	}
	if c.IsSet("redis-key-prefix") {
		cfg.Redis.KeyPrefix = c.String("redis-key-prefix")
	}
	if c.IsSet("authority-type") {
		cfg.AuthorityType = config.AuthorityType(c.String("authority-type"))
	}
	if c.IsSet("rpc-url") {
		cfg.Contract.RpcUrl = c.String("rpc-url")
	}
	if c.IsSet("chain-id") {
		cfg.Contract.ChainID = config.ChainId(c.Uint64("chain-id"))
	}
	if c.IsSet("registry-address") {
		cfg.Contract.RegistryAddress = c.String("registry-address")
	}
	if c.IsSet("private-key") {
		cfg.Contract.PrivateKey = c.String("private-key")
	}
	if c.IsSet("max-attempts") {
		cfg.Retry.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("initial-backoff") {
		cfg.Retry.InitialBackoff = config.Duration(c.Duration("initial-backoff"))
	}
	if c.IsSet("max-backoff") {
		cfg.Retry.MaxBackoff = config.Duration(c.Duration("max-backoff"))
	}
	if c.IsSet("submits-per-second") {
		cfg.Retry.SubmitsPerSecond = c.Float64("submits-per-second")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	return cfg, nil
}

func openStore(cfg *config.CheckpointerConfig, l *zap.Logger) (persistence.ICheckpointPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		return badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceTypeRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.PersistenceType)
	}
}

// openAuthority returns the authoritative store and a function releasing its resources.
// The in-memory authority is rebuilt from the local history so sequences keep counting
// across runs.
func openAuthority(
	ctx context.Context,
	cfg *config.CheckpointerConfig,
	h merkle.Hasher,
	store persistence.ICheckpointPersistence,
	l *zap.Logger,
) (authority.IAuthoritativeStore, func(), error) {
	switch cfg.AuthorityType {
	case config.AuthorityTypeMemory:
		records, err := store.ListCheckpoints()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read checkpoint history: %w", err)
		}
		committed := make([]*authority.CommittedRoot, len(records))
		for i, rec := range records {
			committed[i] = &authority.CommittedRoot{
				Sequence:  rec.Sequence,
				Root:      rec.Root,
				Metadata:  rec.Metadata,
				Timestamp: rec.Timestamp,
			}
		}

		a := inMemoryAuthority.NewInMemoryAuthority(h, l)
		if err := a.Seed(committed); err != nil {
			return nil, nil, fmt.Errorf("local history cannot seed the in-memory authority: %w", err)
		}
		l.Sugar().Warnw("Using in-memory authority; roots are not published externally",
			"history", len(committed),
		)
		return a, func() {}, nil

	case config.AuthorityTypeContract:
		client, err := ethclient.DialContext(ctx, cfg.Contract.RpcUrl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Contract.RpcUrl, err)
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		if chainID.Uint64() != uint64(cfg.Contract.ChainID) {
			client.Close()
			return nil, nil, fmt.Errorf("RPC endpoint is on chain %d, configured chain is %d", chainID.Uint64(), cfg.Contract.ChainID)
		}

		a, err := contractAuthority.NewContractAuthority(&contractAuthority.ContractAuthorityConfig{
			RegistryAddress: cfg.Contract.RegistryAddress,
			PrivateKey:      cfg.Contract.PrivateKey,
			ChainID:         uint64(cfg.Contract.ChainID),
			HashAlgorithm:   h.Name(),
		}, client, l)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		l.Sugar().Infow("Using checkpoint registry",
			"chain", config.ChainIdToName[cfg.Contract.ChainID],
			"registry", cfg.Contract.RegistryAddress,
			"from", a.From().Hex(),
		)
		return a, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported authority type %q", cfg.AuthorityType)
	}
}

// runtime is everything a command needs; close releases it in reverse order
type runtime struct {
	cfg       *config.CheckpointerConfig
	logger    *zap.Logger
	store     persistence.ICheckpointPersistence
	committer *committer.Committer
	closers   []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newRuntime(c *cli.Context, withSource bool) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	validate := cfg.Validate
	if withSource {
		validate = cfg.ValidateForCommit
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: l}
	rt.closers = append(rt.closers, func() { _ = l.Sync() })

	h, err := merkle.HasherByName(cfg.HashAlgorithm)
	if err != nil {
		rt.close()
		return nil, err
	}

	store, err := openStore(cfg, l)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close checkpoint store", "error", err)
		}
	})

	auth, closeAuth, err := openAuthority(c.Context, cfg, h, store, l)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeAuth)

	var source leafSource.ILeafSource
	if withSource {
		source, err = directoryLeafSource.NewDirectoryLeafSource(&directoryLeafSource.DirectoryLeafSourceConfig{
			Root:          cfg.SourceDir,
			IncludeHidden: cfg.IncludeHidden,
		}, l)
		if err != nil {
			rt.close()
			return nil, err
		}
	}

	rt.committer, err = committer.NewCommitter(&committer.CommitterConfig{
		Hasher: h,
		Retry:  cfg.Retry.ToCommitterRetry(),
	}, source, auth, store, l)
	if err != nil {
		rt.close()
		return nil, err
	}

	return rt, nil
}
