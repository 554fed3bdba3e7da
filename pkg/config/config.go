package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/committer"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for checkpointer configuration
const (
	EnvCheckpointConfig          = "CHECKPOINT_CONFIG"
	EnvCheckpointSourceDir       = "CHECKPOINT_SOURCE_DIR"
	EnvCheckpointIncludeHidden   = "CHECKPOINT_INCLUDE_HIDDEN"
	EnvCheckpointHashAlgorithm   = "CHECKPOINT_HASH_ALGORITHM"
	EnvCheckpointPersistenceType = "CHECKPOINT_PERSISTENCE_TYPE"
	EnvCheckpointDataPath        = "CHECKPOINT_DATA_PATH"
	EnvCheckpointRedisAddress    = "CHECKPOINT_REDIS_ADDRESS"
	EnvCheckpointRedisPassword   = "CHECKPOINT_REDIS_PASSWORD"
	EnvCheckpointRedisDB         = "CHECKPOINT_REDIS_DB"
	EnvCheckpointRedisKeyPrefix  = "CHECKPOINT_REDIS_KEY_PREFIX"
	EnvCheckpointAuthorityType   = "CHECKPOINT_AUTHORITY_TYPE"
	EnvCheckpointRPCURL          = "CHECKPOINT_RPC_URL"
	EnvCheckpointChainID         = "CHECKPOINT_CHAIN_ID"
	EnvCheckpointRegistryAddress = "CHECKPOINT_REGISTRY_ADDRESS"
	EnvCheckpointPrivateKey      = "CHECKPOINT_PRIVATE_KEY"
	EnvCheckpointMaxAttempts     = "CHECKPOINT_MAX_ATTEMPTS"
	EnvCheckpointInitialBackoff  = "CHECKPOINT_INITIAL_BACKOFF"
	EnvCheckpointMaxBackoff      = "CHECKPOINT_MAX_BACKOFF"
	EnvCheckpointSubmitsPerSec   = "CHECKPOINT_SUBMITS_PER_SECOND"
	EnvCheckpointDebug           = "CHECKPOINT_DEBUG"
)

type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

type AuthorityType string

const (
	AuthorityTypeMemory   AuthorityType = "memory"
	AuthorityTypeContract AuthorityType = "contract"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}

func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// Duration is a time.Duration written as "5s" in config files
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type RedisConfig struct {
	Address   string `toml:"address" json:"address"`
	Password  string `toml:"password" json:"password,omitempty"`
	DB        int    `toml:"db" json:"db"`
	KeyPrefix string `toml:"key_prefix" json:"key_prefix"`
}

type ContractConfig struct {
	RpcUrl          string  `toml:"rpc_url" json:"rpc_url"`
	ChainID         ChainId `toml:"chain_id" json:"chain_id"`
	RegistryAddress string  `toml:"registry_address" json:"registry_address"`
	PrivateKey      string  `toml:"private_key" json:"private_key,omitempty"`
}

type RetryConfig struct {
	MaxAttempts      int      `toml:"max_attempts" json:"max_attempts"`
	InitialBackoff   Duration `toml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff       Duration `toml:"max_backoff" json:"max_backoff"`
	BackoffMultiple  float64  `toml:"backoff_multiple" json:"backoff_multiple"`
	SubmitsPerSecond float64  `toml:"submits_per_second" json:"submits_per_second"`
}

// ToCommitterRetry converts to the committer's retry settings
func (r RetryConfig) ToCommitterRetry() committer.RetryConfig {
	return committer.RetryConfig{
		MaxAttempts:      r.MaxAttempts,
		InitialBackoff:   time.Duration(r.InitialBackoff),
		MaxBackoff:       time.Duration(r.MaxBackoff),
		BackoffMultiple:  r.BackoffMultiple,
		SubmitsPerSecond: r.SubmitsPerSecond,
	}
}

type CheckpointerConfig struct {
	SourceDir     string `toml:"source_dir" json:"source_dir"`
	IncludeHidden bool   `toml:"include_hidden" json:"include_hidden"`
	HashAlgorithm string `toml:"hash_algorithm" json:"hash_algorithm"`

	PersistenceType PersistenceType `toml:"persistence_type" json:"persistence_type"`
	DataPath        string          `toml:"data_path" json:"data_path"`
	Redis           RedisConfig     `toml:"redis" json:"redis"`

	AuthorityType AuthorityType  `toml:"authority_type" json:"authority_type"`
	Contract      ContractConfig `toml:"contract" json:"contract"`

	Retry RetryConfig `toml:"retry" json:"retry"`

	Debug bool `toml:"debug" json:"debug"`
}

// DefaultConfig returns a config that commits with keccak256 to a local badger store
func DefaultConfig() *CheckpointerConfig {
	retry := committer.DefaultRetryConfig
	return &CheckpointerConfig{
		HashAlgorithm:   merkle.HashKeccak256,
		PersistenceType: PersistenceTypeBadger,
		DataPath:        "./checkpoint-data",
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		AuthorityType: AuthorityTypeMemory,
		Contract: ContractConfig{
			ChainID: ChainId_EthereumAnvil,
		},
		Retry: RetryConfig{
			MaxAttempts:      retry.MaxAttempts,
			InitialBackoff:   Duration(retry.InitialBackoff),
			MaxBackoff:       Duration(retry.MaxBackoff),
			BackoffMultiple:  retry.BackoffMultiple,
			SubmitsPerSecond: retry.SubmitsPerSecond,
		},
	}
}

// Validate checks the whole config and reports every problem at once
func (c *CheckpointerConfig) Validate() error {
	var allErrors field.ErrorList

	if _, err := merkle.HasherByName(c.HashAlgorithm); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hash_algorithm"), c.HashAlgorithm, merkle.SupportedHashers()))
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("data_path"), "data_path is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "address is required for redis persistence"))
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), c.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistence_type"), c.PersistenceType,
			[]PersistenceType{PersistenceTypeMemory, PersistenceTypeBadger, PersistenceTypeRedis}))
	}

	switch c.AuthorityType {
	case AuthorityTypeMemory:
	case AuthorityTypeContract:
		allErrors = append(allErrors, c.Contract.validate(field.NewPath("contract"))...)
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("authority_type"), c.AuthorityType,
			[]AuthorityType{AuthorityTypeMemory, AuthorityTypeContract}))
	}

	retryPath := field.NewPath("retry")
	if c.Retry.MaxAttempts < 1 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("max_attempts"), c.Retry.MaxAttempts, "must be at least 1"))
	}
	if c.Retry.InitialBackoff < 0 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("initial_backoff"), c.Retry.InitialBackoff, "must not be negative"))
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("max_backoff"), c.Retry.MaxBackoff, "must not be less than initial_backoff"))
	}
	if c.Retry.BackoffMultiple < 1 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("backoff_multiple"), c.Retry.BackoffMultiple, "must be at least 1"))
	}
	if c.Retry.SubmitsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(retryPath.Child("submits_per_second"), c.Retry.SubmitsPerSecond, "must not be negative"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ValidateForCommit additionally requires a source directory
func (c *CheckpointerConfig) ValidateForCommit() error {
	if c.SourceDir == "" {
		return field.ErrorList{
			field.Required(field.NewPath("source_dir"), "source_dir is required to build checkpoints"),
		}.ToAggregate()
	}
	return c.Validate()
}

func (cc *ContractConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	if cc.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(path.Child("rpc_url"), "rpc_url is required"))
	}
	if _, ok := ChainIdToName[cc.ChainID]; !ok {
		allErrors = append(allErrors, field.Invalid(path.Child("chain_id"), cc.ChainID,
			"unsupported chain ID. Supported: "+GetSupportedChainIDsString()))
	}
	if !common.IsHexAddress(cc.RegistryAddress) {
		allErrors = append(allErrors, field.Invalid(path.Child("registry_address"), cc.RegistryAddress, "must be a hex address"))
	}

	key := strings.TrimPrefix(cc.PrivateKey, "0x")
	if key == "" {
		allErrors = append(allErrors, field.Required(path.Child("private_key"), "private_key is required"))
	} else if len(key) != 64 {
		allErrors = append(allErrors, field.Invalid(path.Child("private_key"), "<redacted>",
			fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(key))))
	}

	return allErrors
}
