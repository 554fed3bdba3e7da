package contractAuthority

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const eventCheckpointSubmitted = "CheckpointSubmitted"

// Backend is the chain access the authority needs; *ethclient.Client satisfies it
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// ContractAuthorityConfig locates the registry and the key that signs submissions
type ContractAuthorityConfig struct {
	RegistryAddress string
	PrivateKey      string
	ChainID         uint64

	// HashAlgorithm is reported in Get results; the registry does not store it
	HashAlgorithm string
}

// ContractAuthority publishes roots to a CheckpointRegistry contract
type ContractAuthority struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	hashAlgo string
	logger   *zap.Logger
}

type checkpointSubmittedEvent struct {
	Sequence   uint64
	Root       [32]byte
	LeafCount  uint64
	TotalBytes uint64
}

func bindCheckpointRegistry(address common.Address, backend Backend) (*bind.BoundContract, error) {
	parsed, err := CheckpointRegistryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, backend, backend, backend), nil
}

// NewContractAuthority binds the registry at cfg.RegistryAddress
func NewContractAuthority(cfg *ContractAuthorityConfig, backend Backend, logger *zap.Logger) (*ContractAuthority, error) {
	if cfg == nil {
		return nil, fmt.Errorf("contract authority config cannot be nil")
	}
	if !common.IsHexAddress(cfg.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry address %q", cfg.RegistryAddress)
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("chain id must be set")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse private key")
	}

	address := common.HexToAddress(cfg.RegistryAddress)
	contract, err := bindCheckpointRegistry(address, backend)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind checkpoint registry at %s", address.Hex())
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &ContractAuthority{
		backend:  backend,
		contract: contract,
		address:  address,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  new(big.Int).SetUint64(cfg.ChainID),
		hashAlgo: cfg.HashAlgorithm,
		logger:   logger,
	}, nil
}

// From returns the address that signs submissions
func (c *ContractAuthority) From() common.Address {
	return c.from
}

func (c *ContractAuthority) latestSequence(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "latestSequence"); err != nil {
		return 0, errors.Wrapf(err, "failed to read latest sequence")
	}
	return *abi.ConvertType(out[0], new(uint64)).(*uint64), nil
}

// Submit sends submitCheckpoint unless the registry's latest entry already holds
// the same payload, and waits for the transaction to be mined.
func (c *ContractAuthority) Submit(ctx context.Context, root types.Digest, metadata types.CheckpointMetadata) (uint64, error) {
	latest, err := c.latestSequence(ctx)
	if err != nil {
		return 0, err
	}
	if latest > 0 {
		existing, err := c.getCheckpoint(ctx, latest)
		if err != nil {
			return 0, err
		}
		if existing.Root == root && authority.SameMetadata(existing.Metadata, metadata) {
			c.logger.Sugar().Infow("Root already committed as latest checkpoint",
				"sequence", latest,
				"root", root.String(),
			)
			return latest, nil
		}
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to build transaction options")
	}
	txOpts.Context = ctx

	tx, err := c.contract.Transact(txOpts, "submitCheckpoint",
		[32]byte(root),
		uint64(metadata.LeafCount),
		uint64(metadata.TotalBytes),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create transaction for checkpoint root %s", root)
	}

	c.logger.Sugar().Infow("Submitting checkpoint to registry",
		"registry", c.address.Hex(),
		"from", c.from.Hex(),
		"txHash", tx.Hash().Hex(),
		"root", root.String(),
		"leafCount", metadata.LeafCount,
	)

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to wait for transaction %s", tx.Hash().Hex())
	}
	if receipt.Status != ethereumTypes.ReceiptStatusSuccessful {
		return 0, fmt.Errorf("transaction %s failed with status %d", receipt.TxHash.Hex(), receipt.Status)
	}

	event, err := c.submittedEvent(receipt)
	if err != nil {
		return 0, err
	}
	if event.Root != root {
		return 0, fmt.Errorf("registry emitted root %s, submitted %s", types.Digest(event.Root), root)
	}

	c.logger.Sugar().Infow("Checkpoint committed",
		"sequence", event.Sequence,
		"block", receipt.BlockNumber,
		"gasUsed", receipt.GasUsed,
	)
	return event.Sequence, nil
}

// submittedEvent finds the CheckpointSubmitted log emitted by the registry in receipt
func (c *ContractAuthority) submittedEvent(receipt *ethereumTypes.Receipt) (*checkpointSubmittedEvent, error) {
	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.address {
			continue
		}
		var event checkpointSubmittedEvent
		if err := c.contract.UnpackLog(&event, eventCheckpointSubmitted, *log); err != nil {
			continue
		}
		return &event, nil
	}
	return nil, fmt.Errorf("no %s event in receipt %s", eventCheckpointSubmitted, receipt.TxHash.Hex())
}

// Get reads a committed checkpoint. Sequences run from 1 to latestSequence; the
// root itself may be all zero (an empty snapshot), so it says nothing about existence.
func (c *ContractAuthority) Get(ctx context.Context, sequence uint64) (*authority.CommittedRoot, error) {
	if sequence == 0 {
		return nil, authority.NotFound(sequence)
	}
	latest, err := c.latestSequence(ctx)
	if err != nil {
		return nil, err
	}
	if sequence > latest {
		return nil, authority.NotFound(sequence)
	}
	return c.getCheckpoint(ctx, sequence)
}

// getCheckpoint reads sequence without checking it has been assigned
func (c *ContractAuthority) getCheckpoint(ctx context.Context, sequence uint64) (*authority.CommittedRoot, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCheckpoint", sequence); err != nil {
		return nil, errors.Wrapf(err, "failed to get checkpoint %d", sequence)
	}

	root := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	leafCount := *abi.ConvertType(out[1], new(uint64)).(*uint64)
	totalBytes := *abi.ConvertType(out[2], new(uint64)).(*uint64)
	submittedAt := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)

	return &authority.CommittedRoot{
		Sequence: sequence,
		Root:     root,
		Metadata: types.CheckpointMetadata{
			LeafCount:     int(leafCount),
			TotalBytes:    int64(totalBytes),
			HashAlgorithm: c.hashAlgo,
		},
		Timestamp: time.Unix(submittedAt.Int64(), 0).UTC(),
	}, nil
}

// VerifyProof asks the registry's verifier, which must agree with merkle.VerifyProof
func (c *ContractAuthority) VerifyProof(ctx context.Context, sequence uint64, leaf types.Digest, proof types.Proof) (bool, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "verifyProof", sequence, [32]byte(leaf), proof.Bytes32())
	if err != nil {
		return false, errors.Wrapf(err, "failed to verify proof against checkpoint %d", sequence)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}
