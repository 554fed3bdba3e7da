package contractAuthority

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// CheckpointRegistryMetaData describes the on-chain registry the contract authority talks to.
//
//	submitCheckpoint(bytes32 root, uint64 leafCount, uint64 totalBytes) returns (uint64 sequence)
//	getCheckpoint(uint64 sequence) returns (bytes32 root, uint64 leafCount, uint64 totalBytes, uint256 submittedAt)
//	latestSequence() returns (uint64)
//	verifyProof(uint64 sequence, bytes32 leaf, bytes32[] proof) returns (bool)
//	event CheckpointSubmitted(uint64 indexed sequence, bytes32 indexed root, uint64 leafCount, uint64 totalBytes)
var CheckpointRegistryMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"submitCheckpoint","stateMutability":"nonpayable",
 "inputs":[{"name":"root","type":"bytes32","internalType":"bytes32"},{"name":"leafCount","type":"uint64","internalType":"uint64"},{"name":"totalBytes","type":"uint64","internalType":"uint64"}],
 "outputs":[{"name":"sequence","type":"uint64","internalType":"uint64"}]},
{"type":"function","name":"getCheckpoint","stateMutability":"view",
 "inputs":[{"name":"sequence","type":"uint64","internalType":"uint64"}],
 "outputs":[{"name":"root","type":"bytes32","internalType":"bytes32"},{"name":"leafCount","type":"uint64","internalType":"uint64"},{"name":"totalBytes","type":"uint64","internalType":"uint64"},{"name":"submittedAt","type":"uint256","internalType":"uint256"}]},
{"type":"function","name":"latestSequence","stateMutability":"view",
 "inputs":[],
 "outputs":[{"name":"","type":"uint64","internalType":"uint64"}]},
{"type":"function","name":"verifyProof","stateMutability":"view",
 "inputs":[{"name":"sequence","type":"uint64","internalType":"uint64"},{"name":"leaf","type":"bytes32","internalType":"bytes32"},{"name":"proof","type":"bytes32[]","internalType":"bytes32[]"}],
 "outputs":[{"name":"","type":"bool","internalType":"bool"}]},
{"type":"event","name":"CheckpointSubmitted","anonymous":false,
 "inputs":[{"name":"sequence","type":"uint64","indexed":true,"internalType":"uint64"},{"name":"root","type":"bytes32","indexed":true,"internalType":"bytes32"},{"name":"leafCount","type":"uint64","indexed":false,"internalType":"uint64"},{"name":"totalBytes","type":"uint64","indexed":false,"internalType":"uint64"}]}
]`,
}
