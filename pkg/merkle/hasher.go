package merkle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Supported hash algorithm names
const (
	HashKeccak256  = "keccak256"
	HashSha3_256   = "sha3-256"
	HashBlake2b256 = "blake2b-256"
)

// Hasher is the hash primitive shared by leaf hashing, tree building and proof
// verification. Every participant, including the external verifier, must agree on it.
type Hasher interface {
	// Name identifies the algorithm in checkpoint metadata
	Name() string

	// Hash digests the concatenation of data
	Hash(data ...[]byte) [32]byte
}

type keccak256Hasher struct{}

func (keccak256Hasher) Name() string { return HashKeccak256 }

// Hash matches Solidity's keccak256(abi.encodePacked(...)) for byte inputs
func (keccak256Hasher) Hash(data ...[]byte) [32]byte {
	return crypto.Keccak256Hash(data...)
}

type sha3Hasher struct{}

func (sha3Hasher) Name() string { return HashSha3_256 }

func (sha3Hasher) Hash(data ...[]byte) [32]byte {
	h := sha3.New256()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

type blake2bHasher struct{}

func (blake2bHasher) Name() string { return HashBlake2b256 }

func (blake2bHasher) Hash(data ...[]byte) [32]byte {
	// New256 only fails for oversized keys
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

var hashers = map[string]Hasher{
	HashKeccak256:  keccak256Hasher{},
	HashSha3_256:   sha3Hasher{},
	HashBlake2b256: blake2bHasher{},
}

// DefaultHasher returns the keccak256 hasher used by the on-chain registry
func DefaultHasher() Hasher {
	return keccak256Hasher{}
}

// HasherByName looks up a supported hasher
func HasherByName(name string) (Hasher, error) {
	h, ok := hashers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm %q (supported: %v)", name, SupportedHashers())
	}
	return h, nil
}

// SupportedHashers lists the registered algorithm names in lexical order
func SupportedHashers() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashLeaf maps raw content to its leaf digest. Only the content bytes are hashed;
// paths, sizes and timestamps never influence the digest.
func HashLeaf(h Hasher, content []byte) [32]byte {
	return h.Hash(content)
}
