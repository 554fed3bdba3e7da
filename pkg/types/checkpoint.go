package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DigestLength is the width in bytes of every leaf, node and root digest
const DigestLength = 32

// Digest is a fixed-width hash value. It marshals as a 0x-prefixed hex string.
type Digest [DigestLength]byte

// String returns the 0x-prefixed hex encoding of the digest
func (d Digest) String() string {
	return hexutil.Encode(d[:])
}

// IsZero reports whether every byte of the digest is zero
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 0x-prefixed hex string into a Digest
func ParseDigest(s string) (Digest, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != DigestLength {
		return Digest{}, fmt.Errorf("invalid digest length: expected %d bytes, got %d", DigestLength, len(raw))
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// LeafContent is a single raw item handed over by a leaf source.
// Content is the full byte payload captured at snapshot time.
type LeafContent struct {
	LogicalPath string
	Content     []byte
	ObservedAt  time.Time
}

// LeafRecord is the per-leaf metadata stored alongside a checkpoint
type LeafRecord struct {
	LogicalPath string    `json:"logicalPath" yaml:"logicalPath"`
	ContentHash Digest    `json:"contentHash" yaml:"contentHash"`
	Size        int64     `json:"size" yaml:"size"`
	ObservedAt  time.Time `json:"observedAt" yaml:"observedAt"`
}

// Proof is an ordered list of sibling digests, bottom layer first
type Proof []Digest

// Clone returns a copy of the proof that shares no memory with the receiver
func (p Proof) Clone() Proof {
	if p == nil {
		return nil
	}
	out := make(Proof, len(p))
	copy(out, p)
	return out
}

// Bytes32 converts the proof to the raw array form used by the merkle package
func (p Proof) Bytes32() [][32]byte {
	out := make([][32]byte, len(p))
	for i, d := range p {
		out[i] = d
	}
	return out
}

// ProofFromBytes32 converts raw sibling digests into a Proof
func ProofFromBytes32(siblings [][32]byte) Proof {
	out := make(Proof, len(siblings))
	for i, s := range siblings {
		out[i] = s
	}
	return out
}

// CheckpointMetadata summarises a checkpoint's leaf set. It is the payload that is
// submitted to the authoritative store together with the root.
type CheckpointMetadata struct {
	LeafCount     int    `json:"leafCount" yaml:"leafCount"`
	TotalBytes    int64  `json:"totalBytes" yaml:"totalBytes"`
	HashAlgorithm string `json:"hashAlgorithm" yaml:"hashAlgorithm"`
}
