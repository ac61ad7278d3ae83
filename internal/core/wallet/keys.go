// Package wallet implements counterfactual wallet address derivation and
// signing key management.
//
// Addresses are predicted before any on-chain state exists: the registration
// flow hashes the user identifier, draws a salt, and derives a stable address
// from the two. Deposit instructions and explorer links depend on the address
// being available before the account factory actually deploys the wallet, so
// derivation must be pure and deterministic.
package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Salt bounds. The upper bound keeps the salt packable into a fixed-width
// on-chain integer parameter without overflow.
const (
	SaltMin = 1
	SaltMax = 1_000_000
)

var (
	// ErrSaltOutOfRange is returned when a salt falls outside [SaltMin, SaltMax].
	ErrSaltOutOfRange = errors.New("wallet salt out of range")

	// ErrEmptyIdentifier is returned when the identifier normalizes to nothing.
	ErrEmptyIdentifier = errors.New("empty identifier")
)

// HashIdentifier normalizes an email identifier (trim, lower-case) and
// returns its Keccak-256 digest. The digest, not the email, is what flows
// downstream; it is not reversible.
func HashIdentifier(email string) ([32]byte, error) {
	var digest [32]byte

	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return digest, ErrEmptyIdentifier
	}

	copy(digest[:], crypto.Keccak256([]byte(normalized)))
	return digest, nil
}

// AllocateSalt draws a salt uniformly from [SaltMin, SaltMax].
func AllocateSalt() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(SaltMax))
	if err != nil {
		return 0, fmt.Errorf("failed to draw salt: %w", err)
	}
	return n.Int64() + SaltMin, nil
}

// PredictAddress derives the counterfactual wallet address for a hashed
// identifier and salt: Keccak-256 over the digest concatenated with the salt
// as a 32-byte big-endian word, truncated to the first 20 bytes.
//
// Identical inputs always yield an identical address, regardless of process,
// time, or call order. The packing mirrors the account factory's uint256 salt
// parameter and must stay byte-compatible with the deployed contract.
func PredictAddress(digest [32]byte, salt int64) (common.Address, error) {
	if salt < SaltMin || salt > SaltMax {
		return common.Address{}, fmt.Errorf("%w: %d", ErrSaltOutOfRange, salt)
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, digest[:]...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(salt).Bytes(), 32)...)

	sum := crypto.Keccak256(buf)
	return common.BytesToAddress(sum[:20]), nil
}

// FallbackAddress derives an address from best-effort entropy. It is used
// only when deterministic derivation fails, so that registration can still
// complete; records carrying a fallback address are flagged for manual
// reconciliation.
func FallbackAddress() (common.Address, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return common.Address{}, fmt.Errorf("failed to read entropy: %w", err)
	}
	return common.BytesToAddress(b[:]), nil
}
