package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrAdminKeyUnavailable is returned when the platform signing key is
	// missing or malformed in configuration.
	ErrAdminKeyUnavailable = errors.New("admin signing key unavailable")

	// ErrInvalidSigningKey is returned when a caller-supplied private key
	// cannot be parsed.
	ErrInvalidSigningKey = errors.New("invalid signing key")
)

// Signer wraps an ECDSA private key and its derived address.
type Signer struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// TransactOpts builds keyed transaction options for the given chain.
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}

// String deliberately exposes only the address. Key material must never
// reach logs.
func (s *Signer) String() string {
	return fmt.Sprintf("signer(%s)", s.Address.Hex())
}

// LogValue keeps slog output as redacted as String.
func (s *Signer) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// KeyManager constructs signers. The admin signer is loaded once and cached
// for the process lifetime; key rotation requires a restart.
type KeyManager struct {
	adminKeyHex string

	adminOnce   sync.Once
	adminSigner *Signer
	adminErr    error
}

// NewKeyManager creates a key manager with the configured admin key.
// An empty key is allowed; AdminSigner then fails with ErrAdminKeyUnavailable.
func NewKeyManager(adminKeyHex string) *KeyManager {
	return &KeyManager{adminKeyHex: adminKeyHex}
}

// AdminSigner loads the platform signing key from configuration.
func (m *KeyManager) AdminSigner() (*Signer, error) {
	m.adminOnce.Do(func() {
		if strings.TrimSpace(m.adminKeyHex) == "" {
			m.adminErr = ErrAdminKeyUnavailable
			return
		}
		signer, err := parseSigner(m.adminKeyHex)
		if err != nil {
			// Do not wrap the parse error: it could echo key material.
			m.adminErr = ErrAdminKeyUnavailable
			return
		}
		m.adminSigner = signer
	})
	return m.adminSigner, m.adminErr
}

// UserSigner wraps a caller-supplied private key.
func (m *KeyManager) UserSigner(privateKeyHex string) (*Signer, error) {
	signer, err := parseSigner(privateKeyHex)
	if err != nil {
		return nil, ErrInvalidSigningKey
	}
	return signer, nil
}

func parseSigner(keyHex string) (*Signer, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, err
	}
	return &Signer{
		key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
